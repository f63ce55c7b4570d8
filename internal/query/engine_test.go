// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package query

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/raptor/internal/build"
	"github.com/shenwei356/raptor/internal/hibf"
	"github.com/shenwei356/raptor/internal/ibf"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/raptor/internal/shape"
	"github.com/shenwei356/raptor/internal/threshold"
)

// singleLeafTree wraps f as a one-node HIBF tree whose only occupied slot,
// bin, is a direct leaf pointing at userBin.
func singleLeafTree(t *testing.T, f *ibf.IBF, bin uint64, userBin int) *hibf.Tree {
	t.Helper()
	slots := make([]hibf.Slot, f.BinCount())
	slots[bin] = hibf.Slot{Kind: hibf.SlotLeaf, UserBin: userBin}
	return &hibf.Tree{Nodes: []hibf.Node{{IBF: f, Slots: slots}}}
}

func writeQueryFasta(t *testing.T, dir, name string, records map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var content string
	for id, seq := range records {
		content += ">" + id + "\n" + seq + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func lowTau() *threshold.Parameters {
	return &threshold.Parameters{Mode: threshold.Percentage, Rho: 0.01, K: 8, Window: 10}
}

func TestRunFlatWritesHeaderOnceAndHitsMatchingBin(t *testing.T) {
	dir := t.TempDir()
	sh, err := shape.Ungapped(8)
	if err != nil {
		t.Fatal(err)
	}
	extractor, err := minimiser.New(8, 10, sh)
	if err != nil {
		t.Fatal(err)
	}

	f, err := ibf.New(64, 3, 2000)
	if err != nil {
		t.Fatal(err)
	}
	seq := "ACGTACGTACGTACGTACGTACGT"
	extractor.Each([]byte(seq), func(h uint64) { f.Insert(h, 2) })

	rec := index.NewFlatRecord(10, sh, [][]string{{"a.fa"}, {"b.fa"}, {"c.fa"}}, f)

	queryFile := writeQueryFasta(t, dir, "query.fasta", map[string]string{"q1": seq})

	var buf bytes.Buffer
	e := &Engine{
		Record:    rec,
		Extractor: extractor,
		Threshold: lowTau(),
		Out:       NewSyncOut(&buf),
		Threads:   2,
	}
	if err := e.Run(context.Background(), queryFile); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "#QUERY_NAME\tUSER_BINS\n") {
		t.Fatalf("expected header at start, got: %q", out)
	}
	if strings.Count(out, "#QUERY_NAME\tUSER_BINS\n") != 2 {
		t.Errorf("expected exactly one header block (two marker lines), got: %q", out)
	}
	if !strings.Contains(out, "q1\t2\n") {
		t.Errorf("expected q1 to hit bin 2 only, got: %q", out)
	}
}

func TestRunHIBFResolvesLeaf(t *testing.T) {
	dir := t.TempDir()
	sh, err := shape.Ungapped(8)
	if err != nil {
		t.Fatal(err)
	}
	extractor, err := minimiser.New(8, 10, sh)
	if err != nil {
		t.Fatal(err)
	}

	f, err := ibf.New(64, 3, 2000)
	if err != nil {
		t.Fatal(err)
	}
	seq := "TTTTGGGGCCCCAAAATTTTGGGG"
	var hashes []uint64
	extractor.Each([]byte(seq), func(h uint64) {
		hashes = append(hashes, h)
		f.Insert(h, 9)
	})

	tree := singleLeafTree(t, f, 9, 3)
	rec := index.NewHIBFRecord(10, sh, [][]string{{"x"}, {"y"}, {"z"}}, tree)

	queryFile := writeQueryFasta(t, dir, "query.fasta", map[string]string{"q1": seq})

	var buf bytes.Buffer
	e := &Engine{
		Record:    rec,
		Extractor: extractor,
		Threshold: lowTau(),
		Out:       NewSyncOut(&buf),
		Threads:   1,
	}
	if err := e.Run(context.Background(), queryFile); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "q1\t3\n") {
		t.Errorf("expected q1 to resolve to user bin 3, got: %q", buf.String())
	}
}

func TestRunPartitionedAccumulatesAcrossParts(t *testing.T) {
	dir := t.TempDir()
	sh, err := shape.Ungapped(8)
	if err != nil {
		t.Fatal(err)
	}
	extractor, err := minimiser.New(8, 10, sh)
	if err != nil {
		t.Fatal(err)
	}

	cfg := build.PartitionConfig{Parts: 2}
	parts := make([]*ibf.IBF, 2)
	for i := range parts {
		p, err := ibf.New(32, 3, 2000)
		if err != nil {
			t.Fatal(err)
		}
		parts[i] = p
	}

	seq := "ACGTACGTACGTACGTACGTACGT"
	extractor.Each([]byte(seq), func(h uint64) {
		parts[cfg.HashPartition(h)].Insert(h, 1)
	})

	payload := &build.PartitionedIBF{Config: cfg, Parts: parts}
	rec := index.NewPartitionedRecord(10, sh, [][]string{{"a"}, {"b"}}, payload)

	queryFile := writeQueryFasta(t, dir, "query.fasta", map[string]string{"q1": seq})

	var buf bytes.Buffer
	e := &Engine{
		Record:    rec,
		Extractor: extractor,
		Threshold: lowTau(),
		Out:       NewSyncOut(&buf),
		Threads:   2,
	}
	if err := e.Run(context.Background(), queryFile); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "q1\t1\n") {
		t.Errorf("expected q1 to hit bin 1 once partitions are merged, got: %q", buf.String())
	}
}
