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

package minimiser

import (
	"testing"

	"github.com/shenwei356/raptor/internal/shape"
)

func newExtractor(t *testing.T, k, w int) *Extractor {
	t.Helper()
	sh, err := shape.Ungapped(uint8(k))
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(k, w, sh)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEachShortSequenceIsEmpty(t *testing.T) {
	e := newExtractor(t, 4, 5)
	var got []uint64
	e.Each([]byte("ACG"), func(h uint64) { got = append(got, h) })
	if len(got) != 0 {
		t.Errorf("expected no minimisers for sequence shorter than k, got %d", len(got))
	}
}

func TestEachDeterministic(t *testing.T) {
	e := newExtractor(t, 4, 5)
	seq := []byte("ACGTACGTACGTACGTACGT")

	a := e.AppendHashes(seq, nil)
	b := e.AppendHashes(seq, nil)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("minimiser %d differs between runs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestEachNoConsecutiveDuplicates(t *testing.T) {
	e := newExtractor(t, 4, 5)
	seq := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	hashes := e.AppendHashes(seq, nil)

	for i := 1; i < len(hashes); i++ {
		if hashes[i] == hashes[i-1] {
			t.Fatalf("consecutive duplicate minimiser at %d: %d", i, hashes[i])
		}
	}
}

func TestEachResetsOnAmbiguousBase(t *testing.T) {
	e := newExtractor(t, 4, 5)

	withN := e.AppendHashes([]byte("ACGTNACGTACGTACGTACGT"), nil)
	withoutBreak := e.AppendHashes([]byte("ACGTACGTACGTACGT"), nil)

	// The N should not let a window span across it, so the tail after the N
	// should match the minimisers of the same tail sequence run standalone.
	tailStart := len(withN) - len(withoutBreak)
	if tailStart < 0 {
		t.Fatalf("unexpected result lengths: withN=%d withoutBreak=%d", len(withN), len(withoutBreak))
	}
	for i, h := range withoutBreak {
		if withN[tailStart+i] != h {
			t.Errorf("minimiser %d after the N differs from the standalone tail: %d vs %d", i, withN[tailStart+i], h)
		}
	}
}

func TestNewRejectsWindowSmallerThanK(t *testing.T) {
	sh, err := shape.Ungapped(10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(10, 5, sh); err == nil {
		t.Error("expected error when w < k")
	}
}

func TestAppendHashesReusesBackingArray(t *testing.T) {
	e := newExtractor(t, 4, 5)
	buf := make([]uint64, 0, 64)
	seq := []byte("ACGTACGTACGTACGTACGT")

	got := e.AppendHashes(seq, buf)
	if cap(got) != cap(buf) {
		t.Errorf("expected AppendHashes to reuse the backing array, cap changed from %d to %d", cap(buf), cap(got))
	}
}
