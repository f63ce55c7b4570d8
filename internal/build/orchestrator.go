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

// Package build implements the parallel fill of one or more IBFs from a
// bin-path layout: the orchestrator (C7).
package build

import (
	"context"
	"fmt"

	"github.com/shenwei356/raptor/internal/ibf"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/raptor/internal/shape"
	"github.com/sourcegraph/conc/pool"
)

// Args configures one Build invocation.
type Args struct {
	BinPaths         [][]string
	Window           int
	Shape            shape.Shape
	Threads          int
	HashFunctions    uint8
	FPR              float64
	Rows             uint64 // 0 selects a size based on Cardinalities
	Cardinalities    []uint64 // optional, parallel to BinPaths; used to size Rows when Rows == 0
	Parts            int      // 0 or 1 disables partitioning
	InputIsMinimiser bool
}

func (a Args) reader() Reader {
	if a.InputIsMinimiser {
		return MinimiserReader{}
	}
	sh := a.Shape
	extractor, _ := minimiser.New(int(sh.K), a.Window, sh)
	return SequenceReader{Extractor: extractor}
}

func (a Args) rows() uint64 {
	if a.Rows > 0 {
		return a.Rows
	}
	var total uint64
	for _, c := range a.Cardinalities {
		total += c
	}
	if total == 0 {
		total = 1 << 16 // conservative default when no cardinality hints are given
	}
	return ibf.SizeForFPR(total, a.HashFunctions, a.FPR)
}

// CallParallelOnBins runs worker once per (index, files) pair in binPaths,
// bounded to threads concurrent goroutines, and returns the workers' errors
// combined by the pool, or nil if every worker succeeds (ported from call_parallel_on_bins.hpp's "parallel for over
// zipped bin paths", using a goroutine pool instead of OpenMP).
func CallParallelOnBins(ctx context.Context, binPaths [][]string, threads int, worker func(ctx context.Context, binIndex int, files []string) error) error {
	if threads < 1 {
		threads = 1
	}
	p := pool.New().WithMaxGoroutines(threads).WithContext(ctx).WithCancelOnError()

	for i, files := range binPaths {
		i, files := i, files
		p.Go(func(ctx context.Context) error {
			return worker(ctx, i, files)
		})
	}
	return p.Wait()
}

// Orchestrator builds flat, partitioned, or HIBF-ready IBFs from a
// bin-path layout. It owns no state; it exists to parallel the teacher's
// and original's convention of a named "factory" type even though its
// construction here is trivial.
type Orchestrator struct{}

// Build allocates the IBF(s) described by args and fills them from the
// configured reader, running up to args.Threads user bins concurrently.
// Each worker goroutine only ever touches its own bin's column of bits
// (spec.md §5's required "disjoint bin sets per thread"); internal/ibf's
// atomic CAS-OR insert makes this safe even when that invariant is
// loosened in the future.
func (Orchestrator) Build(ctx context.Context, args Args) (*index.Record, error) {
	if len(args.BinPaths) == 0 {
		return nil, index.Wrap(index.InvalidArgument, fmt.Errorf("build: no bin paths given"))
	}
	if args.HashFunctions == 0 {
		args.HashFunctions = 3
	}
	if args.FPR <= 0 {
		args.FPR = 0.05
	}

	reader := args.reader()
	rows := args.rows()
	binCount := uint64(len(args.BinPaths))

	if args.Parts > 1 {
		return buildPartitioned(ctx, args, reader, binCount, rows)
	}
	return buildFlat(ctx, args, reader, binCount, rows)
}

func buildFlat(ctx context.Context, args Args, reader Reader, binCount, rows uint64) (*index.Record, error) {
	f, err := ibf.New(binCount, args.HashFunctions, rows)
	if err != nil {
		return nil, index.Wrap(index.ResourceExhausted, err)
	}

	err = CallParallelOnBins(ctx, args.BinPaths, args.Threads, func(ctx context.Context, binIndex int, files []string) error {
		bin := uint64(binIndex)
		return reader.HashInto(files, func(h uint64) { f.Insert(h, bin) })
	})
	if err != nil {
		return nil, err
	}

	return index.NewFlatRecord(args.Window, args.Shape, args.BinPaths, f), nil
}

func buildPartitioned(ctx context.Context, args Args, reader Reader, binCount, rows uint64) (*index.Record, error) {
	cfg := PartitionConfig{Parts: args.Parts}
	parts := make([]*ibf.IBF, args.Parts)
	for i := range parts {
		f, err := ibf.New(binCount, args.HashFunctions, rows)
		if err != nil {
			return nil, index.Wrap(index.ResourceExhausted, err)
		}
		parts[i] = f
	}

	err := CallParallelOnBins(ctx, args.BinPaths, args.Threads, func(ctx context.Context, binIndex int, files []string) error {
		bin := uint64(binIndex)
		return reader.HashInto(files, func(h uint64) {
			part := cfg.HashPartition(h)
			parts[part].Insert(h, bin)
		})
	})
	if err != nil {
		return nil, err
	}

	payload := &PartitionedIBF{Config: cfg, Parts: parts}
	return index.NewPartitionedRecord(args.Window, args.Shape, args.BinPaths, payload), nil
}
