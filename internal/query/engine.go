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

// Package query implements the chunked, parallel query pipeline (C8):
// extract minimisers, count against an index, apply a threshold, emit a
// result line.
package query

import (
	"context"
	"math/rand"
	"sync"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/raptor/internal/build"
	"github.com/shenwei356/raptor/internal/hibf"
	"github.com/shenwei356/raptor/internal/ibf"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/raptor/internal/threshold"
)

// chunkSize is the number of records read into memory before shuffling and
// dispatching to workers, matching the original's (1<<20)*10.
const chunkSize = (1 << 20) * 10

// Engine runs the query pipeline against one loaded index.Record.
type Engine struct {
	Record    *index.Record
	Extractor *minimiser.Extractor
	Threshold *threshold.Parameters
	Out       *SyncOut
	Threads   int
}

type queryRecord struct {
	id  string
	seq []byte
}

// Run streams queryFile in fixed-size chunks, shuffles each chunk with a
// fixed seed (0) to spread similar records across workers, and processes
// records in parallel, writing one result line per record to e.Out. The
// header is written exactly once, on the first chunk.
func (e *Engine) Run(ctx context.Context, queryFile string) error {
	if e.Threads < 1 {
		e.Threads = 1
	}

	reader, err := fastx.NewReader(nil, queryFile, "")
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer reader.Close()

	headerWritten := false
	chunk := make([]queryRecord, 0, chunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		rng := rand.New(rand.NewSource(0))
		rng.Shuffle(len(chunk), func(i, j int) { chunk[i], chunk[j] = chunk[j], chunk[i] })

		if !headerWritten {
			if err := e.Out.WriteHeader(e.Record.BinPaths); err != nil {
				return err
			}
			headerWritten = true
		}

		if err := e.processChunk(ctx, chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return index.Wrap(index.Cancelled, ctx.Err())
		default:
		}

		rec, err := reader.Read()
		if err != nil {
			break
		}
		chunk = append(chunk, queryRecord{id: string(rec.ID), seq: append([]byte(nil), rec.Seq.Seq...)})
		if len(chunk) >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (e *Engine) processChunk(ctx context.Context, records []queryRecord) error {
	switch {
	case e.Record.IsPartitioned():
		return e.processPartitioned(ctx, records)
	case e.Record.IsHIBF():
		return e.processHIBF(ctx, records)
	default:
		return e.processFlat(ctx, records)
	}
}

// runPool runs fn(recordIndex) for every record, bounded to e.Threads
// concurrent goroutines. An error does not stop the remaining records; after
// all have run, one of the returned errors (if any) is reported.
func (e *Engine) runPool(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	sem := make(chan struct{}, e.Threads)
	errs := make(chan error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		i := i
		select {
		case <-ctx.Done():
			return index.Wrap(index.Cancelled, ctx.Err())
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errs <- fn(ctx, i)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) processFlat(ctx context.Context, records []queryRecord) error {
	f := e.Record.Payload.(*ibf.IBF)
	var agentPool sync.Pool
	agentPool.New = func() interface{} { return f.CountingAgent() }

	return e.runPool(ctx, len(records), func(ctx context.Context, i int) error {
		rec := records[i]
		agent := agentPool.Get().(*ibf.CountingAgent)
		defer agentPool.Put(agent)

		hashes := e.Extractor.AppendHashes(rec.seq, nil)
		tau := e.Threshold.Get(len(hashes))
		counts := agent.BulkCount(hashes)

		var hits []uint64
		for bin, c := range counts {
			if uint64(c) >= tau {
				hits = append(hits, uint64(bin))
			}
		}
		return e.Out.WriteRecord(rec.id, hits)
	})
}

func (e *Engine) processHIBF(ctx context.Context, records []queryRecord) error {
	tree := e.Record.Payload.(*hibf.Tree)

	return e.runPool(ctx, len(records), func(ctx context.Context, i int) error {
		rec := records[i]
		hashes := e.Extractor.AppendHashes(rec.seq, nil)
		tau := e.Threshold.Get(len(hashes))

		bitmap, err := tree.Resolve(hashes, tau, nil)
		if err != nil {
			return err
		}
		hits := bitmap.ToArray()
		asU64 := make([]uint64, len(hits))
		for i, h := range hits {
			asU64[i] = uint64(h)
		}
		return e.Out.WriteRecord(rec.id, asU64)
	})
}

// processPartitioned accumulates per-record per-bin counts across the P
// partitioned IBFs, one partition fully processed before the next begins,
// mirroring the original's sequential part-by-part load-and-count loop
// (each part here is already resident in memory rather than loaded from
// disk per part, since the build path keeps all parts in one Payload).
func (e *Engine) processPartitioned(ctx context.Context, records []queryRecord) error {
	payload := e.Record.Payload.(*build.PartitionedIBF)

	hashesPerRecord := make([][]uint64, len(records))
	counts := make([][]uint16, len(records))
	for i, rec := range records {
		hashesPerRecord[i] = e.Extractor.AppendHashes(rec.seq, nil)
		counts[i] = make([]uint16, payload.Parts[0].BinCount())
	}

	for partIdx, f := range payload.Parts {
		var agentPool sync.Pool
		agentPool.New = func() interface{} { return f.CountingAgent() }

		err := e.runPool(ctx, len(records), func(ctx context.Context, i int) error {
			agent := agentPool.Get().(*ibf.CountingAgent)
			defer agentPool.Put(agent)

			filtered := filterByPartition(hashesPerRecord[i], payload.Config, partIdx)
			partCounts := agent.BulkCount(filtered)
			for bin, c := range partCounts {
				if uint64(counts[i][bin])+uint64(c) > 0xFFFF {
					counts[i][bin] = 0xFFFF
				} else {
					counts[i][bin] += c
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return e.runPool(ctx, len(records), func(ctx context.Context, i int) error {
		tau := e.Threshold.Get(len(hashesPerRecord[i]))
		var hits []uint64
		for bin, c := range counts[i] {
			if uint64(c) >= tau {
				hits = append(hits, uint64(bin))
			}
		}
		return e.Out.WriteRecord(records[i].id, hits)
	})
}

func filterByPartition(hashes []uint64, cfg build.PartitionConfig, part int) []uint64 {
	out := hashes[:0:0]
	for _, h := range hashes {
		if cfg.HashPartition(h) == uint64(part) {
			out = append(out, h)
		}
	}
	return out
}
