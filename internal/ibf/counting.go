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

package ibf

import "math/bits"

// CountingAgent computes, for a set of query hashes, the per-bin count of
// how many of those hashes' rows are jointly set — i.e. how many of the
// query's minimisers each bin plausibly contains. It owns reusable scratch
// buffers so that repeated queries against the same IBF do not allocate.
type CountingAgent struct {
	ibf    *IBF
	buf    []uint64 // AND-accumulator, one word-stripe wide
	counts []uint16 // one entry per bin
}

// CountingAgent returns a CountingAgent bound to f. Agents are not safe for
// concurrent use by multiple goroutines; the query engine creates one per
// worker (spec.md §5 "Counting buffers: per-thread in flat flow").
func (f *IBF) CountingAgent() *CountingAgent {
	wordsPerRow := f.binCount / 64
	return &CountingAgent{
		ibf:    f,
		buf:    make([]uint64, wordsPerRow),
		counts: make([]uint16, f.binCount),
	}
}

// BulkCount returns, for each bin, the number of hashes in hashes for which
// all H of that hash's row-bits are set in that bin. The returned slice is
// owned by the agent and is overwritten on the next call.
func (a *CountingAgent) BulkCount(hashes []uint64) []uint16 {
	f := a.ibf
	counts := a.counts
	for i := range counts {
		counts[i] = 0
	}

	for _, h := range hashes {
		buf := a.buf
		stripe0 := f.stripe(f.row(h, 0))
		copy(buf, stripe0)
		for i := uint8(1); i < f.hashes; i++ {
			stripe := f.stripe(f.row(h, i))
			for w := range buf {
				buf[w] &= stripe[w]
			}
		}

		for w, word := range buf {
			for word != 0 {
				bitPos := bits.TrailingZeros64(word)
				bin := w*64 + bitPos
				if counts[bin] < ^uint16(0) {
					counts[bin]++
				}
				word &= word - 1
			}
		}
	}

	return counts
}
