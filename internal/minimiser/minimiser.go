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

// Package minimiser implements the (w,k) gapped-shape minimiser stream used
// by both the build (C7) and query (C8) paths.
//
// The algorithm is the classic monotonic-deque windowed minimum: trailing
// hashes greater than or equal to a newly seen k-mer hash are popped, the
// new hash is pushed, and the deque's front is emitted whenever it changes and the
// window is full. Runs of non-ACGT characters reset the window, matching
// seqan3's behavior for sequences containing ambiguity codes.
package minimiser

import (
	"fmt"

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/raptor/internal/shape"
)

// Extractor produces the minimiser stream of DNA sequences for a fixed
// (shape, window) configuration. The zero value is not usable; construct
// with New.
type Extractor struct {
	K     int
	W     int
	Shape shape.Shape
	Seed  uint64
}

// New validates (k,w,shape) and returns an Extractor. w must be >= k.
func New(k, w int, sh shape.Shape) (*Extractor, error) {
	if w < k {
		return nil, fmt.Errorf("minimiser: window size %d must be >= k-mer size %d", w, k)
	}
	if int(sh.K) != k {
		return nil, fmt.Errorf("minimiser: shape k=%d does not match k=%d", sh.K, k)
	}
	return &Extractor{K: k, W: w, Shape: sh, Seed: shape.AdjustSeed(sh.Weight())}, nil
}

var base2bit = func() [256]uint64 {
	var t [256]uint64
	for i := range t {
		t[i] = 4
	}
	t['A'], t['a'] = 0, 0
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3
	return t
}()

type window struct {
	hash uint64
	idx  int
}

// Each calls fn once for every distinct consecutive minimiser of seq, in
// stream order. Sequences shorter than K produce no calls. Occurrences of
// characters outside {A,C,G,T} (case-insensitive) reset the sliding window,
// so no minimiser spans across them.
func (e *Extractor) Each(seq []byte, fn func(hash uint64)) {
	k := e.K
	l := e.W - e.K + 1 // number of k-mers per window
	if len(seq) < k {
		return
	}

	deque := make([]window, 0, l+1)
	var lastEmitted uint64
	haveLast := false

	reset := func() {
		deque = deque[:0]
		haveLast = false
	}

	var kmer, kmerRC uint64
	maskLow := uint64(1)<<(2*(k-1)) - 1 // clears the top 2 bits when k>1
	if k == 1 {
		maskLow = 0
	}
	valid := 0   // number of consecutive valid bases accumulated for the current k-mer window
	kmerIdx := 0 // index, within the current unbroken run, of the k-mer ending at the current position

	for i := 0; i < len(seq); i++ {
		code := base2bit[seq[i]]
		if code == 4 {
			valid = 0
			kmerIdx = 0
			kmer, kmerRC = 0, 0
			reset()
			continue
		}

		kmer = (kmer&maskLow)<<2 | code
		kmerRC = (code^3)<<uint(2*(k-1)) | (kmerRC >> 2)

		if valid < k-1 {
			valid++
			continue
		}
		valid++ // saturates beyond k, harmless

		h := e.Shape.CanonicalHash(kmer, kmerRC, e.Seed)
		emitWindowed(&deque, l, h, kmerIdx, &lastEmitted, &haveLast, fn)
		kmerIdx++
	}
}

func emitWindowed(deque *[]window, l int, h uint64, idx int, lastEmitted *uint64, haveLast *bool, fn func(uint64)) {
	d := *deque
	for len(d) > 0 && d[len(d)-1].hash >= h {
		d = d[:len(d)-1]
	}
	d = append(d, window{hash: h, idx: idx})
	for len(d) > 0 && d[0].idx <= idx-l {
		d = d[1:]
	}
	*deque = d

	if idx < l-1 {
		return
	}
	front := d[0].hash
	if !*haveLast || front != *lastEmitted {
		fn(front)
		*lastEmitted = front
		*haveLast = true
	}
}

// AppendHashes appends the minimiser stream of seq to dst and returns the
// extended slice, reusing dst's backing array when it has capacity. This is
// the scratch-buffer pattern used by the query engine's per-record pipeline.
func (e *Extractor) AppendHashes(seq []byte, dst []uint64) []uint64 {
	dst = dst[:0]
	e.Each(seq, func(h uint64) {
		dst = append(dst, h)
	})
	return dst
}

// kmerCode is a convenience wrapper around kmers.Encode/MustRevComp for a
// one-shot encode without going through Each's rolling update. No code in
// this module calls it.
func kmerCode(s []byte) (uint64, uint64, error) {
	code, err := kmers.Encode(s)
	if err != nil {
		return 0, 0, err
	}
	rc := kmers.MustRevComp(code, len(s))
	return code, rc, nil
}
