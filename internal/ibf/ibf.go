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

// Package ibf implements the Interleaved Bloom Filter: a bank of B Bloom
// filters sharing H hash functions, laid out so that for any row the B bits
// "is this bin's slot set?" form one contiguous, word-aligned stripe. This
// lets a single bulk-count pass answer membership for all bins at once.
package ibf

import (
	"fmt"
	"math"
	"sync/atomic"
)

// MaxHashFunctions is the largest H this package supports; see the
// redistribute mixer family below, which is fixed at 5 entries.
const MaxHashFunctions = 5

// mixerC and mixerD are the fixed per-hash-function mixing constants used by
// redistribute. They MUST NOT change across releases: changing them
// invalidates every previously persisted index (spec: "the family is fixed
// across versions").
var (
	mixerC = [MaxHashFunctions]uint64{
		0x9E3779B185EBCA87, 0xC2B2AE3D27D4EB4F, 0x165667B19E3779F9,
		0x27D4EB2F165667C5, 0xFF51AFD7ED558CCD,
	}
	mixerD = [MaxHashFunctions]uint64{
		0xD6E8FEB86659FD93, 0xA24BAED4963EE407, 0x9FB21C651E98DF25,
		0x85EBCA77C2B2AE63, 0xC4CEB9FE1A85EC53,
	}
)

func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// IBF is the bit-packed Interleaved Bloom Filter described in spec.md §4.4.
type IBF struct {
	binCount uint64 // B, rounded up to a multiple of 64
	rows     uint64 // N, bit-matrix rows per hash function
	hashes   uint8  // H, number of hash functions, 2..5
	words    []uint64
}

// BinCount returns B (rounded up to a multiple of 64).
func (f *IBF) BinCount() uint64 { return f.binCount }

// Rows returns N.
func (f *IBF) Rows() uint64 { return f.rows }

// HashFunctionCount returns H.
func (f *IBF) HashFunctionCount() uint8 { return f.hashes }

// New allocates a zeroed IBF with the requested (rounded-up) bin count, H
// hash functions, and N rows per hash function.
func New(binCountRequest uint64, h uint8, n uint64) (*IBF, error) {
	if h < 2 || h > MaxHashFunctions {
		return nil, fmt.Errorf("ibf: hash function count must be in [2,%d], got %d", MaxHashFunctions, h)
	}
	if n == 0 {
		return nil, fmt.Errorf("ibf: rows must be > 0")
	}
	b := roundUp64(binCountRequest)
	if b == 0 {
		b = 64
	}
	words := make([]uint64, n*b/64)
	return &IBF{binCount: b, rows: n, hashes: h, words: words}, nil
}

func roundUp64(b uint64) uint64 {
	return (b + 63) &^ 63
}

// SizeForFPR returns the number of rows N needed so that, given H hash
// functions and n inserted elements, the per-bin false-positive rate is at
// most p. This implements the sizing formula in spec.md §3:
// N ≈ ceil(-H·n / ln(1-p^(1/H))).
func SizeForFPR(n uint64, h uint8, p float64) uint64 {
	if n == 0 {
		return 1
	}
	if p <= 0 || p >= 1 {
		p = 0.05
	}
	denom := math.Log(1 - math.Pow(p, 1/float64(h)))
	rows := math.Ceil(-float64(h) * float64(n) / denom)
	if rows < 1 {
		rows = 1
	}
	return uint64(rows)
}

// redistribute computes the i-th independent row-hash mixer for hash h.
func redistribute(h uint64, i uint8) uint64 {
	return mix(h*mixerC[i] ^ mixerD[i])
}

func (f *IBF) row(h uint64, i uint8) uint64 {
	return redistribute(h, i) % f.rows
}

// wordAndBit returns the word index and bit offset within that word for bin
// b in row.
func (f *IBF) wordAndBit(row, bin uint64) (word uint64, bitOffset uint) {
	absoluteBit := row*f.binCount + bin
	return absoluteBit / 64, uint(absoluteBit % 64)
}

// Insert sets, for every hash function i in [0,H), the bit for (row_i, bin).
// Safe for concurrent use from multiple goroutines, including goroutines
// targeting the same word, via an atomic compare-and-swap OR loop (spec.md
// §5 only requires disjoint bins per thread for performance, not
// correctness; the CAS loop makes the stronger guarantee cheaply).
func (f *IBF) Insert(hash uint64, bin uint64) {
	for i := uint8(0); i < f.hashes; i++ {
		word, bitOffset := f.wordAndBit(f.row(hash, i), bin)
		bit := uint64(1) << bitOffset
		for {
			old := atomic.LoadUint64(&f.words[word])
			if old&bit != 0 {
				break
			}
			if atomic.CompareAndSwapUint64(&f.words[word], old, old|bit) {
				break
			}
		}
	}
}

// stripe returns the B-bit-wide word-aligned slice of words making up row.
func (f *IBF) stripe(row uint64) []uint64 {
	wordsPerRow := f.binCount / 64
	start := row * wordsPerRow
	return f.words[start : start+wordsPerRow]
}

// CountingAgent and MembershipAgent (counting.go, membership.go) provide
// the bulk query operations over the stripes this type exposes.
