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

// Package shape implements gapped k-mer shapes and the canonical hash used
// by both the build and query paths.
//
// A Shape is a bitmask over [0,k) selecting which positions of a k-mer
// contribute to its hash. Both ends of the mask must be set and the shape's
// weight (number of set bits) determines the seed used to de-bias low-weight
// shapes.
package shape

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidK means k is outside [1,32].
var ErrInvalidK = errors.New("shape: k must be in [1,32]")

// ErrInvalidMask means the mask does not have both end positions set, or has
// a weight of zero.
var ErrInvalidMask = errors.New("shape: both ends of the mask must be set")

// Shape is a gapped k-mer mask.
type Shape struct {
	Mask uint64 // bitmask over [0,K)
	K    uint8  // k-mer length, 1 <= K <= 32
}

// Weight returns the number of ones in Mask, i.e. the number of positions
// that actually contribute to the hash.
func (s Shape) Weight() uint8 {
	return uint8(bits.OnesCount64(s.Mask))
}

// Ungapped returns a Shape of length k whose mask selects every position.
func Ungapped(k uint8) (Shape, error) {
	if k < 1 || k > 32 {
		return Shape{}, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	var mask uint64
	if k == 64 {
		mask = ^uint64(0)
	} else {
		mask = uint64(1)<<k - 1
	}
	return Shape{Mask: mask, K: k}, nil
}

// New validates and returns a gapped shape. Both bit 0 and bit (k-1) of mask
// must be set.
func New(mask uint64, k uint8) (Shape, error) {
	if k < 1 || k > 32 {
		return Shape{}, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if mask == 0 {
		return Shape{}, ErrInvalidMask
	}
	if mask&1 == 0 || mask&(uint64(1)<<(k-1)) == 0 {
		return Shape{}, ErrInvalidMask
	}
	return Shape{Mask: mask, K: k}, nil
}

// AdjustSeed derives the XOR seed used by CanonicalHash from a shape's
// weight, de-biasing low-weight (highly gapped) shapes. Build and query MUST
// call this with the same weight so that the same k-mer hashes identically
// in both paths.
//
// The construction matches SeqAn3's raptor::adjust_seed: a fixed base
// constant XORed with an all-ones suffix shifted so that shapes with fewer
// informative bits get a seed with more mixed-in entropy.
func AdjustSeed(weight uint8) uint64 {
	const base uint64 = 0x8F3F73B5CF1C9ADE
	shift := uint(32 - weight)
	if shift > 63 {
		shift = 63
	}
	return base ^ (^uint64(0) << shift)
}

// mix is a splitmix64-style avalanching finalizer: deterministic, fast, and
// good bit-diffusion for 64-bit inputs.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// gather extracts the bits of v selected by mask into a compact integer,
// preserving their relative order (the highest selected position ends up as
// the most significant bit of the result).
func gather(v, mask uint64) uint64 {
	var out uint64
	for pos := 63; pos >= 0; pos-- {
		bit := uint64(1) << pos
		if mask&bit == 0 {
			continue
		}
		out <<= 1
		if v&bit != 0 {
			out |= 1
		}
	}
	return out
}

// CanonicalHash computes the canonical hash of a k-mer given its forward and
// reverse-complement 2-bit-packed encodings, this shape, and a seed (see
// AdjustSeed). Both encodings are gathered through the shape mask, each mask
// position selecting one 2-bit base, the lexicographically smaller of the
// two gathered values is chosen (so the hash is strand-independent), XORed
// with seed, and avalanched.
func (s Shape) CanonicalHash(kmer, kmerRC uint64, seed uint64) uint64 {
	var mask uint64
	for pos := uint8(0); pos < s.K; pos++ {
		if s.Mask&(uint64(1)<<pos) != 0 {
			mask |= uint64(3) << (2 * pos)
		}
	}
	x := gather(kmer, mask)
	xr := gather(kmerRC, mask)
	if xr < x {
		x = xr
	}
	return mix(x ^ seed)
}
