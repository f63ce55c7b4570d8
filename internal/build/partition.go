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

package build

import "math/bits"

// PartitionConfig shards the 64-bit hash space into Parts disjoint pieces
// by the Parts' most significant bits, so the same HashPartition function
// run at build time and query time agrees on which of the P IBFs a given
// hash belongs to (spec.md §4.7 point 3: build and query MUST use an
// identical hash_partition).
type PartitionConfig struct {
	Parts int // must be a power of 2
}

// HashPartition returns which of [0,Parts) a hash belongs to.
func (c PartitionConfig) HashPartition(hash uint64) uint64 {
	if c.Parts <= 1 {
		return 0
	}
	shiftBits := bits.Len(uint(c.Parts - 1)) // ceil(log2(Parts))
	return hash >> (64 - shiftBits)
}
