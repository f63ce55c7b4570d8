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

package hibf

import "github.com/shenwei356/raptor/internal/ibf"

// SubtreeSizer computes the representative hash set used to size a merged
// subtree's IBF: the union of its children's largest ("max bin") sampled
// minimiser sets. Ported from the original initialise_max_bin_kmers, which
// walks a merged node's children collecting the single biggest user bin's
// k-mer set per child rather than every child's full set, as a cheap
// proxy for that subtree's worst-case occupancy.
type SubtreeSizer struct {
	// ChildHashes maps a child slot's identity (by index into the caller's
	// own bin-path table) to the hash set contributed by that child's
	// largest constituent user bin.
	ChildHashes [][]uint64
}

// RepresentativeHashes returns the deduplicated union of every child's
// contributed hash set, used as the stand-in cardinality for sizing the
// merged subtree's own IBF via ibf.SizeForFPR.
func (s SubtreeSizer) RepresentativeHashes() []uint64 {
	seen := make(map[uint64]struct{})
	for _, hs := range s.ChildHashes {
		for _, h := range hs {
			seen[h] = struct{}{}
		}
	}
	out := make([]uint64, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	return out
}

// SizeMergedNode computes (N, estimated cardinality) for a merged subtree
// node given its children's representative hash contributions, a target
// false-positive rate, and a hash-function count h.
func SizeMergedNode(sizer SubtreeSizer, h uint8, p float64) (rows uint64, cardinality uint64) {
	rep := sizer.RepresentativeHashes()
	cardinality = uint64(len(rep))
	rows = ibf.SizeForFPR(cardinality, h, p)
	return rows, cardinality
}

// NewFlatTree wraps an already-filled IBF as a single-node HIBF whose every
// occupied technical bin is a direct leaf, TB i -> user bin i. This is the
// layout used when no external merge plan is supplied (spec.md §4.7 names a
// "chopper-generated HIBF layout" as an alternative input; that layout
// planner is a separate tool this package only consumes, so the degenerate
// no-merging layout is what raptor produces on its own).
func NewFlatTree(f *ibf.IBF, binCount int) *Tree {
	slots := make([]Slot, f.BinCount())
	for i := 0; i < binCount; i++ {
		slots[i] = Slot{Kind: SlotLeaf, UserBin: i}
	}
	return &Tree{Nodes: []Node{{IBF: f, Slots: slots}}}
}
