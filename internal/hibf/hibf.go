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

// Package hibf implements the Hierarchical Interleaved Bloom Filter: a
// rooted tree of IBFs where a technical bin either resolves directly to a
// user bin (possibly split across several leaves), recurses into a child
// node (merging several user bins under one subtree), or both.
package hibf

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/shenwei356/raptor/internal/ibf"
)

// SlotKind tags what a technical bin resolves to.
type SlotKind uint8

const (
	// SlotEmpty means the technical bin is unassigned (padding).
	SlotEmpty SlotKind = iota
	// SlotLeaf means the technical bin resolves directly to a user bin.
	SlotLeaf
	// SlotChild means the technical bin recurses into a child node.
	SlotChild
)

// Slot is the tagged union spec.md §3 assigns to each technical bin of a
// node: a leaf (user-bin id), or a link to a child node.
type Slot struct {
	Kind     SlotKind
	UserBin  int     // valid when Kind == SlotLeaf
	Child    int     // node id, valid when Kind == SlotChild
	TauScale float64 // threshold scale factor applied when recursing into Child
}

// Node owns one IBF and the technical-bin-to-slot mapping over it.
type Node struct {
	IBF   *ibf.IBF
	Slots []Slot // len == IBF.BinCount()
}

// Tree is a rooted HIBF; Nodes[0] is the root (spec.md §3 "Root has id 0").
type Tree struct {
	Nodes []Node
}

// ErrNoRoot means a Tree has no nodes.
var ErrNoRoot = fmt.Errorf("hibf: tree has no nodes")

// Root returns the tree's root node.
func (t *Tree) Root() (*Node, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNoRoot
	}
	return &t.Nodes[0], nil
}

// ThresholdFunc computes the tau used in a child node from the parent's tau
// and the slot's TauScale; it lets a recursive call
// rescale tau per spec.md §4.5's "threshold scaled for the child's split"
// without hard-coding one scaling policy into Resolve itself.
type ThresholdFunc func(tau uint64, scale float64) uint64

// DefaultThresholdFunc scales tau by the slot's TauScale, rounding to the
// nearest integer, with a floor of 1.
func DefaultThresholdFunc(tau uint64, scale float64) uint64 {
	scaled := uint64(float64(tau)*scale + 0.5)
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// Resolve walks the tree from the root for the given hash set and
// threshold, returning the union of user-bin ids hit. Results are
// deduplicated via roaring.Bitmap: merged bins and split bins both can
// cause the same user-bin id to be emitted more than once across the walk,
// and the bitmap's Add is naturally idempotent (spec.md §4.5 "duplicate
// UB-ids from merged bins are de-duplicated in the final set").
func (t *Tree) Resolve(hashes []uint64, tau uint64, scaleFn ThresholdFunc) (*roaring.Bitmap, error) {
	if scaleFn == nil {
		scaleFn = DefaultThresholdFunc
	}
	hits := roaring.New()
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	t.resolveNode(root, hashes, tau, scaleFn, hits)
	return hits, nil
}

func (t *Tree) resolveNode(n *Node, hashes []uint64, tau uint64, scaleFn ThresholdFunc, hits *roaring.Bitmap) {
	agent := n.IBF.MembershipAgent()
	crossed := agent.MembershipFor(hashes, uint16(clampU16(tau)))

	for _, bin := range crossed {
		slot := n.Slots[bin]
		switch slot.Kind {
		case SlotLeaf:
			hits.Add(uint32(slot.UserBin))
		case SlotChild:
			child := &t.Nodes[slot.Child]
			childTau := scaleFn(tau, slot.TauScale)
			t.resolveNode(child, hashes, childTau, scaleFn, hits)
		case SlotEmpty:
			// padding bin, never assigned; nothing to do.
		}
	}
}

func clampU16(v uint64) uint64 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return v
}
