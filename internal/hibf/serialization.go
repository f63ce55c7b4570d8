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

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/shenwei356/raptor/internal/ibf"
)

var be = binary.BigEndian

// Magic identifies a standalone HIBF payload.
var Magic = [8]byte{'r', 'a', 'p', 't', 'h', 'i', 'b', 'f'}

// ErrInvalidMagic means the stream did not start with Magic.
var ErrInvalidMagic = fmt.Errorf("hibf: invalid magic number")

// Write serializes the tree: magic, node count, then per node its IBF
// (delegated to ibf.IBF.Write) followed by its slot table.
func (t *Tree) Write(w io.Writer) (int64, error) {
	var n int64
	if err := binary.Write(w, be, Magic); err != nil {
		return n, err
	}
	n += 8

	if err := binary.Write(w, be, uint64(len(t.Nodes))); err != nil {
		return n, err
	}
	n += 8

	for _, node := range t.Nodes {
		nn, err := node.IBF.Write(w)
		n += nn
		if err != nil {
			return n, err
		}

		if err := binary.Write(w, be, uint64(len(node.Slots))); err != nil {
			return n, err
		}
		n += 8

		for _, slot := range node.Slots {
			rec := [4]uint64{
				uint64(slot.Kind),
				uint64(slot.UserBin),
				uint64(slot.Child),
				math.Float64bits(slot.TauScale),
			}
			if err := binary.Write(w, be, rec); err != nil {
				return n, err
			}
			n += 32
		}
	}
	return n, nil
}

// Read deserializes a Tree previously written by Write.
func Read(r io.Reader) (*Tree, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	var nodeCount uint64
	if err := binary.Read(r, be, &nodeCount); err != nil {
		return nil, err
	}

	nodes := make([]Node, nodeCount)
	for i := range nodes {
		f, err := ibf.Read(r)
		if err != nil {
			return nil, err
		}
		nodes[i].IBF = f

		var slotCount uint64
		if err := binary.Read(r, be, &slotCount); err != nil {
			return nil, err
		}
		slots := make([]Slot, slotCount)
		for j := range slots {
			var rec [4]uint64
			if err := binary.Read(r, be, &rec); err != nil {
				return nil, err
			}
			slots[j] = Slot{
				Kind:     SlotKind(rec[0]),
				UserBin:  int(rec[1]),
				Child:    int(rec[2]),
				TauScale: math.Float64frombits(rec[3]),
			}
		}
		nodes[i].Slots = slots
	}

	return &Tree{Nodes: nodes}, nil
}
