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

package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shenwei356/raptor/internal/shape"
)

var be = binary.BigEndian

// Magic identifies a raptor index file.
var Magic = [8]byte{'r', 'a', 'p', 't', 'o', 'r', 'i', 'x'}

// MainVersion and MinorVersion are the index format's compatibility pair.
// Loaders reject files whose MainVersion differs; MinorVersion differences
// are informational only (see ReadHeader's compatibility check, mirroring the
// teacher's own Main/Minor split).
var (
	MainVersion  uint8 = 1
	MinorVersion uint8 = 0
)

// payloadKind tags which concrete payload follows the header, so Read can
// dispatch to the right decoder without the caller needing to know in
// advance whether the file holds a flat or hierarchical index.
type payloadKind uint8

const (
	payloadIBF payloadKind = iota
	payloadHIBF
	payloadPartitionedIBF
)

// Payload is implemented by *ibf.IBF and *hibf.Tree.
type Payload interface {
	Write(w io.Writer) (int64, error)
}

// Record is the persisted unit described in spec.md §3: format version,
// the (window, shape) the index was built with, the ordered list of user
// bin path groups, and the IBF or HIBF payload itself.
type Record struct {
	Window   int
	Shape    shape.Shape
	BinPaths [][]string // one entry per user bin, each a list of input files
	Kind     payloadKind
	Payload  Payload
}

// NewFlatRecord builds a Record wrapping a single (non-hierarchical) IBF.
func NewFlatRecord(window int, sh shape.Shape, binPaths [][]string, payload Payload) *Record {
	return &Record{Window: window, Shape: sh, BinPaths: binPaths, Kind: payloadIBF, Payload: payload}
}

// NewHIBFRecord builds a Record wrapping a hierarchical IBF tree.
func NewHIBFRecord(window int, sh shape.Shape, binPaths [][]string, payload Payload) *Record {
	return &Record{Window: window, Shape: sh, BinPaths: binPaths, Kind: payloadHIBF, Payload: payload}
}

// NewPartitionedRecord builds a Record wrapping P disjoint IBFs sharded by
// a common hash_partition (spec.md §4.7 point 3).
func NewPartitionedRecord(window int, sh shape.Shape, binPaths [][]string, payload Payload) *Record {
	return &Record{Window: window, Shape: sh, BinPaths: binPaths, Kind: payloadPartitionedIBF, Payload: payload}
}

// IsPartitioned reports whether the record's payload is a sharded set of
// IBFs rather than a single flat IBF or HIBF tree.
func (r *Record) IsPartitioned() bool { return r.Kind == payloadPartitionedIBF }

// IsHIBF reports whether the record's payload is a hierarchical tree rather
// than a single flat IBF.
func (r *Record) IsHIBF() bool { return r.Kind == payloadHIBF }

// Write serializes the record header and bin-path table, then delegates the
// payload itself to r.Payload.Write.
func (r *Record) Write(w io.Writer) (int64, error) {
	var n int64

	if err := binary.Write(w, be, Magic); err != nil {
		return n, err
	}
	n += 8

	meta := [4]uint8{MainVersion, MinorVersion, uint8(r.Kind), r.Shape.K}
	if err := binary.Write(w, be, meta); err != nil {
		return n, err
	}
	n += 4

	header := [2]uint64{uint64(r.Window), r.Shape.Mask}
	if err := binary.Write(w, be, header); err != nil {
		return n, err
	}
	n += 16

	if err := binary.Write(w, be, uint64(len(r.BinPaths))); err != nil {
		return n, err
	}
	n += 8
	for _, group := range r.BinPaths {
		if err := binary.Write(w, be, uint64(len(group))); err != nil {
			return n, err
		}
		n += 8
		for _, p := range group {
			b := []byte(p)
			if err := binary.Write(w, be, uint64(len(b))); err != nil {
				return n, err
			}
			n += 8
			if _, err := w.Write(b); err != nil {
				return n, err
			}
			n += int64(len(b))
		}
	}

	pn, err := r.Payload.Write(w)
	n += pn
	if err != nil {
		return n, err
	}
	return n, nil
}

// ReadHeader parses the magic, version, and bin-path table of a record
// without decoding the payload, returning the payload kind so the caller
// can dispatch to ibf.Read or hibf.Read. This mirrors the IndexFactory
// pattern from the original implementation: probe the header, then decide
// what to build.
func ReadHeader(r io.Reader) (window int, sh shape.Shape, binPaths [][]string, kind payloadKind, err error) {
	var magic [8]byte
	if _, err = io.ReadFull(r, magic[:]); err != nil {
		return
	}
	if magic != Magic {
		err = ErrInvalidFileFormat
		return
	}

	var meta [4]uint8
	if err = binary.Read(r, be, &meta); err != nil {
		return
	}
	if meta[0] != MainVersion {
		err = fmt.Errorf("%w: file is version %d.%d, reader supports %d.x", ErrVersionMismatch, meta[0], meta[1], MainVersion)
		return
	}
	kind = payloadKind(meta[2])
	k := meta[3]

	var header [2]uint64
	if err = binary.Read(r, be, &header); err != nil {
		return
	}
	window = int(header[0])
	sh, err = shape.New(header[1], k)
	if err != nil {
		return
	}

	var nGroups uint64
	if err = binary.Read(r, be, &nGroups); err != nil {
		return
	}
	binPaths = make([][]string, nGroups)
	for i := range binPaths {
		var nFiles uint64
		if err = binary.Read(r, be, &nFiles); err != nil {
			return
		}
		group := make([]string, nFiles)
		for j := range group {
			var l uint64
			if err = binary.Read(r, be, &l); err != nil {
				return
			}
			b := make([]byte, l)
			if _, err = io.ReadFull(r, b); err != nil {
				return
			}
			group[j] = string(b)
		}
		binPaths[i] = group
	}
	return
}

// PayloadIBF and PayloadHIBF let callers compare against the kind returned
// by ReadHeader without importing the unexported payloadKind type directly.
const (
	PayloadIBF             = payloadIBF
	PayloadHIBF            = payloadHIBF
	PayloadPartitionedIBF  = payloadPartitionedIBF
)
