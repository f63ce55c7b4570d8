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

import (
	"encoding/binary"
	"fmt"
	"io"
)

var be = binary.BigEndian

// Magic identifies a standalone IBF payload inside an index file.
var Magic = [8]byte{'r', 'a', 'p', 't', 'i', 'b', 'f', '1'}

// ErrBrokenPayload means the stream ended before all expected bytes were
// read.
var ErrBrokenPayload = fmt.Errorf("ibf: truncated payload")

// ErrInvalidMagic means the stream did not start with Magic.
var ErrInvalidMagic = fmt.Errorf("ibf: invalid magic number")

// Write serializes f: an 8-byte magic, then B/N/H as big-endian uint64s
// (H is widened from uint8), then the raw bit-matrix words.
func (f *IBF) Write(w io.Writer) (int64, error) {
	var n int64
	if err := binary.Write(w, be, Magic); err != nil {
		return n, err
	}
	n += 8

	header := [3]uint64{f.binCount, f.rows, uint64(f.hashes)}
	if err := binary.Write(w, be, header); err != nil {
		return n, err
	}
	n += 24

	if err := binary.Write(w, be, f.words); err != nil {
		return n, err
	}
	n += int64(len(f.words)) * 8

	return n, nil
}

// Read deserializes an IBF previously written by Write.
func Read(r io.Reader) (*IBF, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	var header [3]uint64
	if err := binary.Read(r, be, &header); err != nil {
		return nil, err
	}
	binCount, rows, hashes := header[0], header[1], uint8(header[2])

	wordsPerRow := binCount / 64
	words := make([]uint64, rows*wordsPerRow)
	if err := binary.Read(r, be, words); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokenPayload, err)
	}

	return &IBF{binCount: binCount, rows: rows, hashes: hashes, words: words}, nil
}
