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

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shenwei356/raptor/internal/ibf"
)

// PartitionedIBF is P disjoint IBFs, one per shard of PartitionConfig's
// hash space, serialized together as a single index.Payload.
type PartitionedIBF struct {
	Config PartitionConfig
	Parts  []*ibf.IBF
}

var partitionedMagic = [8]byte{'r', 'a', 'p', 't', 'p', 'a', 'r', 't'}

// ErrInvalidMagic means the stream did not start with partitionedMagic.
var ErrInvalidMagic = fmt.Errorf("build: invalid partitioned-ibf magic number")

// Write serializes a magic number, the partition count, then each part's IBF.
func (p *PartitionedIBF) Write(w io.Writer) (int64, error) {
	var n int64
	if err := binary.Write(w, binary.BigEndian, partitionedMagic); err != nil {
		return n, err
	}
	n += 8
	if err := binary.Write(w, binary.BigEndian, uint64(len(p.Parts))); err != nil {
		return n, err
	}
	n += 8
	for _, f := range p.Parts {
		pn, err := f.Write(w)
		n += pn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadPartitionedIBF deserializes a PartitionedIBF previously written by
// Write. Config is rebuilt from the partition count stored in the stream.
func ReadPartitionedIBF(r io.Reader) (*PartitionedIBF, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if magic != partitionedMagic {
		return nil, ErrInvalidMagic
	}

	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}

	parts := make([]*ibf.IBF, count)
	for i := range parts {
		f, err := ibf.Read(r)
		if err != nil {
			return nil, err
		}
		parts[i] = f
	}

	return &PartitionedIBF{Config: PartitionConfig{Parts: int(count)}, Parts: parts}, nil
}
