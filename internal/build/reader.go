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
	"io"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/xopen"
)

// Reader extracts the hash stream for one user bin's input files, calling
// fn once per hash. Two concrete readers exist (spec.md §9 "reader
// polymorphism"): SequenceReader re-derives minimisers from raw sequence
// files, MinimiserReader replays a previously prepared .minimiser file.
type Reader interface {
	HashInto(files []string, fn func(hash uint64)) error
}

// SequenceReader streams minimisers from FASTA/FASTQ input using a fixed
// (shape, window) extractor.
type SequenceReader struct {
	Extractor *minimiser.Extractor
}

// HashInto reads every file in files as a sequence file and calls fn for
// each minimiser of each record.
func (r SequenceReader) HashInto(files []string, fn func(hash uint64)) error {
	for _, path := range files {
		if err := r.hashOneFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r SequenceReader) hashOneFile(path string, fn func(hash uint64)) error {
	reader, err := fastx.NewReader(nil, path, "")
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer reader.Close()

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		r.Extractor.Each(record.Seq.Seq, fn)
	}
	return nil
}

// MinimiserReader replays a little-endian u64 stream previously produced
// by internal/cutoff.Prepare, used when the build is invoked with
// --input-is-minimiser.
type MinimiserReader struct{}

// HashInto reads every file in files as a raw .minimiser stream.
func (MinimiserReader) HashInto(files []string, fn func(hash uint64)) error {
	buf := make([]byte, 8)
	for _, path := range files {
		fh, err := xopen.Ropen(path)
		if err != nil {
			return index.Wrap(index.IOError, err)
		}
		for {
			_, err := io.ReadFull(fh, buf)
			if err != nil {
				break
			}
			fn(binary.LittleEndian.Uint64(buf))
		}
		fh.Close()
	}
	return nil
}
