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

// Package cutoff implements the minimiser occurrence cutoff policy and the
// "prepare" step that turns a raw sequence file into a persisted minimiser
// file plus header, with resumable-on-interrupt semantics.
package cutoff

import (
	"os"
	"strings"
)

// Policy maps an input file's (approximate, decompressed-equivalent) size to
// an occurrence cutoff in {1,2,3}. The boundaries are a pinned table, not a
// runtime-tunable parameter: the original implementation hard-codes them,
// and tests assert the exact tiers (spec.md §9 "Open Question" resolution,
// see DESIGN.md).
type Policy struct{}

// tier boundaries, in bytes, for the *compressed-equivalent* file size (a
// compressed file's size is scaled up before comparing, since occurrence
// counts scale with uncompressed content, not with bytes on disk).
const (
	tier2Bound int64 = 314572800  // 300 MiB
	tier3Bound int64 = 1073741824 // 1 GiB

	compressedSizeFactor = 4 // rough compression ratio for FASTA/FASTQ text
)

// Get returns the occurrence cutoff for a file of the given raw on-disk
// size. compressed indicates whether that size is post-compression, in
// which case it is scaled up before the tier comparison.
func (Policy) Get(fileSize int64, compressed bool) uint8 {
	size := fileSize
	if compressed {
		size *= compressedSizeFactor
	}
	switch {
	case size < tier2Bound:
		return 1
	case size < tier3Bound:
		return 2
	default:
		return 3
	}
}

// GetForPath stats path and returns its cutoff, detecting compression from
// its extension.
func (p Policy) GetForPath(path string) (uint8, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return p.Get(fi.Size(), IsCompressed(path)), nil
}

// IsCompressed reports whether path's extension indicates a compressed
// file, matching the set xopen already transparently decompresses.
func IsCompressed(path string) bool {
	for _, suf := range []string{".gz", ".bz2", ".xz", ".zst"} {
		if strings.HasSuffix(path, suf) {
			return true
		}
	}
	return false
}
