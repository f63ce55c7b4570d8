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

package cutoff

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/raptor/internal/minimiser"
	"github.com/shenwei356/xopen"
	"github.com/twotwotwo/sorts/sortutil"
)

// le is little-endian: the .minimiser file format is a raw little-endian
// u64 stream (spec.md §4.3/§6), distinct from the big-endian index
// container format used by internal/index and internal/ibf.
var le = binary.LittleEndian

// maxOccurrence is the saturation point for the occurrence table; above
// this the exact count no longer matters since every cutoff tier is below
// it (ported from compute_minimiser.cpp's choice of 254 to keep the table
// in a single byte per entry).
const maxOccurrence = 254

// Result describes the outputs of preparing one input file.
type Result struct {
	MinimiserPath string
	HeaderPath    string
	Count         uint64
	Cutoff        uint8
	Skipped       bool // true if already-done outputs were reused
}

// OutputPath mirrors the original get_output_path: the output file name is
// the input's base name with any compression suffix stripped, placed under
// outDir, with no extension (callers append .minimiser/.header/.in_progress
// themselves).
func OutputPath(outDir, inputFile string) string {
	base := filepath.Base(inputFile)
	if IsCompressed(inputFile) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, base)
}

// Prepare computes the minimiser table for inputFiles (files representing
// one user bin; typically length 1), selects a cutoff from policy keyed on
// the first file's size, and writes the .minimiser and .header outputs
// under outDir. It is resumable: a ".in_progress" sentinel is created
// before work starts and removed only on success, so a prior interrupted
// run is detected and redone while a completed run is skipped.
func Prepare(outDir string, inputFiles []string, extractor *minimiser.Extractor, policy Policy) (Result, error) {
	if len(inputFiles) == 0 {
		return Result{}, fmt.Errorf("cutoff: no input files given")
	}

	outputBase := OutputPath(outDir, inputFiles[0])
	minimiserFile := outputBase + ".minimiser"
	headerFile := outputBase + ".header"
	progressFile := outputBase + ".in_progress"

	_, errMin := os.Stat(minimiserFile)
	_, errHdr := os.Stat(headerFile)
	_, errProg := os.Stat(progressFile)
	alreadyDone := errMin == nil && errHdr == nil && errProg != nil
	if alreadyDone {
		return Result{MinimiserPath: minimiserFile, HeaderPath: headerFile, Skipped: true}, nil
	}

	sentinel, err := os.Create(progressFile)
	if err != nil {
		return Result{}, index.Wrap(index.IOError, err)
	}
	sentinel.Close()

	table := make(map[uint64]uint8, 1<<20)
	for _, f := range inputFiles {
		if err := countFile(f, extractor, table); err != nil {
			return Result{}, err
		}
	}

	cutoffVal, err := policy.GetForPath(inputFiles[0])
	if err != nil {
		return Result{}, index.Wrap(index.IOError, err)
	}

	kept := make([]uint64, 0, len(table))
	for h, n := range table {
		if n >= cutoffVal {
			kept = append(kept, h)
		}
	}
	sortutil.Uint64s(kept) // determinism: map iteration order is random

	if err := writeMinimiserFile(minimiserFile, kept); err != nil {
		return Result{}, err
	}
	if err := writeHeaderFile(headerFile, extractor, cutoffVal, uint64(len(kept))); err != nil {
		return Result{}, err
	}

	if err := os.Remove(progressFile); err != nil {
		return Result{}, index.Wrap(index.IOError, err)
	}

	return Result{MinimiserPath: minimiserFile, HeaderPath: headerFile, Count: uint64(len(kept)), Cutoff: cutoffVal}, nil
}

func countFile(path string, extractor *minimiser.Extractor, table map[uint64]uint8) error {
	reader, err := fastx.NewReader(nil, path, "")
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer reader.Close()

	for {
		record, err := reader.Read()
		if err != nil {
			break // EOF and other terminal read errors end the stream
		}
		extractor.Each(record.Seq.Seq, func(h uint64) {
			if table[h] < maxOccurrence {
				table[h]++
			}
		})
	}
	return nil
}

func writeMinimiserFile(path string, hashes []uint64) error {
	w, err := xopen.Wopen(path)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer w.Close()

	buf := make([]byte, 8)
	for _, h := range hashes {
		le.PutUint64(buf, h)
		if _, err := w.Write(buf); err != nil {
			return index.Wrap(index.IOError, err)
		}
	}
	return nil
}

func writeHeaderFile(path string, extractor *minimiser.Extractor, cutoffVal uint8, count uint64) error {
	w, err := xopen.Wopen(path)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer w.Close()

	_, err = fmt.Fprintf(w, "%x\t%d\t%d\t%d\n", extractor.Shape.Mask, extractor.W, cutoffVal, count)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	return nil
}
