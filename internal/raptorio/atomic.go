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

package raptorio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/shenwei356/raptor/internal/index"
)

// AtomicWriteFile writes the bytes produced by writeFn to a temporary file
// in the same directory as path, then renames it into place, so a reader
// never observes a partially-written index file (spec.md §7 "no rollback
// of in-flight state is needed because it lives only in memory" — this is
// the corresponding guarantee on the output side, for persisted files).
func AtomicWriteFile(path string, writeFn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	tmpPath := tmp.Name()

	if err := writeFn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return index.Wrap(index.IOError, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return index.Wrap(index.IOError, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return index.Wrap(index.IOError, err)
	}
	return nil
}
