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

// Package raptorio holds small shared I/O helpers: bin-description file
// parsing and atomic output writes, used by both the build and prepare
// paths.
package raptorio

import (
	"bufio"
	"strings"

	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/xopen"
)

// ReadBinPaths parses a bin description file: one user bin per line, each
// line a whitespace-separated list of input file paths. Blank lines are
// skipped.
func ReadBinPaths(path string) ([][]string, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, index.Wrap(index.IOError, err)
	}
	defer fh.Close()

	var binPaths [][]string
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		binPaths = append(binPaths, strings.Fields(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, index.Wrap(index.IOError, err)
	}
	return binPaths, nil
}
