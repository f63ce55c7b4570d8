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
	"fmt"

	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/xopen"
)

// WriteListFile writes outDir/minimiser.list: one line per user bin, the
// path to that bin's first input file's .minimiser output. Ported from the
// original write_list_file; the build orchestrator's minimiser-input mode
// consumes exactly this file.
func WriteListFile(outDir string, binPaths [][]string) error {
	listPath := outDir + "/minimiser.list"
	w, err := xopen.Wopen(listPath)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer w.Close()

	for _, group := range binPaths {
		if len(group) == 0 {
			continue
		}
		path := OutputPath(outDir, group[0]) + ".minimiser"
		if _, err := fmt.Fprintln(w, path); err != nil {
			return index.Wrap(index.IOError, err)
		}
	}
	return nil
}
