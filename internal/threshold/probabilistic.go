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

package threshold

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/shenwei356/raptor/internal/index"
	"github.com/shenwei356/xopen"
)

// conservationProbability is the probability that a single minimiser of a
// true-positive bin survives a per-base error rate e over a window of w
// bases with k-mer size k: a minimiser is preserved if none of its w
// underlying bases are mutated, since any single substitution inside the
// window can shift which k-mer is minimal.
func conservationProbability(k, window int, e float64) float64 {
	if e <= 0 {
		return 1
	}
	if e >= 1 {
		return 0
	}
	return math.Pow(1-e, float64(window))
}

// tauForBinomialTail returns the largest tau such that, for X ~
// Binomial(trials, p), P(X >= tau) >= 1-alpha. Computed by walking the
// survival function from trials down to 0, which is numerically stable for
// the trial counts this package deals with (bounded by minimiser counts of
// realistic query lengths).
func tauForBinomialTail(trials int, p, alpha float64) uint64 {
	if trials <= 0 {
		return 1
	}
	target := 1 - alpha

	logP := math.Log(p)
	logQ := math.Log(1 - p)

	// logPMF[i] = log P(X = i), built via the recurrence
	// P(X=i) = P(X=i-1) * (n-i+1)/i * p/(1-p).
	logPMF := make([]float64, trials+1)
	logPMF[0] = float64(trials) * logQ
	for i := 1; i <= trials; i++ {
		logPMF[i] = logPMF[i-1] + math.Log(float64(trials-i+1)/float64(i)) + logP - logQ
	}

	tailSum := 0.0
	for tau := trials; tau >= 0; tau-- {
		tailSum += math.Exp(logPMF[tau])
		if tailSum >= target {
			return uint64(tau)
		}
	}
	return 1
}

// probabilisticTau returns tau(m) from p's precomputed table, building (and
// disk-caching) the table on first use. The table is indexed directly by
// minimiser count m, over [LengthMin, LengthMax] (spec.md §4.6's `L` range,
// read here as bounds on |m| rather than nucleotide length, since
// threshold.get is always called with |m|).
func (p *Parameters) probabilisticTau(m int) uint64 {
	if p.table == nil {
		p.table = p.buildTable()
	}
	idx := m - p.LengthMin
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.table) {
		idx = len(p.table) - 1
	}
	if idx < 0 {
		return 1
	}
	return p.table[idx]
}

func (p *Parameters) buildTable() []uint64 {
	prob := conservationProbability(p.K, p.Window, p.ErrorRate)
	table := make([]uint64, p.LengthMax-p.LengthMin+1)
	for trials := p.LengthMin; trials <= p.LengthMax; trials++ {
		table[trials-p.LengthMin] = tauForBinomialTail(trials, prob, p.PValue)
	}
	return table
}

// cacheKey identifies a precomputed table's parameters; two Parameters that
// would produce the same table share a cache entry.
type cacheKey struct {
	Window, K           int
	ErrorRate, PValue   float64
	LengthMin, LengthMax int
}

type cacheEntry struct {
	Key   cacheKey
	Table []uint64
}

func (p *Parameters) cacheKey() cacheKey {
	return cacheKey{
		Window: p.Window, K: p.K,
		ErrorRate: p.ErrorRate, PValue: p.PValue,
		LengthMin: p.LengthMin, LengthMax: p.LengthMax,
	}
}

// LoadOrBuildTable populates p's probabilistic lookup table, preferring a
// cache file under cacheDir keyed by (w,k,e,alpha,L_range) over
// recomputation. The cache file is written with a .gob extension and is
// itself read/written through xopen so it transparently supports the same
// compressed-file transparency as every other file this module touches.
func (p *Parameters) LoadOrBuildTable(cacheDir string) error {
	if p.Mode != Probabilistic {
		return fmt.Errorf("threshold: LoadOrBuildTable is only meaningful in Probabilistic mode")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	key := p.cacheKey()
	path := cachePath(cacheDir, key)

	if entry, err := readCache(path); err == nil && entry.Key == key {
		p.table = entry.Table
		return nil
	}

	p.table = p.buildTable()

	if cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return index.Wrap(index.IOError, err)
	}
	return writeCache(path, cacheEntry{Key: key, Table: p.table})
}

func cachePath(cacheDir string, key cacheKey) string {
	name := fmt.Sprintf("tau_w%d_k%d_e%.6f_a%.6f_l%d-%d.gob",
		key.Window, key.K, key.ErrorRate, key.PValue, key.LengthMin, key.LengthMax)
	return filepath.Join(cacheDir, name)
}

func readCache(path string) (cacheEntry, error) {
	var entry cacheEntry
	fh, err := xopen.Ropen(path)
	if err != nil {
		return entry, err
	}
	defer fh.Close()

	dec := gob.NewDecoder(fh)
	if err := dec.Decode(&entry); err != nil {
		return entry, err
	}
	return entry, nil
}

func writeCache(path string, entry cacheEntry) error {
	fh, err := xopen.Wopen(path)
	if err != nil {
		return index.Wrap(index.IOError, err)
	}
	defer fh.Close()

	enc := gob.NewEncoder(fh)
	if err := enc.Encode(entry); err != nil {
		return index.Wrap(index.IOError, err)
	}
	return nil
}
