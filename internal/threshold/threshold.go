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

// Package threshold computes the minimum per-bin minimiser count ("tau")
// required to declare a query a hit against a bin, under one of three
// selectable models.
package threshold

import (
	"fmt"
	"math"
)

// Mode selects which of the three threshold models Parameters.Get uses.
type Mode int

const (
	// Lemma computes tau = max(1, |m| - k*e): deterministic, conservative,
	// no length distribution assumptions.
	Lemma Mode = iota
	// Percentage computes tau = ceil(|m| * rho).
	Percentage
	// Probabilistic precomputes a per-length lookup table so that a
	// true-positive bin reaches tau with probability >= 1-alpha.
	Probabilistic
)

func (m Mode) String() string {
	switch m {
	case Lemma:
		return "lemma"
	case Percentage:
		return "percentage"
	case Probabilistic:
		return "probabilistic"
	default:
		return "unknown"
	}
}

// Parameters bundles everything a query run needs to compute tau. It is
// constructed once per run and consulted per record (spec.md §3).
type Parameters struct {
	K         int
	Window    int
	ErrorRate float64 // e: maximum allowed per-query errors (lemma) or error rate (probabilistic)
	PValue    float64 // alpha: false-negative tolerance for the probabilistic model
	Rho       float64 // rho: required minimiser fraction for the percentage model
	Mode      Mode

	// LengthMin/LengthMax bound the probabilistic model's precomputed
	// table; ignored by the other two modes.
	LengthMin int
	LengthMax int

	table []uint64 // index 0 corresponds to LengthMin, built lazily by Probabilistic's Get
}

// Validate checks the fields relevant to Mode.
func (p *Parameters) Validate() error {
	if p.K <= 0 || p.Window < p.K {
		return fmt.Errorf("threshold: invalid k=%d window=%d", p.K, p.Window)
	}
	switch p.Mode {
	case Lemma:
		if p.ErrorRate < 0 {
			return fmt.Errorf("threshold: lemma mode requires error rate >= 0")
		}
	case Percentage:
		if p.Rho <= 0 || p.Rho > 1 {
			return fmt.Errorf("threshold: percentage mode requires rho in (0,1]")
		}
	case Probabilistic:
		if p.PValue <= 0 || p.PValue >= 1 {
			return fmt.Errorf("threshold: probabilistic mode requires p-value in (0,1)")
		}
		if p.LengthMin <= 0 || p.LengthMax < p.LengthMin {
			return fmt.Errorf("threshold: probabilistic mode requires a valid [LengthMin,LengthMax] range")
		}
	default:
		return fmt.Errorf("threshold: unknown mode %v", p.Mode)
	}
	return nil
}

// Get returns tau for a query that produced m minimisers (spec.md §4.8(b):
// `tau = threshold.get(|m|)`), under p.Mode. All modes are clamped to
// tau >= 1.
func (p *Parameters) Get(m int) uint64 {
	var tau uint64
	switch p.Mode {
	case Lemma:
		tau = lemmaTau(m, p.K, p.ErrorRate)
	case Percentage:
		tau = percentageTau(m, p.Rho)
	case Probabilistic:
		tau = p.probabilisticTau(m)
	default:
		tau = 1
	}
	if tau < 1 {
		tau = 1
	}
	return tau
}

func lemmaTau(m, k int, e float64) uint64 {
	t := float64(m) - float64(k)*e
	if t < 1 {
		t = 1
	}
	return uint64(t)
}

func percentageTau(m int, rho float64) uint64 {
	t := math.Ceil(float64(m) * rho)
	if t < 1 {
		t = 1
	}
	return uint64(t)
}
