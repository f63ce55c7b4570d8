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

import "testing"

func TestLemmaTauNeverBelowOne(t *testing.T) {
	p := &Parameters{K: 20, Window: 24, ErrorRate: 10, Mode: Lemma}
	if got := p.Get(50); got != 1 {
		t.Errorf("expected tau clamped to 1 under a huge error rate, got %d", got)
	}
}

func TestLemmaTauMonotonicInLength(t *testing.T) {
	p := &Parameters{K: 20, Window: 24, ErrorRate: 0.01, Mode: Lemma}
	prev := p.Get(100)
	for _, l := range []int{200, 500, 1000, 5000} {
		cur := p.Get(l)
		if cur < prev {
			t.Errorf("tau decreased with length: Get(%d)=%d after previous=%d", l, cur, prev)
		}
		prev = cur
	}
}

func TestPercentageTau(t *testing.T) {
	p := &Parameters{K: 20, Window: 20, Rho: 0.5, Mode: Percentage}
	want := percentageTau(1000, 0.5)
	got := p.Get(1000)
	if got != want {
		t.Errorf("Get(1000) = %d, want %d", got, want)
	}
	if want < 1 {
		t.Errorf("percentage tau must be >= 1")
	}
}

// TestLemmaTauMatchesSpecExample checks spec.md's concrete scenario: |m|=20,
// k=4, e=1 => tau=16.
func TestLemmaTauMatchesSpecExample(t *testing.T) {
	p := &Parameters{K: 4, Window: 8, ErrorRate: 1, Mode: Lemma}
	if got := p.Get(20); got != 16 {
		t.Errorf("Get(20) = %d, want 16", got)
	}
}

func TestProbabilisticTauMonotonicAndCached(t *testing.T) {
	p := &Parameters{
		K: 20, Window: 24, ErrorRate: 0.02, PValue: 0.01,
		Mode: Probabilistic, LengthMin: 50, LengthMax: 2000,
	}
	if err := p.LoadOrBuildTable(""); err != nil {
		t.Fatal(err)
	}

	prev := p.Get(50)
	for _, l := range []int{100, 500, 1000, 2000} {
		cur := p.Get(l)
		if cur < prev {
			t.Errorf("probabilistic tau decreased with length: Get(%d)=%d after previous=%d", l, cur, prev)
		}
		prev = cur
	}

	if got := p.Get(1); got < 1 {
		t.Errorf("tau must always be >= 1, got %d", got)
	}
}

func TestProbabilisticCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p1 := &Parameters{
		K: 16, Window: 20, ErrorRate: 0.03, PValue: 0.05,
		Mode: Probabilistic, LengthMin: 100, LengthMax: 300,
	}
	if err := p1.LoadOrBuildTable(dir); err != nil {
		t.Fatal(err)
	}

	p2 := &Parameters{
		K: 16, Window: 20, ErrorRate: 0.03, PValue: 0.05,
		Mode: Probabilistic, LengthMin: 100, LengthMax: 300,
	}
	if err := p2.LoadOrBuildTable(dir); err != nil {
		t.Fatal(err)
	}

	for l := 100; l <= 300; l += 50 {
		if p1.Get(l) != p2.Get(l) {
			t.Errorf("cached table diverged at length %d: %d vs %d", l, p1.Get(l), p2.Get(l))
		}
	}
}

func TestValidateRejectsBadParameters(t *testing.T) {
	bad := []*Parameters{
		{K: 0, Window: 10, Mode: Lemma},
		{K: 10, Window: 5, Mode: Lemma},
		{K: 10, Window: 10, Mode: Percentage, Rho: 0},
		{K: 10, Window: 10, Mode: Probabilistic, PValue: 0},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
