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

package shape

import "testing"

func TestUngapped(t *testing.T) {
	s, err := Ungapped(4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mask != 0b1111 {
		t.Errorf("mask = %b, want 1111", s.Mask)
	}
	if s.Weight() != 4 {
		t.Errorf("weight = %d, want 4", s.Weight())
	}
}

func TestNewRejectsOpenEnds(t *testing.T) {
	if _, err := New(0b0110, 4); err == nil {
		t.Error("expected error for mask missing both ends")
	}
	if _, err := New(0, 4); err == nil {
		t.Error("expected error for empty mask")
	}
	if _, err := New(0b1001, 0); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := New(0b1001, 4); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	s, err := Ungapped(21)
	if err != nil {
		t.Fatal(err)
	}
	seed := AdjustSeed(s.Weight())

	var kmer, kmerRC uint64 = 0x1234567, 0x89ABCDE
	h1 := s.CanonicalHash(kmer, kmerRC, seed)
	h2 := s.CanonicalHash(kmer, kmerRC, seed)
	if h1 != h2 {
		t.Fatalf("hash is not deterministic: %d != %d", h1, h2)
	}
}

func TestCanonicalHashStrandIndependent(t *testing.T) {
	s, err := Ungapped(10)
	if err != nil {
		t.Fatal(err)
	}
	seed := AdjustSeed(s.Weight())

	// Swapping forward/reverse-complement encodings must yield the same hash.
	var a, b uint64 = 111, 222
	if s.CanonicalHash(a, b, seed) != s.CanonicalHash(b, a, seed) {
		t.Error("canonical hash should be independent of which strand is passed first")
	}
}

func TestAdjustSeedVariesWithWeight(t *testing.T) {
	s1 := AdjustSeed(32)
	s2 := AdjustSeed(8)
	if s1 == s2 {
		t.Error("expected different seeds for different shape weights")
	}
}

func TestGappedShapeDiffersFromUngapped(t *testing.T) {
	ungapped, _ := Ungapped(8)
	gapped, err := New(0b10010011, 8) // both ends + a couple interior bits
	if err != nil {
		t.Fatal(err)
	}
	seed := AdjustSeed(gapped.Weight())

	var kmer, kmerRC uint64 = 0b11001010, 0b01010011
	a := ungapped.CanonicalHash(kmer, kmerRC, seed)
	b := gapped.CanonicalHash(kmer, kmerRC, seed)
	if a == b {
		t.Error("gapped and ungapped shapes should generally diverge on the same k-mer")
	}
}
