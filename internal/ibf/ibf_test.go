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

package ibf

import (
	"bytes"
	"testing"
)

func TestNewRejectsBadHashCount(t *testing.T) {
	if _, err := New(64, 1, 100); err == nil {
		t.Error("expected error for h < 2")
	}
	if _, err := New(64, 6, 100); err == nil {
		t.Error("expected error for h > MaxHashFunctions")
	}
}

func TestNewRoundsBinCountUp(t *testing.T) {
	f, err := New(70, 3, 100)
	if err != nil {
		t.Fatal(err)
	}
	if f.BinCount() != 128 {
		t.Errorf("expected bin count rounded up to 128, got %d", f.BinCount())
	}
}

func TestInsertThenBulkCountFindsOwnBin(t *testing.T) {
	f, err := New(128, 3, 1000)
	if err != nil {
		t.Fatal(err)
	}

	hashes := []uint64{1, 2, 3, 4, 5}
	for _, h := range hashes {
		f.Insert(h, 7)
	}

	agent := f.CountingAgent()
	counts := agent.BulkCount(hashes)
	if counts[7] != uint16(len(hashes)) {
		t.Errorf("expected bin 7 to count all %d hashes, got %d", len(hashes), counts[7])
	}

	for bin, c := range counts {
		if bin == 7 {
			continue
		}
		if c == uint16(len(hashes)) {
			t.Errorf("bin %d unexpectedly reports full membership", bin)
		}
	}
}

func TestMembershipForRespectsThreshold(t *testing.T) {
	f, err := New(64, 2, 500)
	if err != nil {
		t.Fatal(err)
	}

	hashes := []uint64{10, 20, 30, 40}
	for _, h := range hashes[:2] {
		f.Insert(h, 3)
	}
	for _, h := range hashes {
		f.Insert(h, 9)
	}

	agent := f.MembershipAgent()

	hits := agent.MembershipFor(hashes, uint16(len(hashes)))
	found9 := false
	for _, b := range hits {
		if b == 9 {
			found9 = true
		}
		if b == 3 {
			t.Errorf("bin 3 should not meet full threshold, only got 2/%d hashes", len(hashes))
		}
	}
	if !found9 {
		t.Errorf("expected bin 9 to meet full threshold")
	}

	hits = agent.MembershipFor(hashes, 2)
	found3 := false
	for _, b := range hits {
		if b == 3 {
			found3 = true
		}
	}
	if !found3 {
		t.Errorf("expected bin 3 to meet threshold of 2")
	}
}

func TestSizeForFPRIncreasesWithMoreElements(t *testing.T) {
	small := SizeForFPR(100, 3, 0.01)
	large := SizeForFPR(10000, 3, 0.01)
	if large <= small {
		t.Errorf("expected rows to grow with element count: small=%d large=%d", small, large)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	f, err := New(128, 4, 500)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < 20; i++ {
		f.Insert(i*97+3, i%128)
	}

	var buf bytes.Buffer
	if _, err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.BinCount() != f.BinCount() || got.Rows() != f.Rows() || got.HashFunctionCount() != f.HashFunctionCount() {
		t.Fatalf("header mismatch: got B=%d N=%d H=%d, want B=%d N=%d H=%d",
			got.BinCount(), got.Rows(), got.HashFunctionCount(), f.BinCount(), f.Rows(), f.HashFunctionCount())
	}
	if !bytes.Equal(wordsAsBytes(got.words), wordsAsBytes(f.words)) {
		t.Errorf("word data mismatch after round trip")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewReader(make([]byte, 64))
	if _, err := Read(buf); err != ErrInvalidMagic {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}

func wordsAsBytes(words []uint64) []byte {
	out := make([]byte, 0, len(words)*8)
	for _, w := range words {
		for i := 7; i >= 0; i-- {
			out = append(out, byte(w>>(8*i)))
		}
	}
	return out
}
