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

// MembershipAgent is like CountingAgent but only reports which bins crossed
// a threshold; it counts through its own CountingAgent and then filters the
// B-wide count vector. It is what the HIBF query walk (internal/hibf) uses
// at each node.
type MembershipAgent struct {
	counting *CountingAgent
	hits     []uint64 // reused output buffer of bin indices
}

// MembershipAgent returns a MembershipAgent bound to f.
func (f *IBF) MembershipAgent() *MembershipAgent {
	return &MembershipAgent{counting: f.CountingAgent(), hits: make([]uint64, 0, 64)}
}

// MembershipFor returns the bin indices whose count is >= threshold. The
// returned slice is owned by the agent and is overwritten on the next call.
func (a *MembershipAgent) MembershipFor(hashes []uint64, threshold uint16) []uint64 {
	counts := a.counting.BulkCount(hashes)
	hits := a.hits[:0]
	for bin, c := range counts {
		if c >= threshold {
			hits = append(hits, uint64(bin))
		}
	}
	a.hits = hits
	return hits
}
