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

// Package index defines the persisted index record and the shared error
// kinds reported across the build and query paths.
package index

import "errors"

// Kind classifies an error so that callers (in particular cmd/raptor) can
// choose an exit code and a log level without string-matching messages.
type Kind int

const (
	// InvalidArgument means a CLI flag or API argument failed validation
	// before any work started.
	InvalidArgument Kind = iota
	// IOError means a filesystem or network operation failed.
	IOError
	// FormatError means an index or minimiser file is structurally corrupt.
	FormatError
	// VersionMismatch means a loaded index's (w,k,shape) or file version
	// differs from what the caller expects.
	VersionMismatch
	// ResourceExhausted means an allocation failed, e.g. out of memory
	// while sizing an IBF.
	ResourceExhausted
	// Cancelled means the operation's context was cancelled.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case IOError:
		return "I/O error"
	case FormatError:
		return "format error"
	case VersionMismatch:
		return "version mismatch"
	case ResourceExhausted:
		return "resource exhausted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown error"
	}
}

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns an *Error of the given kind wrapping err, or nil if err is
// nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for conditions that do not carry extra context.
var (
	ErrInvalidFileFormat = errors.New("index: invalid binary format")
	ErrBrokenFile        = errors.New("index: truncated or corrupt file")
	ErrVersionMismatch   = errors.New("index: version mismatch")
)
