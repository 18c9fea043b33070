/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package errors

// Kind is the canonical taxonomy every layer in this module returns errors
// from. Each value is a CodeError in its own right (so it can be raised
// directly with Kind.Error(parent...)) and also the value every
// package-specific code ultimately carries as its HasCode() ancestor, the
// same way the teacher library layers HTTP-like codes under MinPkg ranges.
const (
	// ErrInval: an argument violates a documented precondition.
	ErrInval CodeError = iota + 1
	// ErrNoMem: an allocation failed.
	ErrNoMem
	// ErrNotSup: the capability is not advertised on this handle.
	ErrNotSup
	// ErrBadHandle: the handle was closed or never existed.
	ErrBadHandle
	// ErrTimedOut: a deadline expired without progress.
	ErrTimedOut
	// ErrCanceled: the coroutine was canceled.
	ErrCanceled
	// ErrPipe: the peer closed the stream.
	ErrPipe
	// ErrConnReset: the connection was lost, or a keep-alive lapsed.
	ErrConnReset
	// ErrMsgSize: the frame is larger than the receive buffer.
	ErrMsgSize
	// ErrProto: a wire-level protocol violation.
	ErrProto
	// ErrAccess: authentication failed (NaCl).
	ErrAccess
)

func init() {
	RegisterIdFctMessage(ErrInval, kindMessage)
}

func kindMessage(code CodeError) string {
	switch code {
	case ErrInval:
		return "argument violates a documented precondition"
	case ErrNoMem:
		return "allocation failed"
	case ErrNotSup:
		return "capability not supported on this handle"
	case ErrBadHandle:
		return "handle closed or never existed"
	case ErrTimedOut:
		return "deadline expired without progress"
	case ErrCanceled:
		return "coroutine was canceled"
	case ErrPipe:
		return "peer closed the stream"
	case ErrConnReset:
		return "connection lost"
	case ErrMsgSize:
		return "frame larger than receive buffer"
	case ErrProto:
		return "wire-level protocol violation"
	case ErrAccess:
		return "authentication failed"
	}

	return NullMessage
}

// IsKind reports whether err carries the given canonical Kind, anywhere in
// its parent chain. It is the idiomatic replacement for comparing raw
// integer codes: every layer in this module raises one of the Kind
// constants (directly, or wrapped behind a package-specific code), so
// callers implementing spec.md §8's testable properties can assert on the
// Kind without knowing which package produced it.
func IsKind(err error, kind CodeError) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(Error); ok {
		return e.HasCode(kind)
	}

	return false
}
