/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package iol implements the scatter-gather descriptor shared by every
// transport and layer: a chain of byte slices addressed as one logical
// buffer for send/recv.
package iol

import (
	"sync"

	liberr "github.com/nabbar/dsock/errors"
)

// Node is one link of a scatter-gather chain. Base is never copied; List
// only ever holds references into caller-owned memory.
type Node struct {
	Base []byte
	next *Node
	used bool
}

// List is a linked chain of Nodes, terminated by a Last node supplied
// explicitly. A List is valid iff no node is marked in-use, no node but
// Last has a nil next, and Last.next is nil.
type List struct {
	mu    sync.Mutex
	first *Node
	last  *Node
}

// New builds a single-node list wrapping one buffer.
func New(b []byte) *List {
	n := &Node{Base: b}
	return &List{first: n, last: n}
}

// Append adds a buffer as a new trailing node.
func (l *List) Append(b []byte) *List {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := &Node{Base: b}

	if l.first == nil {
		l.first = n
		l.last = n
		return l
	}

	l.last.next = n
	l.last = n
	return l
}

// Acquire marks the list in-use, rejecting a list already claimed by a
// concurrent operation. Every Send/Recv on the scatter-gather path must
// bracket its work with Acquire/Release.
func (l *List) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for n := l.first; n != nil; n = n.next {
		if n.used {
			return liberr.ErrInval.Error(nil)
		}
	}

	for n := l.first; n != nil; n = n.next {
		n.used = true
	}

	return nil
}

// Release clears the in-use flag set by Acquire.
func (l *List) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for n := l.first; n != nil; n = n.next {
		n.used = false
	}
}

// Len returns the total byte length across every node.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for c := l.first; c != nil; c = c.next {
		n += len(c.Base)
	}

	return n
}

// Bytes flattens the list into one contiguous slice. It copies; callers on
// a hot path should prefer Nodes for zero-copy iteration.
func (l *List) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]byte, 0, l.len())
	for n := l.first; n != nil; n = n.next {
		out = append(out, n.Base...)
	}

	return out
}

func (l *List) len() int {
	n := 0
	for c := l.first; c != nil; c = c.next {
		n += len(c.Base)
	}
	return n
}

// Nodes returns the chain as a slice, first to last, for callers that want
// to hand it to a scatter-gather syscall (net.Buffers and similar).
func (l *List) Nodes() []*Node {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*Node
	for n := l.first; n != nil; n = n.next {
		out = append(out, n)
	}

	return out
}

// Fill copies src into the list's own nodes; see the package-level Fill.
func (l *List) Fill(src []byte) int {
	return Fill(l, src)
}

// Fill copies src into the list's nodes in order, returning the number of
// bytes copied. Used by recv paths to scatter incoming bytes into the
// caller's list without requiring the caller's buffers be contiguous.
func Fill(l *List, src []byte) int {
	copied := 0
	for _, n := range l.Nodes() {
		if copied >= len(src) {
			break
		}

		c := copy(n.Base, src[copied:])
		copied += c

		if c < len(n.Base) {
			break
		}
	}

	return copied
}

// DeepCopy copies src into dst's nodes, returning ErrMsgSize if dst's total
// capacity is smaller than src - this is the Go equivalent of the
// original's iol_deep_copy, whose error return this module actually checks
// (see DESIGN.md's Open Question decision for inproc_mrecvl).
func DeepCopy(dst *List, src []byte) (int, error) {
	if dst.Len() < len(src) {
		return 0, liberr.ErrMsgSize.Error(nil)
	}

	return Fill(dst, src), nil
}
