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

// Package handle implements the vtable-of-vtables object table every other
// package in this module addresses its objects through: a Handle is an
// opaque reference, an Object advertises capabilities by pointer identity,
// and a Runtime owns the table - there is no process-global state.
package handle

import (
	"time"

	liberr "github.com/nabbar/dsock/errors"
)

// Handle is an opaque reference into a Runtime's object table. The zero
// value never designates a live object.
type Handle uint64

// Capability is a pointer-identity tag. Tags are compared by address, not
// by value, so Query dispatch is a single pointer comparison - the Go
// equivalent of the original's vtable-of-vtables switch.
type Capability struct {
	name string
}

func (c *Capability) String() string {
	return c.name
}

var (
	// CapBytestream is advertised by handles implementing Bytestream.
	CapBytestream = &Capability{name: "bytestream"}
	// CapMessage is advertised by handles implementing Message.
	CapMessage = &Capability{name: "message"}
	// CapListener is advertised by handles implementing Listener.
	CapListener = &Capability{name: "listener"}
	// CapChannel is advertised by handles implementing Channel.
	CapChannel = &Capability{name: "channel"}
)

// Object is the minimum every handle value in the table must implement.
type Object interface {
	// Query returns the facet registered under tag, or ErrNotSup.
	Query(tag *Capability) (interface{}, error)
	// Close releases the object. Close must be safe to call more than
	// once; the second and later calls are no-ops.
	Close() error
}

// Doner is implemented by objects whose terminal state is observed rather
// than immediate - a coroutine, most notably, where Close requests
// cancellation but the caller must wait for the run loop to actually stop.
type Doner interface {
	// Done blocks until the object reaches a terminal state, or deadline
	// elapses (zero deadline means wait forever).
	Done(deadline time.Time) error
}

// Bytestream is the capability behind CapBytestream: an ordered,
// boundary-less stream of bytes (TCP, TLS, Nagle, a byte throttler, ...).
type Bytestream interface {
	SendVec(list Vectored, deadline time.Time) (int, error)
	RecvVec(list Vectored, deadline time.Time) (int, error)
}

// Message is the capability behind CapMessage: a boundary-preserving
// sequence of discrete frames (UDP, WebSocket, NaCl, LZ4, ...).
type Message interface {
	SendVec(list Vectored, deadline time.Time) (int, error)
	RecvVec(list Vectored, deadline time.Time) (int, error)
}

// Vectored is satisfied by *iol.List; it is declared here, rather than
// importing iol directly, so the iol package need not depend on handle.
type Vectored interface {
	Len() int
	Bytes() []byte
	Fill(src []byte) int
	Acquire() error
	Release()
}

// Listener is the capability behind CapListener: a handle that produces
// new handles by accepting connections.
type Listener interface {
	Accept(deadline time.Time) (Handle, error)
}

// Channel is the capability behind CapChannel, see package xchan.
type Channel interface {
	Send(v interface{}, deadline time.Time) error
	Recv(deadline time.Time) (interface{}, error)
}

type entry struct {
	obj Object
}

// Runtime owns one handle table. Every socket created through a Runtime is
// only ever addressed by the Handle values it hands back - there is no
// global registry, matching the design note in spec.md §9 to carry what
// was process state as a Runtime value instead.
type Runtime struct {
	tbl  mapTyped
	next func() Handle
}

// mapTyped is the subset of atomic.MapTyped this package exercises,
// declared locally so handle.go does not need to name the atomic generic
// instantiation in its public surface.
type mapTyped interface {
	Load(key Handle) (*entry, bool)
	Store(key Handle, value *entry)
	LoadAndDelete(key Handle) (*entry, bool)
	Range(f func(key Handle, value *entry) bool)
}

// New returns an empty Runtime.
func New() *Runtime {
	var n uint64
	return &Runtime{
		tbl: newTable(),
		next: func() Handle {
			n++
			return Handle(n)
		},
	}
}

// Make registers obj and returns the Handle that will address it from now
// on. The caller never constructs a Handle itself.
func (r *Runtime) Make(obj Object) Handle {
	h := r.next()
	r.tbl.Store(h, &entry{obj: obj})
	return h
}

// Query resolves h to the facet registered under tag. It returns
// ErrBadHandle if h is unknown, ErrNotSup if the object does not advertise
// tag.
func (r *Runtime) Query(h Handle, tag *Capability) (interface{}, error) {
	e, ok := r.tbl.Load(h)
	if !ok {
		return nil, liberr.ErrBadHandle.Error(nil)
	}

	return e.obj.Query(tag)
}

// Object returns the raw Object behind h, mainly for layers that need to
// wrap an existing handle's object rather than query a capability.
func (r *Runtime) Object(h Handle) (Object, error) {
	e, ok := r.tbl.Load(h)
	if !ok {
		return nil, liberr.ErrBadHandle.Error(nil)
	}

	return e.obj, nil
}

// Duplicate registers the same Object under a second Handle. Closing one
// duplicate does not close the other; the Object itself decides whether it
// is reference-counted.
func (r *Runtime) Duplicate(h Handle) (Handle, error) {
	e, ok := r.tbl.Load(h)
	if !ok {
		return 0, liberr.ErrBadHandle.Error(nil)
	}

	nh := r.next()
	r.tbl.Store(nh, &entry{obj: e.obj})
	return nh, nil
}

// Close removes h from the table and closes its Object. Closing an unknown
// handle is a no-op, matching the original's tolerant dsock_close.
func (r *Runtime) Close(h Handle) error {
	e, ok := r.tbl.LoadAndDelete(h)
	if !ok {
		return nil
	}

	return e.obj.Close()
}

// Done waits for h's terminal state if the underlying Object implements
// Doner; it returns nil immediately for handles that do not.
func (r *Runtime) Done(h Handle, deadline time.Time) error {
	e, ok := r.tbl.Load(h)
	if !ok {
		return liberr.ErrBadHandle.Error(nil)
	}

	if d, ok := e.obj.(Doner); ok {
		return d.Done(deadline)
	}

	return nil
}

// CloseAll closes every handle currently registered, in unspecified order.
// Used by Runtime owners tearing down a whole subsystem at once.
func (r *Runtime) CloseAll() error {
	var first error

	r.tbl.Range(func(h Handle, e *entry) bool {
		if err := e.obj.Close(); err != nil && first == nil {
			first = err
		}
		return true
	})

	return first
}
