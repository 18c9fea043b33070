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

// Package tcp adapts a net.Conn into a handle.Bytestream, reading through a
// 2KiB buffer so a slow consumer of many small RecvVec calls still costs
// one syscall per 2KiB instead of one per call. Listen/Accept/Connect build
// the handle.Listener/Bytestream pair from a bare address, per spec.md
// §4.4 and §6's tcp_listen/tcp_accept/tcp_connect.
package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/poller"
	"github.com/nabbar/dsock/scheduler"
	"golang.org/x/sync/semaphore"
)

// bufSize is the coalescing read buffer size, per spec.md §4.4.
const bufSize = 2048

// Conn wraps a net.Conn as a handle.Bytestream.
type Conn struct {
	rt *scheduler.Runtime
	pl *poller.Poller
	nc net.Conn

	rmu  sync.Mutex
	rbuf [bufSize]byte
	roff int
	rlen int

	closeOnce sync.Once
}

// New wraps nc, using rt for token handoff and pl to track the goroutines
// its blocking reads/writes run on.
func New(rt *scheduler.Runtime, pl *poller.Poller, nc net.Conn) *Conn {
	return &Conn{rt: rt, pl: pl, nc: nc}
}

// Query implements handle.Object; the only capability a TCP connection
// advertises is Bytestream.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapBytestream {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes the underlying net.Conn. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.nc.Close()
	})
	return err
}

// SendVec writes list's contents as a single syscall via net.Buffers.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context; every layer
// above tcp calls this form.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	b := list.Bytes()

	ch := c.pl.Track(func() (int, error) {
		_ = c.nc.SetWriteDeadline(deadline)
		return c.nc.Write(b)
	})

	return c.await(ctx, ch)
}

// RecvVec scatters up to list's capacity from the connection, filling from
// the internal 2KiB buffer before issuing a new read.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	c.rmu.Lock()
	if c.roff < c.rlen {
		n := list.Fill(c.rbuf[c.roff:c.rlen])
		c.roff += n
		c.rmu.Unlock()
		return n, nil
	}
	c.rmu.Unlock()

	ch := c.pl.Track(func() (int, error) {
		_ = c.nc.SetReadDeadline(deadline)
		return c.nc.Read(c.rbuf[:])
	})

	n, err := c.await(ctx, ch)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, liberr.ErrPipe.Error(nil)
	}

	c.rmu.Lock()
	c.roff = 0
	c.rlen = n
	filled := list.Fill(c.rbuf[:n])
	c.roff = filled
	c.rmu.Unlock()

	return filled, nil
}

func (c *Conn) await(ctx context.Context, ch <-chan poller.Result) (int, error) {
	return await(c.rt, ctx, ch)
}

func mapNetErr(err error) error {
	if err == nil {
		return nil
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return liberr.ErrTimedOut.Error(err)
	}

	return liberr.ErrPipe.Error(err)
}

// Listener wraps a net.Listener as a handle.Listener, per spec.md §4.4 and
// §6's tcp_listen/tcp_accept: listening registers the Listener itself in hr
// and hands back the Handle advertising CapListener; each accepted Conn is
// registered the same way so callers only ever address sockets by Handle.
type Listener struct {
	rt *scheduler.Runtime
	pl *poller.Poller
	hr *handle.Runtime
	ln net.Listener

	closeOnce sync.Once
}

// Listen opens a TCP listener on addr and registers it in hr, returning the
// Handle that advertises handle.CapListener. backlog is honored on unix
// platforms (see tcp_listen_unix.go); elsewhere it is best-effort.
func Listen(rt *scheduler.Runtime, pl *poller.Poller, hr *handle.Runtime, network, addr string, backlog int) (handle.Handle, error) {
	ln, err := listen(network, addr, backlog)
	if err != nil {
		return 0, liberr.ErrPipe.Error(err)
	}

	l := &Listener{rt: rt, pl: pl, hr: hr, ln: ln}
	return hr.Make(l), nil
}

// Query implements handle.Object; a Listener only ever advertises
// CapListener.
func (l *Listener) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapListener {
		return l, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Addr returns the listener's bound local address, useful when addr was
// passed with a ":0" port and the caller needs to learn which one the
// kernel picked.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close closes the underlying net.Listener. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.ln.Close()
	})
	return err
}

// Accept implements handle.Listener: it blocks until a peer connects, the
// deadline elapses, or the listener is closed, then registers the new Conn
// in the same Runtime as l and returns its Handle.
func (l *Listener) Accept(deadline time.Time) (handle.Handle, error) {
	return l.AcceptCtx(context.Background(), deadline)
}

// AcceptCtx is Accept with an explicit cancellation context.
func (l *Listener) AcceptCtx(ctx context.Context, deadline time.Time) (handle.Handle, error) {
	var nc net.Conn

	ch := l.pl.Track(func() (int, error) {
		if tl, ok := l.ln.(*net.TCPListener); ok {
			_ = tl.SetDeadline(deadline)
		}
		c, err := l.ln.Accept()
		nc = c
		return 0, err
	})

	if _, err := await(l.rt, ctx, ch); err != nil {
		return 0, err
	}

	return l.hr.Make(New(l.rt, l.pl, nc)), nil
}

// Connect dials addr and registers the resulting Conn in hr, returning the
// Handle that advertises handle.CapBytestream, per spec.md §4.4 and §6's
// tcp_connect.
func Connect(rt *scheduler.Runtime, pl *poller.Poller, hr *handle.Runtime, network, addr string, deadline time.Time) (handle.Handle, error) {
	return ConnectCtx(context.Background(), rt, pl, hr, network, addr, deadline)
}

// ConnectCtx is Connect with an explicit cancellation context.
func ConnectCtx(ctx context.Context, rt *scheduler.Runtime, pl *poller.Poller, hr *handle.Runtime, network, addr string, deadline time.Time) (handle.Handle, error) {
	var nc net.Conn

	d := net.Dialer{}
	if !deadline.IsZero() {
		d.Deadline = deadline
	}

	ch := pl.Track(func() (int, error) {
		c, err := d.DialContext(ctx, network, addr)
		nc = c
		return 0, err
	})

	if _, err := await(rt, ctx, ch); err != nil {
		return 0, err
	}

	return hr.Make(New(rt, pl, nc)), nil
}

// AcceptLoop calls l.AcceptCtx in a loop, handing each accepted Handle to
// handler on its own goroutine, until ctx is canceled or Accept fails.
// maxConcurrent bounds how many handler goroutines may run at once -
// Accept itself pauses once that bound is reached, so a burst of inbound
// connections cannot spawn unbounded goroutines.
func AcceptLoop(ctx context.Context, l *Listener, maxConcurrent int64, handler func(handle.Handle)) error {
	sem := semaphore.NewWeighted(maxConcurrent)

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return liberr.ErrCanceled.Error(err)
		}

		h, err := l.AcceptCtx(ctx, scheduler.NoDeadline)
		if err != nil {
			sem.Release(1)
			return err
		}

		go func(h handle.Handle) {
			defer sem.Release(1)
			handler(h)
		}(h)
	}
}

func await(rt *scheduler.Runtime, ctx context.Context, ch <-chan poller.Result) (int, error) {
	rt.Release()

	select {
	case r := <-ch:
		if err := rt.Acquire(ctx); err != nil {
			return 0, err
		}
		return r.N, mapNetErr(r.Err)
	case <-ctx.Done():
		_ = rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	}
}
