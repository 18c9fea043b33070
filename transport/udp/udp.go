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

// Package udp adapts a net.PacketConn into a handle.Message. The peer
// address is sticky: the first datagram received fixes the remote address
// subsequent SendVec calls target, the same way the original's UDP socket
// remembers whoever it last exchanged a datagram with. Open builds the
// handle.Message pair from a bare address, per spec.md §4.4 and §6's
// udp_open.
package udp

import (
	"context"
	"net"
	"sync"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/poller"
	"github.com/nabbar/dsock/scheduler"
)

// maxDatagram bounds the single-read buffer; a datagram larger than a
// caller's receive list still reports MSGSIZE rather than truncating.
const maxDatagram = 65535

// Conn wraps a net.PacketConn as a handle.Message.
type Conn struct {
	rt *scheduler.Runtime
	pl *poller.Poller
	pc net.PacketConn

	mu     sync.Mutex
	remote net.Addr

	closeOnce sync.Once
}

// New wraps pc. If remote is non-nil, it is used as the sticky send target
// until the first RecvVec overwrites it (dial-style construction).
func New(rt *scheduler.Runtime, pl *poller.Poller, pc net.PacketConn, remote net.Addr) *Conn {
	return &Conn{rt: rt, pl: pl, pc: pc, remote: remote}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapMessage {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// LocalAddr returns the socket's bound local address, useful when addr was
// passed with a ":0" port and the caller needs to learn which one the
// kernel picked.
func (c *Conn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// Close closes the underlying PacketConn.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.pc.Close()
	})
	return err
}

// SendVec writes list as one datagram to the sticky remote address. It
// returns ErrNotConn-shaped ErrInval if no remote has been established yet.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	c.mu.Lock()
	remote := c.remote
	c.mu.Unlock()

	if remote == nil {
		return 0, liberr.ErrInval.Error(nil)
	}

	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	b := list.Bytes()

	ch := c.pl.Track(func() (int, error) {
		_ = c.pc.SetWriteDeadline(deadline)
		return c.pc.WriteTo(b, remote)
	})

	return c.await(ctx, ch)
}

// RecvVec reads one datagram, sticks its source as the new remote, and
// scatters it into list. ErrMsgSize is returned - without consuming the
// datagram from the list's perspective - if list cannot hold it all.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	buf := make([]byte, maxDatagram)
	var from net.Addr

	ch := c.pl.Track(func() (int, error) {
		_ = c.pc.SetReadDeadline(deadline)
		n, addr, err := c.pc.ReadFrom(buf)
		from = addr
		return n, err
	})

	n, err := c.await(ctx, ch)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.remote = from
	c.mu.Unlock()

	if n > list.Len() {
		return 0, liberr.ErrMsgSize.Error(nil)
	}

	return list.Fill(buf[:n]), nil
}

func (c *Conn) await(ctx context.Context, ch <-chan poller.Result) (int, error) {
	c.rt.Release()

	select {
	case r := <-ch:
		if err := c.rt.Acquire(ctx); err != nil {
			return 0, err
		}
		return r.N, mapNetErr(r.Err)
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	}
}

// Open binds a UDP socket on addr and registers it in hr, returning the
// Handle that advertises handle.CapMessage. sticky, if non-nil, is used as
// the initial send target until the first RecvVec overwrites it with the
// datagram's actual source, per spec.md §4.4's "optional sticky remote
// address is stored at open."
func Open(rt *scheduler.Runtime, pl *poller.Poller, hr *handle.Runtime, network, addr string, sticky *net.UDPAddr) (handle.Handle, error) {
	la, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return 0, liberr.ErrInval.Error(err)
	}

	pc, err := net.ListenUDP(network, la)
	if err != nil {
		return 0, liberr.ErrPipe.Error(err)
	}

	var remote net.Addr
	if sticky != nil {
		remote = sticky
	}

	return hr.Make(New(rt, pl, pc, remote)), nil
}

func mapNetErr(err error) error {
	if err == nil {
		return nil
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return liberr.ErrTimedOut.Error(err)
	}

	return liberr.ErrConnReset.Error(err)
}
