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

// Package inproc implements a handle.Message pair living entirely inside
// one process: SendVec hands its data to the peer's RecvVec and blocks on
// an acknowledgement, so the sender learns synchronously whether the
// receiver's buffer was large enough (MSGSIZE) rather than the datagram
// being silently dropped.
package inproc

import (
	"context"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/scheduler"
	"github.com/nabbar/dsock/xchan"
)

type datagram struct {
	data []byte
	ack  chan error
}

// Conn is one end of an in-process pair.
type Conn struct {
	rt  *scheduler.Runtime
	out *xchan.Chan
	in  *xchan.Chan
}

// NewPair returns two connected Conns; whatever is sent on one arrives on
// the other's RecvVec.
func NewPair(rt *scheduler.Runtime) (*Conn, *Conn) {
	ab := xchan.New(rt, 0)
	ba := xchan.New(rt, 0)

	a := &Conn{rt: rt, out: ab, in: ba}
	b := &Conn{rt: rt, out: ba, in: ab}

	return a, b
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapMessage {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes both directions; the peer's next Send/Recv observes ErrPipe.
func (c *Conn) Close() error {
	_ = c.out.Close()
	_ = c.in.Close()
	return nil
}

// SendVec hands list's bytes to the peer and blocks until the peer's
// RecvVec has copied them (or reported ErrMsgSize).
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	d := &datagram{data: list.Bytes(), ack: make(chan error, 1)}

	if err := c.out.Send(ctx, d, deadline); err != nil {
		return 0, err
	}

	c.rt.Release()
	select {
	case err := <-d.ack:
		if aErr := c.rt.Acquire(ctx); aErr != nil {
			return 0, aErr
		}
		if err != nil {
			return 0, err
		}
		return len(d.data), nil
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	}
}

// RecvVec scatters the peer's next datagram into list. If list cannot hold
// it, the sender is told ErrMsgSize and this call returns the same error
// without delivering partial data.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	v, err := c.in.Recv(ctx, deadline)
	if err != nil {
		return 0, err
	}

	d := v.(*datagram)

	if len(d.data) > list.Len() {
		d.ack <- liberr.ErrMsgSize.Error(nil)
		return 0, liberr.ErrMsgSize.Error(nil)
	}

	n := list.Fill(d.data)
	d.ack <- nil
	return n, nil
}
