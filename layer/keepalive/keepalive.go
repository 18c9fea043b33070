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

// Package keepalive is a worker-coroutine layer mirroring layer/nagle's
// pattern, per spec.md §4.6.5: the send side prefixes user data with
// 'D' and emits a bare 'K' frame whenever send_interval elapses with no
// user send; the recv side strips 'K' frames transparently and escalates
// a recv-side idle timeout into a sticky CONNRESET error.
package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/nabbar/dsock/duration"
	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/scheduler"
)

const (
	tagData = 'D'
	tagKeep = 'K'
)

// Underlying is the message transport keepalive wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

type writeReq struct {
	data []byte
	ack  chan error
}

// Conn is a keep-alive-wrapped handle.Message.
type Conn struct {
	rt           *scheduler.Runtime
	inner        Underlying
	sendInterval time.Duration
	recvInterval time.Duration

	work      chan writeReq
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	latched error
}

// New starts the keep-alive worker. sendInterval bounds how long the
// link may stay idle before a 'K' frame is emitted; recvInterval bounds
// how long a recv may wait before the layer latches ConnReset. Both are
// duration.Duration so they decode directly from whatever config format
// (JSON/YAML/TOML/CBOR) the layer's configuration arrives in.
func New(rt *scheduler.Runtime, inner Underlying, sendInterval, recvInterval duration.Duration) *Conn {
	c := &Conn{
		rt:           rt,
		inner:        inner,
		sendInterval: sendInterval.Time(),
		recvInterval: recvInterval.Time(),
		work:         make(chan writeReq),
		closed:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *Conn) loop() {
	defer c.wg.Done()

	timer := time.NewTimer(c.sendInterval)
	defer timer.Stop()

	for {
		select {
		case req, ok := <-c.work:
			if !ok {
				return
			}

			frame := append([]byte{tagData}, req.data...)
			_, err := c.inner.SendVecCtx(context.Background(), newByteVec(frame), scheduler.NoDeadline)
			req.ack <- err

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.sendInterval)

		case <-timer.C:
			_, _ = c.inner.SendVecCtx(context.Background(), newByteVec([]byte{tagKeep}), scheduler.NoDeadline)
			timer.Reset(c.sendInterval)

		case <-c.closed:
			return
		}
	}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapMessage {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close stops the worker and closes the underlying transport.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.wg.Wait()
	return c.inner.Close()
}

// SendVec queues list's bytes, tagged 'D', with the keep-alive worker.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	data := list.Bytes()
	req := writeReq{data: data, ack: make(chan error, 1)}

	select {
	case c.work <- req:
	case <-ctx.Done():
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	case <-c.closed:
		return 0, liberr.ErrPipe.Error(nil)
	}

	if err := <-req.ack; err != nil {
		return 0, err
	}
	return len(data), nil
}

// RecvVec reads frames until a 'D' frame arrives, transparently
// consuming any 'K' keep-alives, and returns the data it carried. A
// recv-side idle timeout latches ConnReset for the life of the handle.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	c.mu.Lock()
	if c.latched != nil {
		err := c.latched
		c.mu.Unlock()
		return 0, err
	}
	c.mu.Unlock()

	for {
		idle := time.Now().Add(c.recvInterval)
		ownDeadline := deadline.IsZero() || idle.Before(deadline)

		effective := deadline
		if ownDeadline {
			effective = idle
		}

		frame := newByteVec(make([]byte, list.Len()+1))
		n, err := c.inner.RecvVecCtx(ctx, frame, effective)
		if err != nil {
			if ownDeadline && liberr.IsKind(err, liberr.ErrTimedOut) {
				cerr := liberr.ErrConnReset.Error(nil)
				c.mu.Lock()
				c.latched = cerr
				c.mu.Unlock()
				return 0, cerr
			}
			return 0, err
		}

		if n < 1 {
			return 0, liberr.ErrProto.Error(nil)
		}

		switch frame.b[0] {
		case tagKeep:
			continue
		case tagData:
			data := frame.b[1:n]
			if len(data) > list.Len() {
				return 0, liberr.ErrMsgSize.Error(nil)
			}
			return list.Fill(data), nil
		default:
			return 0, liberr.ErrProto.Error(nil)
		}
	}
}

type byteVec struct {
	b []byte
}

func newByteVec(b []byte) *byteVec { return &byteVec{b: b} }

func (v *byteVec) Len() int            { return len(v.b) }
func (v *byteVec) Bytes() []byte       { return v.b }
func (v *byteVec) Fill(src []byte) int { return copy(v.b, src) }
func (v *byteVec) Acquire() error      { return nil }
func (v *byteVec) Release()            {}
