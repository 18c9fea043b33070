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

// Package nagle batches small writes behind a single background worker: a
// SendVec call queues its bytes and waits for an acknowledgement, the
// worker coalesces queued bytes until either maxBatch is reached or
// interval elapses since the last flush, then writes once and acks every
// waiter - the classic Nagle batch/interval worker, per spec.md §4.5.2.
package nagle

import (
	"context"
	"sync"
	"time"

	"github.com/nabbar/dsock/duration"
	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/iol"
	"github.com/nabbar/dsock/scheduler"
)

// Underlying is the subset of a transport/layer this package batches
// writes onto.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

type writeReq struct {
	data []byte
	ack  chan error
}

// Conn is a Nagle-batched handle.Bytestream.
type Conn struct {
	rt       *scheduler.Runtime
	inner    Underlying
	interval time.Duration
	maxBatch int

	work      chan writeReq
	flushReq  chan chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts the batching worker. interval and maxBatch bound how long a
// write can sit queued before it is flushed. interval is a duration.Duration
// so it decodes directly from whatever config format (JSON/YAML/TOML/CBOR)
// the layer's configuration arrives in.
func New(rt *scheduler.Runtime, inner Underlying, interval duration.Duration, maxBatch int) *Conn {
	c := &Conn{
		rt:       rt,
		inner:    inner,
		interval: interval.Time(),
		maxBatch: maxBatch,
		work:     make(chan writeReq),
		flushReq: make(chan chan struct{}),
		closed:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	return c
}

func (c *Conn) loop() {
	defer c.wg.Done()

	var buf []byte
	var waiters []chan error

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}

		_, err := c.inner.SendVecCtx(context.Background(), iol.New(buf), scheduler.NoDeadline)
		for _, ack := range waiters {
			ack <- err
		}

		buf = nil
		waiters = nil
	}

	for {
		select {
		case req, ok := <-c.work:
			if !ok {
				flush()
				return
			}

			buf = append(buf, req.data...)
			waiters = append(waiters, req.ack)

			if len(buf) >= c.maxBatch {
				flush()
			}

		case done := <-c.flushReq:
			flush()
			close(done)

		case <-timer.C:
			flush()
			timer.Reset(c.interval)

		case <-c.closed:
			flush()
			return
		}
	}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapBytestream {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close flushes any pending batch, stops the worker, and closes the
// underlying stream.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.wg.Wait()
	return c.inner.Close()
}

// SendVec queues list's bytes with the batching worker and blocks until
// they have been flushed (successfully or not).
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := list.Acquire(); err != nil {
		return 0, err
	}
	data := list.Bytes()
	list.Release()

	req := writeReq{data: data, ack: make(chan error, 1)}

	c.rt.Release()

	timer, timeoutC := deadlineTimer(deadline)
	if timer != nil {
		defer timer.Stop()
	}

	select {
	case c.work <- req:
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	case <-timeoutC:
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrTimedOut.Error(nil)
	case <-c.closed:
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrPipe.Error(nil)
	}

	select {
	case err := <-req.ack:
		if aErr := c.rt.Acquire(ctx); aErr != nil {
			return 0, aErr
		}
		if err != nil {
			return 0, err
		}
		return len(data), nil
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	}
}

// RecvVec passes straight through to the underlying stream - Nagle only
// ever batches the send side.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.inner.RecvVecCtx(context.Background(), list, deadline)
}

// Flush forces the worker to write out anything currently buffered,
// without waiting for maxBatch or interval. This is the detach path: per
// DESIGN.md's Open Question decision, detaching a Nagle handle flushes
// pending bytes before handing the underlying stream back.
func (c *Conn) Flush() {
	done := make(chan struct{})

	select {
	case c.flushReq <- done:
		<-done
	case <-c.closed:
	}
}

func deadlineTimer(deadline time.Time) (*time.Timer, <-chan time.Time) {
	if deadline.IsZero() {
		return nil, nil
	}
	t := time.NewTimer(time.Until(deadline))
	return t, t.C
}
