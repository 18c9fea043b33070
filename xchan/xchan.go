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

// Package xchan implements the scheduler-aware channel every coroutine in
// this module uses to hand values to one another: Send/Recv suspend on the
// owning scheduler.Runtime rather than blocking the OS thread.
package xchan

import (
	"context"
	"sync"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/scheduler"
)

// Chan is a scheduler-aware channel of capacity cap. A Chan of capacity 0
// behaves as a rendezvous: Send blocks until a Recv is ready to take the
// value, and vice versa.
type Chan struct {
	rt     *scheduler.Runtime
	buf    chan interface{}
	closed chan struct{}
	once   sync.Once
}

// New returns a Chan of the given buffer capacity, owned by rt.
func New(rt *scheduler.Runtime, capacity int) *Chan {
	return &Chan{
		rt:     rt,
		buf:    make(chan interface{}, capacity),
		closed: make(chan struct{}),
	}
}

// Send suspends the calling coroutine until v is accepted, the channel is
// closed (ErrPipe), ctx is canceled (ErrCanceled), or deadline elapses
// (ErrTimedOut).
func (c *Chan) Send(ctx context.Context, v interface{}, deadline time.Time) error {
	select {
	case <-c.closed:
		return liberr.ErrPipe.Error(nil)
	default:
	}

	c.rt.Release()
	defer func() {}()

	timer, timeoutC := deadlineTimer(deadline)
	if timer != nil {
		defer timer.Stop()
	}

	select {
	case c.buf <- v:
		return c.rt.Acquire(ctx)
	case <-c.closed:
		_ = c.rt.Acquire(context.Background())
		return liberr.ErrPipe.Error(nil)
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return liberr.ErrCanceled.Error(ctx.Err())
	case <-timeoutC:
		_ = c.rt.Acquire(context.Background())
		return liberr.ErrTimedOut.Error(nil)
	}
}

// Recv suspends the calling coroutine until a value is available, the
// channel is closed and drained (ErrPipe), ctx is canceled (ErrCanceled),
// or deadline elapses (ErrTimedOut).
func (c *Chan) Recv(ctx context.Context, deadline time.Time) (interface{}, error) {
	select {
	case v := <-c.buf:
		return v, nil
	default:
	}

	c.rt.Release()

	timer, timeoutC := deadlineTimer(deadline)
	if timer != nil {
		defer timer.Stop()
	}

	select {
	case v := <-c.buf:
		return v, c.rt.Acquire(ctx)
	case <-c.closed:
		// the channel was closed while we waited; one last non-blocking
		// drain before reporting ErrPipe, so buffered values are not lost.
		select {
		case v := <-c.buf:
			return v, c.rt.Acquire(ctx)
		default:
		}
		_ = c.rt.Acquire(context.Background())
		return nil, liberr.ErrPipe.Error(nil)
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return nil, liberr.ErrCanceled.Error(ctx.Err())
	case <-timeoutC:
		_ = c.rt.Acquire(context.Background())
		return nil, liberr.ErrTimedOut.Error(nil)
	}
}

// Close marks the channel closed. Send fails with ErrPipe from the next
// call on; Recv continues to drain any values already buffered, then fails
// with ErrPipe. Close is idempotent. The underlying buffer is never
// closed, so a Send racing a Close can never panic on a closed channel.
func (c *Chan) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

// Duplicate returns a second handle onto the same underlying buffer and
// close signal - sends and receives on either compete for the same values.
func (c *Chan) Duplicate() *Chan {
	return c
}

func deadlineTimer(deadline time.Time) (*time.Timer, <-chan time.Time) {
	if deadline.IsZero() {
		return nil, nil
	}

	t := time.NewTimer(time.Until(deadline))
	return t, t.C
}
