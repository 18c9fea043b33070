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

// Package msgthrottle rate-limits a handle.Message by frame count rather
// than byte count: every SendVec/RecvVec spends exactly one token,
// regardless of the frame's size.
package msgthrottle

import (
	"context"
	"sync"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/scheduler"
)

// Underlying is the message stream msgthrottle wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

type bucket struct {
	rt    *scheduler.Runtime
	mu    sync.Mutex
	rate  float64
	burst float64
	level float64
	last  time.Time
}

func newBucket(rt *scheduler.Runtime, ratePerSec, burst int) *bucket {
	return &bucket{rt: rt, rate: float64(ratePerSec), burst: float64(burst), level: float64(burst), last: time.Now()}
}

func (b *bucket) Take(ctx context.Context) error {
	if b.rate <= 0 {
		return nil
	}

	b.mu.Lock()
	now := time.Now()
	b.level += now.Sub(b.last).Seconds() * b.rate
	if b.level > b.burst {
		b.level = b.burst
	}
	b.last = now

	var wait time.Duration
	if b.level < 1 {
		wait = time.Duration((1 - b.level) / b.rate * float64(time.Second))
	}
	b.level--
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	return b.rt.MSleep(ctx, wait)
}

// Conn is a message-count-limited handle.Message.
type Conn struct {
	inner Underlying
	send  *bucket
	recv  *bucket
}

// New wraps inner, allowing up to sendRate/recvRate messages per second
// (bursting up to burst messages) in each direction.
func New(rt *scheduler.Runtime, inner Underlying, sendRate, recvRate, burst int) *Conn {
	return &Conn{
		inner: inner,
		send:  newBucket(rt, sendRate, burst),
		recv:  newBucket(rt, recvRate, burst),
	}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapMessage {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.inner.Close()
}

// SendVec spends one send token before writing the frame through.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.send.Take(ctx); err != nil {
		return 0, err
	}
	return c.inner.SendVecCtx(ctx, list, deadline)
}

// RecvVec spends one recv token before reading the next frame.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.recv.Take(ctx); err != nil {
		return 0, err
	}
	return c.inner.RecvVecCtx(ctx, list, deadline)
}
