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

// Package throttle rate-limits a handle.Bytestream by byte count using a
// token bucket: every Send/Recv spends tokens equal to the bytes it moves,
// suspending the calling coroutine until enough tokens have accrued.
package throttle

import (
	"context"
	"sync"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/scheduler"
)

// Underlying is the stream throttle wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

// bucket is a simple token bucket: it refills at rate bytes/sec up to
// burst, and Take blocks (cooperatively) until enough tokens exist.
type bucket struct {
	rt    *scheduler.Runtime
	mu    sync.Mutex
	rate  float64
	burst float64
	level float64
	last  time.Time
}

func newBucket(rt *scheduler.Runtime, rate, burst int) *bucket {
	return &bucket{
		rt:    rt,
		rate:  float64(rate),
		burst: float64(burst),
		level: float64(burst),
		last:  time.Now(),
	}
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.level += elapsed * b.rate
	if b.level > b.burst {
		b.level = b.burst
	}
}

// Take charges n tokens immediately, going into debt if the bucket does
// not currently hold enough, and suspends the caller for exactly as long
// as it takes the bucket to refill that debt - so a single request larger
// than burst still makes forward progress instead of blocking forever. A
// non-positive rate means unlimited - Take returns immediately.
func (b *bucket) Take(ctx context.Context, n int) error {
	if b.rate <= 0 {
		return nil
	}

	b.mu.Lock()
	b.refill()

	var wait time.Duration
	if b.level < float64(n) {
		deficit := float64(n) - b.level
		wait = time.Duration(deficit / b.rate * float64(time.Second))
	}
	b.level -= float64(n)
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	return b.rt.MSleep(ctx, wait)
}

// Conn is a byte-rate-limited handle.Bytestream.
type Conn struct {
	rt    *scheduler.Runtime
	inner Underlying
	send  *bucket
	recv  *bucket
}

// New wraps inner, allowing up to sendRate/recvRate bytes per second
// (bursting up to burst bytes) in each direction.
func New(rt *scheduler.Runtime, inner Underlying, sendRate, recvRate, burst int) *Conn {
	return &Conn{
		rt:    rt,
		inner: inner,
		send:  newBucket(rt, sendRate, burst),
		recv:  newBucket(rt, recvRate, burst),
	}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapBytestream {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	return c.inner.Close()
}

// SendVec spends tokens for list's length before writing it through.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.send.Take(ctx, list.Len()); err != nil {
		return 0, err
	}
	return c.inner.SendVecCtx(ctx, list, deadline)
}

// RecvVec spends tokens for list's capacity before reading into it.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.recv.Take(ctx, list.Len()); err != nil {
		return 0, err
	}
	return c.inner.RecvVecCtx(ctx, list, deadline)
}
