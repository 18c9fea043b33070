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

// Package scheduler implements the cooperative, single-owner run loop this
// module's coroutines share: at any instant exactly one coroutine holds the
// run token, and every suspension point (channel op, sleep, explicit yield)
// releases it before blocking and reacquires it on resume.
package scheduler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/dsock/errors"
)

// Fairness is the number of consecutive resumes a Runtime allows before it
// forces a non-blocking drain of its registered poller, so a coroutine that
// never yields cannot starve readiness notifications (the Go equivalent of
// the original's hard-coded context-switch budget).
const Fairness = 103

// NoDeadline is the zero time.Time, meaning "wait forever".
var NoDeadline time.Time

// Runtime owns one run token. It has no package-level state; every
// coroutine spawned from a Runtime shares only that Runtime's token.
type Runtime struct {
	token  chan struct{}
	resume uint64
	drain  func()
}

// New returns a Runtime with its token available to the first coroutine
// spawned.
func New() *Runtime {
	r := &Runtime{token: make(chan struct{}, 1)}
	r.token <- struct{}{}
	return r
}

// SetDrain registers the non-blocking poller-drain callback invoked every
// Fairness-th resume. A nil drain is a no-op.
func (r *Runtime) SetDrain(fn func()) {
	r.drain = fn
}

func (r *Runtime) acquire(ctx context.Context) error {
	select {
	case <-r.token:
	case <-ctx.Done():
		return liberr.ErrCanceled.Error(ctx.Err())
	}

	if n := atomic.AddUint64(&r.resume, 1); n%Fairness == 0 && r.drain != nil {
		r.drain()
	}

	return nil
}

func (r *Runtime) release() {
	select {
	case r.token <- struct{}{}:
	default:
	}
}

// Release gives up the run token. Callers implementing their own
// suspension point (xchan, transport, a layer's worker) call Release
// before blocking and Acquire on every resume path, so the run-loop
// invariant - exactly one coroutine holds the token - always holds.
func (r *Runtime) Release() {
	r.release()
}

// Acquire reacquires the run token, or returns ErrCanceled if ctx is done
// first.
func (r *Runtime) Acquire(ctx context.Context) error {
	return r.acquire(ctx)
}

// Coroutine is one logical thread of execution managed by a Runtime.
type Coroutine struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Go spawns fn as a new coroutine under parent. fn does not begin running
// until it has acquired the Runtime's token, so Go never races an
// already-running coroutine.
func (r *Runtime) Go(parent context.Context, fn func(ctx context.Context)) *Coroutine {
	ctx, cancel := context.WithCancel(parent)

	co := &Coroutine{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(co.done)

		if err := r.acquire(ctx); err != nil {
			co.err = err
			return
		}

		fn(ctx)
		r.release()
	}()

	return co
}

// Close cancels the coroutine's context. It does not wait for termination;
// call Done to block until the coroutine has actually stopped.
func (c *Coroutine) Close() error {
	c.cancel()
	return nil
}

// Done blocks until the coroutine reaches a terminal state, or deadline
// elapses. A zero deadline waits forever.
func (c *Coroutine) Done(deadline time.Time) error {
	if deadline.IsZero() {
		<-c.done
		return c.err
	}

	t := time.NewTimer(time.Until(deadline))
	defer t.Stop()

	select {
	case <-c.done:
		return c.err
	case <-t.C:
		return liberr.ErrTimedOut.Error(nil)
	}
}

// Yield releases the token and immediately attempts to reacquire it,
// giving any other ready coroutine a chance to run first.
func (r *Runtime) Yield(ctx context.Context) error {
	r.release()
	runtime.Gosched()
	return r.acquire(ctx)
}

// MSleep suspends the calling coroutine for d, releasing the token for the
// duration of the sleep so other coroutines can run.
func (r *Runtime) MSleep(ctx context.Context, d time.Duration) error {
	r.release()

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
		return liberr.ErrCanceled.Error(ctx.Err())
	}

	return r.acquire(ctx)
}

// Wait suspends the calling coroutine until ready fires, ctx is canceled,
// or deadline elapses (a zero deadline never expires on its own). This is
// the primitive every blocking channel/transport/layer operation in this
// module is built on.
func (r *Runtime) Wait(ctx context.Context, ready <-chan struct{}, deadline time.Time) error {
	r.release()

	var timer *time.Timer
	var timeoutC <-chan time.Time

	if !deadline.IsZero() {
		timer = time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return r.acquireAfterCancel(ctx)
	case <-timeoutC:
		_ = r.acquire(context.Background())
		return liberr.ErrTimedOut.Error(nil)
	}

	return r.acquire(ctx)
}

// acquireAfterCancel reacquires the token using a background context (the
// caller's ctx is already canceled) so the run loop invariant - exactly one
// coroutine holds the token - still holds after a canceled wait returns.
func (r *Runtime) acquireAfterCancel(ctx context.Context) error {
	_ = r.acquire(context.Background())
	return liberr.ErrCanceled.Error(ctx.Err())
}

// Deadline converts a relative timeout into the absolute deadline every
// suspension point in this package expects. A zero or negative d means
// "wait forever".
func Deadline(d time.Duration) time.Time {
	if d <= 0 {
		return NoDeadline
	}
	return time.Now().Add(d)
}
