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

// Package poller bridges OS-blocking I/O to the cooperative scheduler. It
// deliberately does not touch epoll/kqueue/IOCP: Go's runtime netpoller
// already multiplexes file descriptors, so a transport only needs to run
// its blocking syscall on its own goroutine and hand the result back
// through a channel the scheduler can Wait on.
package poller

import (
	"sync"
	"sync/atomic"
)

// Result is what a watched blocking call resolves to.
type Result struct {
	N   int
	Err error
}

// Watch runs fn on its own goroutine and returns a channel that receives
// its single Result. The caller suspends on the channel with
// scheduler.Runtime.Wait, so the coroutine proper never blocks an OS
// thread for longer than it takes to hand the token back.
func Watch(fn func() (int, error)) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		n, err := fn()
		out <- Result{N: n, Err: err}
	}()

	return out
}

// Poller counts outstanding Watch goroutines across a Runtime, so the
// scheduler's fairness drain has something to report: a Runtime that never
// has outstanding I/O never needs draining.
type Poller struct {
	mu      sync.Mutex
	pending int64
}

// New returns an empty Poller.
func New() *Poller {
	return &Poller{}
}

// Track wraps fn so the Poller's pending count reflects it for the
// duration of the call.
func (p *Poller) Track(fn func() (int, error)) <-chan Result {
	atomic.AddInt64(&p.pending, 1)
	out := make(chan Result, 1)

	go func() {
		defer atomic.AddInt64(&p.pending, -1)
		n, err := fn()
		out <- Result{N: n, Err: err}
	}()

	return out
}

// Pending returns the number of Watch/Track goroutines still in flight.
func (p *Poller) Pending() int64 {
	return atomic.LoadInt64(&p.pending)
}

// Drain is the scheduler fairness callback: it is intentionally a no-op,
// since Go's netpoller already schedules the goroutines Watch/Track spawn
// without this package's help - Drain exists so Runtime.SetDrain always
// has something concrete to call, matching the shape of a vtable slot that
// was a raw poll() loop in the original.
func (p *Poller) Drain() {}
