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

package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanIn runs each of fns as its own coroutine under r, waits for all of
// them to finish, and returns the first non-nil error. Canceling ctx - or
// any fn returning an error - stops every other fn still running, the same
// short-circuit an errgroup.Group gives a plain goroutine fan-in.
//
// r is a single-token Runtime, so fns do not run in parallel - they take
// turns holding the token exactly like any other coroutine r.Go spawns. A
// fn that waits on something must call r.Release() first and r.Acquire()
// on resume, the same suspension contract every other coroutine in this
// module follows; a fn that blocks without releasing starves every other
// fn still waiting for the token.
//
// This is the pattern a worker-pool layer (or a transport's accept loop)
// uses to run a fixed number of workers under one Runtime and collect
// whichever of them fails first.
func (r *Runtime) FanIn(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, fn := range fns {
		fn := fn

		g.Go(func() error {
			var runErr error

			co := r.Go(gctx, func(cctx context.Context) {
				runErr = fn(cctx)
			})

			if err := co.Done(NoDeadline); err != nil {
				return err
			}
			return runErr
		})
	}

	return g.Wait()
}
