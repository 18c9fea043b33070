/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package errors

// Per-package error code ranges. Each package that needs codes beyond the
// canonical Kind sentinels (see kind.go) reserves a 100-wide block here, the
// same way the teacher library partitions MinPkgHttpServer, MinPkgNetwork, etc.
const (
	MinPkgHandle     = 100
	MinPkgIOList     = 200
	MinPkgScheduler  = 300
	MinPkgChannel    = 400
	MinPkgPoller     = 500
	MinPkgTransport  = 600
	MinPkgTLS        = 700
	MinPkgWebsocket  = 800
	MinPkgNaCl       = 900
	MinPkgLZ4        = 1000
	MinPkgThrottle   = 1100
	MinPkgNagle      = 1200
	MinPkgKeepAlive  = 1300
	MinPkgHTTPLine   = 1400
	MinPkgTrace      = 1500
	MinPkgURI        = 1600

	MinAvailable = 2000

	// MIN_AVAILABLE @Deprecated use MinAvailable constant
	MIN_AVAILABLE = MinAvailable
)
