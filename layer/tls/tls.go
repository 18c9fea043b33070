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

// Package tls layers a lazy TLS handshake over a handle.Bytestream: the
// handshake does not run at construction, only on the first SendVec or
// RecvVec, the same way the original library's dsock_tls_attach deferred
// the handshake to first use.
package tls

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/nabbar/dsock/certificates"
	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/poller"
	"github.com/nabbar/dsock/scheduler"
)

// Conn wraps a *tls.Conn as a handle.Bytestream with a lazy handshake.
type Conn struct {
	rt *scheduler.Runtime
	pl *poller.Poller
	tc *tls.Conn

	hsOnce sync.Once
	hsErr  error
}

// NewClient wraps nc as a TLS client connection bound for serverName,
// using cfg's certificate and cipher configuration (see the certificates
// package).
func NewClient(rt *scheduler.Runtime, pl *poller.Poller, nc net.Conn, cfg certificates.TLSConfig, serverName string) *Conn {
	return &Conn{rt: rt, pl: pl, tc: tls.Client(nc, cfg.TLS(serverName))}
}

// NewServer wraps nc as a TLS server connection.
func NewServer(rt *scheduler.Runtime, pl *poller.Poller, nc net.Conn, cfg certificates.TLSConfig) *Conn {
	return &Conn{rt: rt, pl: pl, tc: tls.Server(nc, cfg.TLS(""))}
}

// Query implements handle.Object. Besides the Bytestream facet, a *Conn
// also answers CapBytestream queries with itself so callers needing the
// rich query surface (cipher suite, negotiated protocol, peer
// certificates) can type-assert to *Conn and call ConnectionState.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapBytestream {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes the underlying TLS connection (and its transport).
func (c *Conn) Close() error {
	return c.tc.Close()
}

// ConnectionState exposes the negotiated cipher suite, protocol, and peer
// certificate chain - the "rich query surface" spec.md §4.5.1 calls for.
// It is only meaningful after the handshake has run at least once.
func (c *Conn) ConnectionState() tls.ConnectionState {
	return c.tc.ConnectionState()
}

// SendVec performs the lazy handshake if needed, then writes list.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.ensureHandshake(ctx, deadline); err != nil {
		return 0, err
	}

	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	b := list.Bytes()

	ch := c.pl.Track(func() (int, error) {
		_ = c.tc.SetWriteDeadline(deadline)
		return c.tc.Write(b)
	})

	return c.await(ctx, ch)
}

// RecvVec performs the lazy handshake if needed, then reads into list.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	if err := c.ensureHandshake(ctx, deadline); err != nil {
		return 0, err
	}

	if err := list.Acquire(); err != nil {
		return 0, err
	}
	defer list.Release()

	buf := make([]byte, list.Len())

	ch := c.pl.Track(func() (int, error) {
		_ = c.tc.SetReadDeadline(deadline)
		return c.tc.Read(buf)
	})

	n, err := c.await(ctx, ch)
	if err != nil {
		return 0, err
	}

	return list.Fill(buf[:n]), nil
}

func (c *Conn) ensureHandshake(ctx context.Context, deadline time.Time) error {
	c.hsOnce.Do(func() {
		ch := c.pl.Track(func() (int, error) {
			if !deadline.IsZero() {
				_ = c.tc.SetDeadline(deadline)
			}
			return 0, c.tc.HandshakeContext(ctx)
		})

		c.rt.Release()
		select {
		case r := <-ch:
			_ = c.rt.Acquire(ctx)
			c.hsErr = mapTLSErr(r.Err)
		case <-ctx.Done():
			_ = c.rt.Acquire(context.Background())
			c.hsErr = liberr.ErrCanceled.Error(ctx.Err())
		}
	})

	return c.hsErr
}

func (c *Conn) await(ctx context.Context, ch <-chan poller.Result) (int, error) {
	c.rt.Release()

	select {
	case r := <-ch:
		if err := c.rt.Acquire(ctx); err != nil {
			return 0, err
		}
		return r.N, mapTLSErr(r.Err)
	case <-ctx.Done():
		_ = c.rt.Acquire(context.Background())
		return 0, liberr.ErrCanceled.Error(ctx.Err())
	}
}

func mapTLSErr(err error) error {
	if err == nil {
		return nil
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return liberr.ErrTimedOut.Error(err)
	}

	return liberr.ErrPipe.Error(err)
}
