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

// Package trace is a passthrough handle.Bytestream that logs a hex dump
// of every send/recv, tagged with the wrapped handle's id, to the
// diagnostic logger - per spec.md §4.5.4.
package trace

import (
	"context"
	"encoding/hex"
	"time"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	"github.com/nabbar/dsock/logger"
)

// Underlying is the stream trace wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

// Conn is a tracing handle.Bytestream.
type Conn struct {
	inner Underlying
	id    handle.Handle
	log   logger.Logger
}

// New wraps inner, logging every send/recv against id through log.
func New(inner Underlying, id handle.Handle, log logger.Logger) *Conn {
	return &Conn{inner: inner, id: id, log: log}
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

// SendVec logs the outgoing bytes, then passes them through unmodified.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	n, err := c.inner.SendVecCtx(ctx, list, deadline)
	c.dump("send", list.Bytes(), err)
	return n, err
}

// RecvVec passes through to the underlying stream, then logs whatever
// bytes it scattered into list.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	n, err := c.inner.RecvVecCtx(ctx, list, deadline)
	c.dump("recv", list.Bytes(), err)
	return n, err
}

func (c *Conn) dump(op string, b []byte, err error) {
	if c.log == nil {
		return
	}

	data := map[string]interface{}{
		"handle": uint64(c.id),
		"op":     op,
		"bytes":  len(b),
		"hex":    hex.EncodeToString(b),
	}

	if err != nil {
		data["error"] = err.Error()
	}

	c.log.Debug("bytestream trace", data)
}
