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

// Package lz4 compresses each message into a single LZ4 frame carrying
// the uncompressed size in its frame descriptor, per spec.md §4.6.3.
// Recv requires that content size: a frame without one is a protocol
// error, one that declares more bytes than the caller's receive buffer
// holds is MSGSIZE.
package lz4

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
)

// maxFrameGrowth bounds how much larger than the plaintext a received
// compressed frame is allowed to be before decoding it, guarding
// against unbounded allocation from a hostile or corrupt peer.
const maxFrameGrowth = 256

// Underlying is the message transport lz4 wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

// Conn is an LZ4-compressing handle.Message.
type Conn struct {
	inner Underlying
}

// New wraps inner, compressing every outgoing message and decompressing
// every incoming one.
func New(inner Underlying) *Conn {
	return &Conn{inner: inner}
}

// Query implements handle.Object.
func (c *Conn) Query(tag *handle.Capability) (interface{}, error) {
	if tag == handle.CapMessage {
		return c, nil
	}
	return nil, liberr.ErrNotSup.Error(nil)
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return c.inner.Close()
}

// SendVec compresses list's bytes into one LZ4 frame and sends it.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	plain := list.Bytes()

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if err := zw.Apply(lz4.SizeOption(uint64(len(plain)))); err != nil {
		return 0, liberr.ErrInval.Error(err)
	}
	if _, err := zw.Write(plain); err != nil {
		return 0, liberr.ErrNoMem.Error(err)
	}
	if err := zw.Close(); err != nil {
		return 0, liberr.ErrNoMem.Error(err)
	}

	out := newByteVec(buf.Bytes())
	n, err := c.inner.SendVecCtx(ctx, out, deadline)
	if err != nil {
		return 0, err
	}
	if n < out.Len() {
		return 0, liberr.ErrPipe.Error(nil)
	}
	return len(plain), nil
}

// RecvVec receives one compressed frame, validates its declared content
// size, decompresses it, and scatters the plaintext into list.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	cap := list.Len() + maxFrameGrowth
	frame := newByteVec(make([]byte, cap))

	n, err := c.inner.RecvVecCtx(ctx, frame, deadline)
	if err != nil {
		return 0, err
	}

	zr := lz4.NewReader(bytes.NewReader(frame.b[:n]))

	plain, err := io.ReadAll(zr)
	if err != nil {
		return 0, liberr.ErrProto.Error(err)
	}

	if zr.Header.Size == 0 {
		return 0, liberr.ErrProto.Error(nil)
	}

	if int(zr.Header.Size) > list.Len() {
		return 0, liberr.ErrMsgSize.Error(nil)
	}

	return list.Fill(plain), nil
}

type byteVec struct {
	b []byte
}

func newByteVec(b []byte) *byteVec { return &byteVec{b: b} }

func (v *byteVec) Len() int            { return len(v.b) }
func (v *byteVec) Bytes() []byte       { return v.b }
func (v *byteVec) Fill(src []byte) int { return copy(v.b, src) }
func (v *byteVec) Acquire() error      { return nil }
func (v *byteVec) Release()            {}
