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

// Package nacl is a symmetric authenticated-encryption handle.Message
// layer over NaCl secretbox, per spec.md §4.6.2: every frame is
// nonce || secretbox.Seal(plaintext), the nonce is a 24-byte
// little-endian counter incremented (with carry) before each send, and
// the initial send nonce is drawn from the CSPRNG at attach.
package nacl

import (
	"context"
	"crypto/rand"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
)

const (
	// KeySize is the secretbox key length in bytes.
	KeySize = 32
	// NonceSize is the secretbox nonce length in bytes.
	NonceSize = 24
)

// Underlying is the message transport nacl wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

// Conn is an authenticated-encryption handle.Message.
type Conn struct {
	inner Underlying
	key   [KeySize]byte
	snc   [NonceSize]byte
}

// Attach wraps inner, sealing every outgoing message under key and
// opening every incoming one. key must be exactly KeySize bytes.
func Attach(inner Underlying, key []byte) (*Conn, error) {
	if len(key) != KeySize {
		return nil, liberr.ErrInval.Error(nil)
	}

	c := &Conn{inner: inner}
	copy(c.key[:], key)

	if _, err := rand.Read(c.snc[:]); err != nil {
		return nil, liberr.ErrInval.Error(err)
	}

	return c, nil
}

func incNonce(n *[NonceSize]byte) {
	for i := range n {
		n[i]++
		if n[i] != 0 {
			break
		}
	}
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

// SendVec seals list's bytes and sends nonce||ciphertext as one frame.
func (c *Conn) SendVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.SendVecCtx(context.Background(), list, deadline)
}

// SendVecCtx is SendVec with an explicit cancellation context.
func (c *Conn) SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	incNonce(&c.snc)

	plain := list.Bytes()
	frame := make([]byte, NonceSize, NonceSize+len(plain)+secretbox.Overhead)
	copy(frame, c.snc[:])
	frame = secretbox.Seal(frame, plain, &c.snc, &c.key)

	out := newByteVec(frame)
	n, err := c.inner.SendVecCtx(ctx, out, deadline)
	if err != nil {
		return 0, err
	}
	if n < len(frame) {
		return 0, liberr.ErrPipe.Error(nil)
	}
	return len(plain), nil
}

// RecvVec reads one frame, authenticates and opens it, and scatters the
// plaintext into list. Authentication failure maps to ErrAccess.
func (c *Conn) RecvVec(list handle.Vectored, deadline time.Time) (int, error) {
	return c.RecvVecCtx(context.Background(), list, deadline)
}

// RecvVecCtx is RecvVec with an explicit cancellation context.
func (c *Conn) RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error) {
	frame := newByteVec(make([]byte, NonceSize+secretbox.Overhead+list.Len()))

	n, err := c.inner.RecvVecCtx(ctx, frame, deadline)
	if err != nil {
		return 0, err
	}
	if n < NonceSize+secretbox.Overhead {
		return 0, liberr.ErrProto.Error(nil)
	}

	raw := frame.b[:n]

	var recvNonce [NonceSize]byte
	copy(recvNonce[:], raw[:NonceSize])

	plain, ok := secretbox.Open(nil, raw[NonceSize:], &recvNonce, &c.key)
	if !ok {
		return 0, liberr.ErrAccess.Error(nil)
	}

	if len(plain) > list.Len() {
		return 0, liberr.ErrMsgSize.Error(nil)
	}

	return list.Fill(plain), nil
}

// byteVec is a minimal handle.Vectored backed by one contiguous slice,
// used internally to hand raw encrypted frames to the underlying
// transport without going through the caller's scatter-gather list.
type byteVec struct {
	b []byte
}

func newByteVec(b []byte) *byteVec { return &byteVec{b: b} }

func (v *byteVec) Len() int            { return len(v.b) }
func (v *byteVec) Bytes() []byte       { return v.b }
func (v *byteVec) Fill(src []byte) int { return copy(v.b, src) }
func (v *byteVec) Acquire() error      { return nil }
func (v *byteVec) Release()            {}
