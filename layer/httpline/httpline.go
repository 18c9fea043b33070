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

// Package httpline is a thin CRLF-delimited line-framing layer over a
// handle.Bytestream, per spec.md §4.6.6: request/status lines and
// header-style fields, with strict parsing and a bound on line length.
package httpline

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nabbar/dsock/ioutils/delim"

	liberr "github.com/nabbar/dsock/errors"
	"github.com/nabbar/dsock/handle"
	libsiz "github.com/nabbar/dsock/size"
)

// maxLine bounds the longest line this layer will send or receive.
const maxLine = 1024

// disallowedNameChars mirrors RFC 7230's token grammar exclusions for
// a field name.
const disallowedNameChars = "(),/:;<=>?@[]\\{}\" \t"

// Underlying is the bytestream httpline wraps.
type Underlying interface {
	SendVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	RecvVecCtx(ctx context.Context, list handle.Vectored, deadline time.Time) (int, error)
	Close() error
}

// Conn is a CRLF-line-framed handle.Bytestream.
type Conn struct {
	inner Underlying
	sr    *streamReader
	bd    delim.BufferDelim
}

// New wraps inner with line-oriented send/recv operations.
func New(inner Underlying) *Conn {
	sr := &streamReader{ctx: context.Background(), inner: inner}
	return &Conn{
		inner: inner,
		sr:    sr,
		bd:    delim.New(sr, '\n', libsiz.Size(maxLine)),
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

// SendRequest writes "method resource\r\n".
func (c *Conn) SendRequest(ctx context.Context, method, resource string, deadline time.Time) error {
	return c.writeLine(ctx, method+" "+resource, deadline)
}

// RecvRequest reads a request line and splits it into method and resource.
func (c *Conn) RecvRequest(ctx context.Context, deadline time.Time) (method, resource string, err error) {
	line, err := c.readLine(ctx, deadline)
	if err != nil {
		return "", "", err
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", liberr.ErrProto.Error(nil)
	}

	return fields[0], fields[1], nil
}

// SendStatus writes "ddd reason\r\n", code zero-padded to three digits.
func (c *Conn) SendStatus(ctx context.Context, code int, reason string, deadline time.Time) error {
	if code < 0 || code > 999 {
		return liberr.ErrInval.Error(nil)
	}
	return c.writeLine(ctx, threeDigits(code)+" "+reason, deadline)
}

// RecvStatus reads a status line, returning the numeric code and reason.
func (c *Conn) RecvStatus(ctx context.Context, deadline time.Time) (code int, reason string, err error) {
	line, err := c.readLine(ctx, deadline)
	if err != nil {
		return 0, "", err
	}

	fields := strings.SplitN(strings.TrimLeft(line, " "), " ", 2)
	if len(fields[0]) != 3 {
		return 0, "", liberr.ErrProto.Error(nil)
	}
	for _, r := range fields[0] {
		if r < '0' || r > '9' {
			return 0, "", liberr.ErrProto.Error(nil)
		}
	}

	n, convErr := strconv.Atoi(fields[0])
	if convErr != nil {
		return 0, "", liberr.ErrProto.Error(convErr)
	}

	if len(fields) == 2 {
		reason = strings.TrimLeft(fields[1], " ")
	}

	return n, reason, nil
}

// SendField writes "name: value\r\n". name must not contain any of the
// disallowed token characters and value must be non-empty once
// trimmed.
func (c *Conn) SendField(ctx context.Context, name, value string, deadline time.Time) error {
	if err := validateFieldName(name); err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return liberr.ErrProto.Error(nil)
	}

	return c.writeLine(ctx, name+": "+value, deadline)
}

// RecvField reads a "name: value" line.
func (c *Conn) RecvField(ctx context.Context, deadline time.Time) (name, value string, err error) {
	line, err := c.readLine(ctx, deadline)
	if err != nil {
		return "", "", err
	}

	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", liberr.ErrProto.Error(nil)
	}

	name = line[:idx]
	if err := validateFieldName(name); err != nil {
		return "", "", err
	}

	value = strings.TrimSpace(line[idx+1:])
	if value == "" {
		return "", "", liberr.ErrProto.Error(nil)
	}

	return name, value, nil
}

func validateFieldName(name string) error {
	if name == "" {
		return liberr.ErrProto.Error(nil)
	}
	if strings.ContainsAny(name, disallowedNameChars) {
		return liberr.ErrProto.Error(nil)
	}
	return nil
}

func threeDigits(code int) string {
	s := strconv.Itoa(code)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

func (c *Conn) writeLine(ctx context.Context, line string, deadline time.Time) error {
	raw := []byte(line + "\r\n")
	if len(raw) > maxLine {
		return liberr.ErrMsgSize.Error(nil)
	}

	out := newByteVec(raw)
	n, err := c.inner.SendVecCtx(ctx, out, deadline)
	if err != nil {
		return err
	}
	if n < len(raw) {
		return liberr.ErrPipe.Error(nil)
	}
	return nil
}

func (c *Conn) readLine(ctx context.Context, deadline time.Time) (string, error) {
	c.sr.ctx = ctx
	c.sr.deadline = deadline

	raw, err := c.bd.ReadBytes()
	if err != nil && len(raw) == 0 {
		if err == io.EOF {
			return "", liberr.ErrPipe.Error(nil)
		}
		if lerr, ok := err.(liberr.Error); ok {
			return "", lerr
		}
		return "", liberr.ErrProto.Error(err)
	}

	if len(raw) > maxLine {
		return "", liberr.ErrMsgSize.Error(nil)
	}

	return strings.TrimRight(string(raw), "\r\n"), nil
}

// streamReader adapts an Underlying bytestream into an io.ReadCloser so
// ioutils/delim can buffer and split it on '\n'. ctx/deadline are set by
// Conn before each top-level operation.
type streamReader struct {
	ctx      context.Context
	inner    Underlying
	deadline time.Time
}

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.inner.RecvVecCtx(r.ctx, newByteVec(p), r.deadline)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r *streamReader) Close() error {
	return nil
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
