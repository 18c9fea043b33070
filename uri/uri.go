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

// Package uri is the auxiliary URI parser named in spec.md §6: it
// breaks a raw URI into its scheme/userinfo/host/port/path/query/
// fragment components and reports, via a bitfield, which of them were
// actually present in the input - rather than reimplementing URI
// grammar, it is a thin wrapper over net/url.
package uri

import (
	"net/url"
	"strings"

	liberr "github.com/nabbar/dsock/errors"
)

// Present is a bitfield of which URI components appeared in the input.
type Present uint16

const (
	HasScheme Present = 1 << iota
	HasUserinfo
	HasHost
	HasPort
	HasPath
	HasQuery
	HasFragment
)

// Components is the parsed, decomposed form of a URI.
type Components struct {
	Scheme   string
	Userinfo string
	Host     string
	Port     string
	Path     string
	Query    string
	Fragment string
	Present  Present
}

// Has reports whether c's bitfield advertises component.
func (c *Components) Has(component Present) bool {
	return c.Present&component != 0
}

// Parse decomposes raw into its URI components.
func Parse(raw string) (*Components, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, liberr.ErrProto.Error(err)
	}

	c := &Components{}

	if u.Scheme != "" {
		c.Scheme = u.Scheme
		c.Present |= HasScheme
	}

	if u.User != nil {
		c.Userinfo = u.User.String()
		c.Present |= HasUserinfo
	}

	if host := u.Hostname(); host != "" {
		c.Host = host
		c.Present |= HasHost
	}

	if port := u.Port(); port != "" {
		c.Port = port
		c.Present |= HasPort
	}

	if u.Path != "" {
		c.Path = u.Path
		c.Present |= HasPath
	}

	if u.RawQuery != "" {
		c.Query = u.RawQuery
		c.Present |= HasQuery
	}

	if u.Fragment != "" {
		c.Fragment = u.Fragment
		c.Present |= HasFragment
	}

	return c, nil
}

// String reassembles c back into a URI string.
func (c *Components) String() string {
	var b strings.Builder

	if c.Has(HasScheme) {
		b.WriteString(c.Scheme)
		b.WriteString("://")
	}

	if c.Has(HasUserinfo) {
		b.WriteString(c.Userinfo)
		b.WriteByte('@')
	}

	b.WriteString(c.Host)

	if c.Has(HasPort) {
		b.WriteByte(':')
		b.WriteString(c.Port)
	}

	b.WriteString(c.Path)

	if c.Has(HasQuery) {
		b.WriteByte('?')
		b.WriteString(c.Query)
	}

	if c.Has(HasFragment) {
		b.WriteByte('#')
		b.WriteString(c.Fragment)
	}

	return b.String()
}
