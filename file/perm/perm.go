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

// Package perm wraps os.FileMode with octal string parsing and JSON
// encoding, so config structs can carry a file permission as "0644"
// instead of a raw integer.
package perm

import (
	"encoding/json"
	"os"
	"strconv"
)

// Perm is a file permission, encoded the same way os.FileMode is.
type Perm os.FileMode

// Parse parses an octal string (e.g. "0644") into a Perm.
func Parse(s string) (Perm, error) {
	return parseString(s)
}

// ParseFileMode converts an os.FileMode into a Perm.
func ParseFileMode(p os.FileMode) Perm {
	return Perm(p)
}

// ParseInt parses an integer permission value (e.g. 0644) into a Perm.
func ParseInt(i int) (Perm, error) {
	return parseString(strconv.FormatInt(int64(i), 8))
}

func parseString(s string) (Perm, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	return Perm(v), nil
}

// FileMode returns p as an os.FileMode, for use with the os package.
func (p Perm) FileMode() os.FileMode {
	return os.FileMode(p)
}

// Uint32 returns p as a uint32.
func (p Perm) Uint32() uint32 {
	return uint32(p)
}

// String renders p as a zero-padded octal string, e.g. "0644".
func (p Perm) String() string {
	s := strconv.FormatUint(uint64(p), 8)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// MarshalJSON encodes p as its octal string form.
func (p Perm) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes an octal string form into p.
func (p *Perm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parseString(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
