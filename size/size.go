/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package size is a byte-count type with binary-unit constants (KiB,
// MiB, ...), used anywhere a buffer size needs to read better than a
// bare integer literal.
package size

// Size is a count of bytes.
type Size uint64

// Binary-unit byte counts, each 1024 times the previous.
const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo Size = SizeUnit << 10
	SizeMega Size = SizeKilo << 10
	SizeGiga Size = SizeMega << 10
	SizeTera Size = SizeGiga << 10
	SizePeta Size = SizeTera << 10
	SizeExa  Size = SizePeta << 10
)

// Convenience aliases matching the *iB unit names.
const (
	Byte Size = SizeUnit
	KiB  Size = SizeKilo
	MiB  Size = SizeMega
	GiB  Size = SizeGiga
	TiB  Size = SizeTera
	PiB  Size = SizePeta
	EiB  Size = SizeExa
)

// Int returns s as an int, for APIs (like bufio.NewReaderSize) that
// take a plain buffer size.
func (s Size) Int() int {
	return int(s)
}

// Uint64 returns s as a uint64.
func (s Size) Uint64() uint64 {
	return uint64(s)
}

// Float64 returns s as a float64, useful for computing human-readable
// ratios against the unit constants.
func (s Size) Float64() float64 {
	return float64(s)
}
