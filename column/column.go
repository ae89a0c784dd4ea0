// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package column implements the typed columnar storage that backs
// Ibex tables: a homogeneously typed, contiguous, owning vector of
// values, plus an optional validity bitmap.
package column

import (
	"math"

	"github.com/bobjansen/ibex/date"
)

// Kind tags the element type stored by a Column. The element type is
// fixed at construction and never changes.
type Kind uint8

const (
	Int64 Kind = iota
	Float64
	String
	Date
	Timestamp
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	case Categorical:
		return "categorical"
	default:
		return "invalid"
	}
}

// Numeric reports whether k participates in arithmetic promotion
//.
func (k Kind) Numeric() bool {
	return k == Int64 || k == Float64
}

// Column is a typed, contiguous, owning vector of values of one Kind,
// with an optional validity bitmap (nil means "no missing values").
// A false bit in Valid marks a row as missing; the corresponding
// value cell is undefined and must not be read.
type Column struct {
	kind  Kind
	i64   []int64
	f64   []float64
	str   []string
	dt    []date.Date
	ts    []date.Timestamp
	codes []int32

	// dict is shared by every Categorical column produced from the
	// same dictionary; codes index into it.
	dict []string

	Valid []bool
}

// NewInt64 builds an Int64 column.
func NewInt64(vals []int64) *Column { return &Column{kind: Int64, i64: vals} }

// NewFloat64 builds a Float64 column.
func NewFloat64(vals []float64) *Column { return &Column{kind: Float64, f64: vals} }

// NewString builds a String column.
func NewString(vals []string) *Column { return &Column{kind: String, str: vals} }

// NewDate builds a Date column.
func NewDate(vals []date.Date) *Column { return &Column{kind: Date, dt: vals} }

// NewTimestamp builds a Timestamp column.
func NewTimestamp(vals []date.Timestamp) *Column { return &Column{kind: Timestamp, ts: vals} }

// NewCategorical builds a dictionary-encoded string column. codes
// index into dict; dict is shared (not copied) across columns
// produced from the same source.
func NewCategorical(codes []int32, dict []string) *Column {
	return &Column{kind: Categorical, codes: codes, dict: dict}
}

// Kind reports the column's element type.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of elements.
func (c *Column) Len() int {
	switch c.kind {
	case Int64:
		return len(c.i64)
	case Float64:
		return len(c.f64)
	case String:
		return len(c.str)
	case Date:
		return len(c.dt)
	case Timestamp:
		return len(c.ts)
	case Categorical:
		return len(c.codes)
	default:
		return 0
	}
}

// IsValid reports whether row i is present (true when there is no
// validity bitmap at all).
func (c *Column) IsValid(i int) bool {
	if c.Valid == nil {
		return true
	}
	return c.Valid[i]
}

// Int64At returns the int64 at i; only meaningful when Kind()==Int64.
func (c *Column) Int64At(i int) int64 { return c.i64[i] }

// Float64At returns the float64 at i; only meaningful when Kind()==Float64.
func (c *Column) Float64At(i int) float64 { return c.f64[i] }

// StringAt returns the string at i; meaningful for Kind()==String, or
// the decoded dictionary string for Kind()==Categorical.
func (c *Column) StringAt(i int) string {
	if c.kind == Categorical {
		return c.dict[c.codes[i]]
	}
	return c.str[i]
}

// DateAt returns the Date at i; only meaningful when Kind()==Date.
func (c *Column) DateAt(i int) date.Date { return c.dt[i] }

// TimestampAt returns the Timestamp at i; only meaningful when Kind()==Timestamp.
func (c *Column) TimestampAt(i int) date.Timestamp { return c.ts[i] }

// CodeAt returns the dictionary code at i; only meaningful when Kind()==Categorical.
func (c *Column) CodeAt(i int) int32 { return c.codes[i] }

// Dict returns the shared dictionary backing a Categorical column.
func (c *Column) Dict() []string { return c.dict }

// AsFloat64 returns row i coerced to float64, for Int64 or Float64
// columns, following the arithmetic promotion rule.
func (c *Column) AsFloat64(i int) float64 {
	switch c.kind {
	case Int64:
		return float64(c.i64[i])
	case Float64:
		return c.f64[i]
	default:
		panic("column: AsFloat64 on non-numeric column")
	}
}

// Append appends one element of src at index j onto c, which must
// share c's Kind. The validity bitmaps of both columns are kept in
// sync: once either column carries a bitmap, both do going forward.
func (c *Column) Append(src *Column, j int) {
	if src.kind != c.kind {
		panic("column: Append with mismatched kind")
	}
	if src.Valid != nil && c.Valid == nil {
		c.Valid = make([]bool, c.Len())
		for i := range c.Valid {
			c.Valid[i] = true
		}
	}
	switch c.kind {
	case Int64:
		c.i64 = append(c.i64, src.i64[j])
	case Float64:
		c.f64 = append(c.f64, src.f64[j])
	case String:
		c.str = append(c.str, src.str[j])
	case Date:
		c.dt = append(c.dt, src.dt[j])
	case Timestamp:
		c.ts = append(c.ts, src.ts[j])
	case Categorical:
		c.codes = append(c.codes, src.codes[j])
		if c.dict == nil {
			c.dict = src.dict
		}
	}
	if c.Valid != nil {
		c.Valid = append(c.Valid, src.IsValid(j))
	}
}

// AppendString appends one string value; valid for String columns
// and for Categorical columns, where the value is interned into the
// shared dictionary if not already present.
func (c *Column) AppendString(s string) {
	switch c.kind {
	case String:
		c.str = append(c.str, s)
	case Categorical:
		code := int32(-1)
		for i, d := range c.dict {
			if d == s {
				code = int32(i)
				break
			}
		}
		if code < 0 {
			code = int32(len(c.dict))
			c.dict = append(c.dict, s)
		}
		c.codes = append(c.codes, code)
	default:
		panic("column: AppendString on non-string column")
	}
	if c.Valid != nil {
		c.Valid = append(c.Valid, true)
	}
}

// Reserve grows the backing storage's capacity without changing Len.
func (c *Column) Reserve(n int) {
	switch c.kind {
	case Int64:
		c.i64 = growCap(c.i64, n)
	case Float64:
		c.f64 = growCap(c.f64, n)
	case String:
		c.str = growCap(c.str, n)
	case Date:
		c.dt = growCap(c.dt, n)
	case Timestamp:
		c.ts = growCap(c.ts, n)
	case Categorical:
		c.codes = growCap(c.codes, n)
	}
}

func growCap[T any](s []T, n int) []T {
	if cap(s)-len(s) >= n {
		return s
	}
	grown := make([]T, len(s), len(s)+n)
	copy(grown, s)
	return grown
}

// Slice returns a zero-copy view of c over [lo, hi).
func (c *Column) Slice(lo, hi int) *Column {
	out := &Column{kind: c.kind, dict: c.dict}
	switch c.kind {
	case Int64:
		out.i64 = c.i64[lo:hi]
	case Float64:
		out.f64 = c.f64[lo:hi]
	case String:
		out.str = c.str[lo:hi]
	case Date:
		out.dt = c.dt[lo:hi]
	case Timestamp:
		out.ts = c.ts[lo:hi]
	case Categorical:
		out.codes = c.codes[lo:hi]
	}
	if c.Valid != nil {
		out.Valid = c.Valid[lo:hi]
	}
	return out
}

// New returns an empty column of the same Kind as c, for use as a
// fresh-output accumulator (e.g. in Filter/Project).
func (c *Column) New() *Column {
	switch c.kind {
	case Int64:
		return NewInt64(nil)
	case Float64:
		return NewFloat64(nil)
	case String:
		return NewString(nil)
	case Date:
		return NewDate(nil)
	case Timestamp:
		return NewTimestamp(nil)
	case Categorical:
		return NewCategorical(nil, c.dict)
	default:
		panic("column: New on invalid kind")
	}
}

// Equal reports value equality over elements and validity bits.
func (c *Column) Equal(o *Column) bool {
	if c.kind != o.kind || c.Len() != o.Len() {
		return false
	}
	for i := 0; i < c.Len(); i++ {
		if c.IsValid(i) != o.IsValid(i) {
			return false
		}
		if !c.IsValid(i) {
			continue
		}
		if !valueEqual(c, o, i) {
			return false
		}
	}
	return true
}

func valueEqual(a, b *Column, i int) bool {
	switch a.kind {
	case Int64:
		return a.i64[i] == b.i64[i]
	case Float64:
		fa, fb := a.f64[i], b.f64[i]
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return math.IsNaN(fa) && math.IsNaN(fb)
		}
		return fa == fb
	case String:
		return a.str[i] == b.str[i]
	case Date:
		return a.dt[i] == b.dt[i]
	case Timestamp:
		return a.ts[i] == b.ts[i]
	case Categorical:
		return a.StringAt(i) == b.StringAt(i)
	default:
		return false
	}
}

// HashKey returns a value for row i suitable as a composite hash-map
// key component: float NaNs are canonicalized first so distinct/
// group-by treat all NaNs as the same key.
func (c *Column) HashKey(i int) any {
	switch c.kind {
	case Int64:
		return c.i64[i]
	case Float64:
		f := c.f64[i]
		if math.IsNaN(f) {
			return "nan"
		}
		return f
	case String:
		return c.str[i]
	case Date:
		return c.dt[i]
	case Timestamp:
		return c.ts[i]
	case Categorical:
		return c.StringAt(i)
	default:
		return nil
	}
}
