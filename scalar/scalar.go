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

// Package scalar defines the narrow scalar value type that crosses
// the extern-function boundary: a 64-bit integer,
// a 64-bit float, or a string. Dates and timestamps pass through this
// interface as their underlying integer representation.
package scalar

import "fmt"

// Kind tags which alternative of Value is populated.
type Kind uint8

const (
	Int Kind = iota
	Float
	String
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a scalar value exchanged with extern functions and bound
// by `let` or used as a broadcast constant inside expressions.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Int64 wraps an int64 scalar.
func Int64(v int64) Value { return Value{kind: Int, i: v} }

// Float64 wraps a float64 scalar.
func Float64(v float64) Value { return Value{kind: Float, f: v} }

// Str wraps a string scalar.
func Str(v string) Value { return Value{kind: String, s: v} }

// Kind reports which alternative is populated.
func (v Value) Kind() Kind { return v.kind }

// AsInt64 returns the int64 payload; valid only when Kind() == Int.
func (v Value) AsInt64() int64 { return v.i }

// AsFloat64 returns the float64 payload; valid only when Kind() == Float.
func (v Value) AsFloat64() float64 { return v.f }

// AsString returns the string payload; valid only when Kind() == String.
func (v Value) AsString() string { return v.s }

// Float coerces an Int or Float value to float64; it panics on String,
// matching the invariant that callers must type-check before coercing
// (the interpreter never calls this on a string scalar).
func (v Value) Float() float64 {
	switch v.kind {
	case Int:
		return float64(v.i)
	case Float:
		return v.f
	default:
		panic("scalar: Float() on non-numeric value")
	}
}

func (v Value) String() string {
	switch v.kind {
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Float:
		return fmt.Sprintf("%g", v.f)
	case String:
		return v.s
	default:
		return "<invalid scalar>"
	}
}

// Equal reports whether v and other denote the same scalar value,
// promoting Int/Float pairs to float64 before comparing (matching the
// arithmetic promotion rule used throughout the expression evaluator).
func Equal(v, other Value) bool {
	if v.kind == String || other.kind == String {
		return v.kind == String && other.kind == String && v.s == other.s
	}
	return v.Float() == other.Float()
}
