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

package runtimeops

import (
	"math"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/date"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/scalar"
)

// EvalExpr evaluates a value expression at one row of t, consulting
// scalars for names that are not columns and externs for call nodes
//. externs may be nil if e contains no call nodes.
func EvalExpr(e *ir.Expr, t *column.Table, row int, scalars *ScalarRegistry, externs *extern.Registry) (ir.Literal, error) {
	switch e.Kind {
	case ir.ExprColumn:
		return lookupValue(e.Column, t, row, scalars)
	case ir.ExprLiteral:
		return e.Lit, nil
	case ir.ExprBinary:
		l, err := EvalExpr(e.Left, t, row, scalars, externs)
		if err != nil {
			return ir.Literal{}, err
		}
		r, err := EvalExpr(e.Right, t, row, scalars, externs)
		if err != nil {
			return ir.Literal{}, err
		}
		return evalArith(e.Op, l, r)
	case ir.ExprCall:
		return evalCall(e.Callee, e.Args, t, row, scalars, externs)
	default:
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrLowering, "unknown value expression kind %d", e.Kind)
	}
}

func evalCall(callee string, args []ir.Expr, t *column.Table, row int, scalars *ScalarRegistry, externs *extern.Registry) (ir.Literal, error) {
	if externs == nil {
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrReference, "no extern registry available to call %s", callee)
	}
	fn, err := externs.MustFind(callee)
	if err != nil {
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	if fn.Kind != extern.ScalarReturn {
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrType, "extern function %s does not return a scalar", callee)
	}
	sargs := make([]scalar.Value, len(args))
	for i := range args {
		lit, err := EvalExpr(&args[i], t, row, scalars, externs)
		if err != nil {
			return ir.Literal{}, err
		}
		sargs[i] = scalarFromLiteral(lit)
	}
	v, err := fn.Scalar(sargs)
	if err != nil {
		return ir.Literal{}, err
	}
	return literalFromScalar(v), nil
}

func lookupValue(name string, t *column.Table, row int, scalars *ScalarRegistry) (ir.Literal, error) {
	if col, ok := t.Find(name); ok {
		return literalFromColumn(col, row), nil
	}
	if v, ok := scalars.Lookup(name); ok {
		return literalFromScalar(v), nil
	}
	return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrReference, "unknown column or bound name: %s", name)
}

func literalFromColumn(col *column.Column, row int) ir.Literal {
	switch col.Kind() {
	case column.Int64:
		return ir.IntLiteral(col.Int64At(row))
	case column.Float64:
		return ir.FloatLiteral(col.Float64At(row))
	case column.String, column.Categorical:
		return ir.StringLiteral(col.StringAt(row))
	case column.Date:
		return ir.DateLiteral(col.DateAt(row))
	case column.Timestamp:
		return ir.TimestampLiteral(col.TimestampAt(row))
	default:
		return ir.Literal{}
	}
}

func literalFromScalar(v scalar.Value) ir.Literal {
	switch v.Kind() {
	case scalar.Int:
		return ir.IntLiteral(v.AsInt64())
	case scalar.Float:
		return ir.FloatLiteral(v.AsFloat64())
	default:
		return ir.StringLiteral(v.AsString())
	}
}

// ScalarFromLiteral converts a Literal to the scalar.Value that
// crosses the extern-function boundary; dates and timestamps pass as
// their underlying integer. Exported for callers (the
// interpreter's ExternCall dispatch, the emitter) that need the same
// conversion outside a row-evaluation context.
func ScalarFromLiteral(lit ir.Literal) scalar.Value { return scalarFromLiteral(lit) }

// LiteralFromScalar is ScalarFromLiteral's inverse, exported for the
// same reason.
func LiteralFromScalar(v scalar.Value) ir.Literal { return literalFromScalar(v) }

// scalarFromLiteral converts a Literal to the scalar.Value that
// crosses the extern-function boundary; dates and timestamps pass as
// their underlying integer.
func scalarFromLiteral(lit ir.Literal) scalar.Value {
	switch lit.Kind {
	case ir.LitInt64:
		return scalar.Int64(lit.I)
	case ir.LitFloat64:
		return scalar.Float64(lit.F)
	case ir.LitDate:
		return scalar.Int64(int64(lit.D))
	case ir.LitTimestamp:
		return scalar.Int64(int64(lit.T))
	default:
		return scalar.Str(lit.S)
	}
}

func toFloat(l ir.Literal) float64 {
	if l.Kind == ir.LitFloat64 {
		return l.F
	}
	return float64(l.I)
}

// evalArith applies the arithmetic promotion rules: Int op Int stays
// Int, except / (always Float) and mod (stays Int only when
// both operands are Int); any Float operand makes the result Float;
// strings, dates, and timestamps cannot participate in arithmetic.
func evalArith(op ir.ArithOp, l, r ir.Literal) (ir.Literal, error) {
	if l.Kind == ir.LitString || r.Kind == ir.LitString {
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrType, "string operand in arithmetic expression")
	}
	if isTemporal(l.Kind) || isTemporal(r.Kind) {
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrType, "date/timestamp operand in arithmetic expression")
	}
	bothInt := l.Kind == ir.LitInt64 && r.Kind == ir.LitInt64
	switch op {
	case ir.Div:
		return ir.FloatLiteral(toFloat(l) / toFloat(r)), nil
	case ir.Mod:
		if bothInt {
			if r.I == 0 {
				return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrType, "mod by zero")
			}
			return ir.IntLiteral(l.I % r.I), nil
		}
		return ir.FloatLiteral(math.Mod(toFloat(l), toFloat(r))), nil
	case ir.Add, ir.Sub, ir.Mul:
		if bothInt {
			switch op {
			case ir.Add:
				return ir.IntLiteral(l.I + r.I), nil
			case ir.Sub:
				return ir.IntLiteral(l.I - r.I), nil
			default:
				return ir.IntLiteral(l.I * r.I), nil
			}
		}
		lf, rf := toFloat(l), toFloat(r)
		switch op {
		case ir.Add:
			return ir.FloatLiteral(lf + rf), nil
		case ir.Sub:
			return ir.FloatLiteral(lf - rf), nil
		default:
			return ir.FloatLiteral(lf * rf), nil
		}
	default:
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrLowering, "unknown arithmetic operator %v", op)
	}
}

func isTemporal(k ir.LiteralKind) bool {
	return k == ir.LitDate || k == ir.LitTimestamp
}

// EvalFilterBool evaluates a filter expression at one row to a
// boolean, following the filter tree's compose-only-via-and/or/not
// rule. And/Or short-circuit left to right.
func EvalFilterBool(e *ir.FilterExpr, t *column.Table, row int, scalars *ScalarRegistry, externs *extern.Registry) (bool, error) {
	switch e.Kind {
	case ir.FAnd:
		l, err := EvalFilterBool(e.Left, t, row, scalars, externs)
		if err != nil || !l {
			return false, err
		}
		return EvalFilterBool(e.Right, t, row, scalars, externs)
	case ir.FOr:
		l, err := EvalFilterBool(e.Left, t, row, scalars, externs)
		if err != nil || l {
			return l, err
		}
		return EvalFilterBool(e.Right, t, row, scalars, externs)
	case ir.FNot:
		v, err := EvalFilterBool(e.Operand, t, row, scalars, externs)
		return !v, err
	case ir.FCompare:
		l, err := evalFilterValue(e.Left, t, row, scalars, externs)
		if err != nil {
			return false, err
		}
		r, err := evalFilterValue(e.Right, t, row, scalars, externs)
		if err != nil {
			return false, err
		}
		return compareValues(e.CompareOp, l, r)
	default:
		return false, ibexerr.Wrap(ibexerr.ErrType, "filter expression must be boolean (compare/and/or/not), got node kind %d", e.Kind)
	}
}

func evalFilterValue(e *ir.FilterExpr, t *column.Table, row int, scalars *ScalarRegistry, externs *extern.Registry) (ir.Literal, error) {
	switch e.Kind {
	case ir.FColumn:
		return lookupValue(e.Column, t, row, scalars)
	case ir.FLiteral:
		return e.Lit, nil
	case ir.FArith:
		l, err := evalFilterValue(e.Left, t, row, scalars, externs)
		if err != nil {
			return ir.Literal{}, err
		}
		r, err := evalFilterValue(e.Right, t, row, scalars, externs)
		if err != nil {
			return ir.Literal{}, err
		}
		return evalArith(e.ArithOp, l, r)
	default:
		return ir.Literal{}, ibexerr.Wrap(ibexerr.ErrType, "expected a value expression inside a comparison, got node kind %d", e.Kind)
	}
}

// compareValues implements the comparison rule: numeric
// operands promote to float64; dates and timestamps compare as their
// opaque ordered representation; strings compare lexicographically;
// mixing strings with anything else, or dates with timestamps, is a
// type error.
func compareValues(op ir.CompareOp, l, r ir.Literal) (bool, error) {
	switch {
	case l.Kind == ir.LitString || r.Kind == ir.LitString:
		if l.Kind != ir.LitString || r.Kind != ir.LitString {
			return false, ibexerr.Wrap(ibexerr.ErrType, "cannot compare string to non-string")
		}
		return compareOrdered(op, l.S < r.S, l.S == r.S), nil
	case l.Kind == ir.LitDate || r.Kind == ir.LitDate:
		if l.Kind != ir.LitDate || r.Kind != ir.LitDate {
			return false, ibexerr.Wrap(ibexerr.ErrType, "cannot compare date to non-date")
		}
		return compareOrdered(op, l.D < r.D, l.D == r.D), nil
	case l.Kind == ir.LitTimestamp || r.Kind == ir.LitTimestamp:
		if l.Kind != ir.LitTimestamp || r.Kind != ir.LitTimestamp {
			return false, ibexerr.Wrap(ibexerr.ErrType, "cannot compare timestamp to non-timestamp")
		}
		return compareOrdered(op, l.T < r.T, l.T == r.T), nil
	default:
		lf, rf := toFloat(l), toFloat(r)
		return compareOrdered(op, lf < rf, lf == rf), nil
	}
}

func compareOrdered(op ir.CompareOp, less, equal bool) bool {
	switch op {
	case ir.Eq:
		return equal
	case ir.Ne:
		return !equal
	case ir.Lt:
		return less
	case ir.Le:
		return less || equal
	case ir.Gt:
		return !less && !equal
	default: // ir.Ge
		return !less
	}
}

// InferKind statically infers the column type a value expression
// would produce, used to pick the output column type before an Update
// evaluates it row by row. Call expressions have no
// static return type declared anywhere in the core, so InferKind
// evaluates row 0 to discover it (defaulting to Float64 against an
// empty table), which is a pragmatic simplification rather than true
// static typing.
func InferKind(e *ir.Expr, t *column.Table, scalars *ScalarRegistry, externs *extern.Registry) (column.Kind, error) {
	switch e.Kind {
	case ir.ExprColumn:
		if col, ok := t.Find(e.Column); ok {
			return col.Kind(), nil
		}
		if v, ok := scalars.Lookup(e.Column); ok {
			return columnKindFromScalarKind(v.Kind()), nil
		}
		return 0, ibexerr.Wrap(ibexerr.ErrReference, "unknown column or bound name: %s", e.Column)
	case ir.ExprLiteral:
		return columnKindFromLiteralKind(e.Lit.Kind), nil
	case ir.ExprBinary:
		lk, err := InferKind(e.Left, t, scalars, externs)
		if err != nil {
			return 0, err
		}
		rk, err := InferKind(e.Right, t, scalars, externs)
		if err != nil {
			return 0, err
		}
		if lk == column.String || rk == column.String {
			return 0, ibexerr.Wrap(ibexerr.ErrType, "string operand in arithmetic expression")
		}
		if lk == column.Date || lk == column.Timestamp || rk == column.Date || rk == column.Timestamp {
			return 0, ibexerr.Wrap(ibexerr.ErrType, "date/timestamp operand in arithmetic expression")
		}
		if e.Op == ir.Div {
			return column.Float64, nil
		}
		if e.Op == ir.Mod {
			if lk == column.Int64 && rk == column.Int64 {
				return column.Int64, nil
			}
			return column.Float64, nil
		}
		if lk == column.Float64 || rk == column.Float64 {
			return column.Float64, nil
		}
		return column.Int64, nil
	case ir.ExprCall:
		if t.Rows() == 0 {
			return column.Float64, nil
		}
		lit, err := EvalExpr(e, t, 0, scalars, externs)
		if err != nil {
			return 0, err
		}
		return columnKindFromLiteralKind(lit.Kind), nil
	default:
		return 0, ibexerr.Wrap(ibexerr.ErrLowering, "unknown value expression kind %d", e.Kind)
	}
}

func columnKindFromLiteralKind(k ir.LiteralKind) column.Kind {
	switch k {
	case ir.LitInt64:
		return column.Int64
	case ir.LitFloat64:
		return column.Float64
	case ir.LitDate:
		return column.Date
	case ir.LitTimestamp:
		return column.Timestamp
	default:
		return column.String
	}
}

func columnKindFromScalarKind(k scalar.Kind) column.Kind {
	switch k {
	case scalar.Int:
		return column.Int64
	case scalar.Float:
		return column.Float64
	default:
		return column.String
	}
}

func toInt(l ir.Literal) int64 {
	if l.Kind == ir.LitFloat64 {
		return int64(l.F)
	}
	return l.I
}

// newColumn allocates a fresh, empty column of kind k.
func newColumn(k column.Kind) *column.Column {
	switch k {
	case column.Int64:
		return column.NewInt64(nil)
	case column.Float64:
		return column.NewFloat64(nil)
	case column.Date:
		return column.NewDate(nil)
	case column.Timestamp:
		return column.NewTimestamp(nil)
	default:
		return column.NewString(nil)
	}
}

// appendLiteral appends lit's value onto dst, which must have been
// allocated by newColumn with a matching kind.
func appendLiteral(dst *column.Column, lit ir.Literal) {
	switch dst.Kind() {
	case column.Int64:
		dst.Append(column.NewInt64([]int64{toInt(lit)}), 0)
	case column.Float64:
		dst.Append(column.NewFloat64([]float64{toFloat(lit)}), 0)
	case column.Date:
		dst.Append(column.NewDate([]date.Date{lit.D}), 0)
	case column.Timestamp:
		dst.Append(column.NewTimestamp([]date.Timestamp{lit.T}), 0)
	default:
		dst.AppendString(lit.S)
	}
}
