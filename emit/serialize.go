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

package emit

import (
	"fmt"
	"strconv"

	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// quoteString renders s as a Go string literal. strconv.Quote escapes
// backslashes, double quotes, and every non-printable rune (newlines,
// tabs, carriage returns and other control characters); its output is a textual round-trip of s by
// Go's own string-literal grammar, so no hand-rolled escaping can
// diverge from it.
func quoteString(s string) string {
	return strconv.Quote(s)
}

// formatFloat renders f so that parsing the emitted literal back
// reproduces f exactly.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func emitLiteral(lit ir.Literal) (string, error) {
	switch lit.Kind {
	case ir.LitInt64:
		return fmt.Sprintf("ir.IntLiteral(%d)", lit.I), nil
	case ir.LitFloat64:
		return fmt.Sprintf("ir.FloatLiteral(%s)", formatFloat(lit.F)), nil
	case ir.LitString:
		return fmt.Sprintf("ir.StringLiteral(%s)", quoteString(lit.S)), nil
	case ir.LitDate:
		return fmt.Sprintf("ir.DateLiteral(date.Date(%d))", int32(lit.D)), nil
	case ir.LitTimestamp:
		return fmt.Sprintf("ir.TimestampLiteral(date.Timestamp(%d))", int64(lit.T)), nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown literal kind %d", lit.Kind)
	}
}

func arithOpIdent(op ir.ArithOp) (string, error) {
	switch op {
	case ir.Add:
		return "ir.Add", nil
	case ir.Sub:
		return "ir.Sub", nil
	case ir.Mul:
		return "ir.Mul", nil
	case ir.Div:
		return "ir.Div", nil
	case ir.Mod:
		return "ir.Mod", nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown arithmetic operator %v", op)
	}
}

func compareOpIdent(op ir.CompareOp) (string, error) {
	switch op {
	case ir.Eq:
		return "ir.Eq", nil
	case ir.Ne:
		return "ir.Ne", nil
	case ir.Lt:
		return "ir.Lt", nil
	case ir.Le:
		return "ir.Le", nil
	case ir.Gt:
		return "ir.Gt", nil
	case ir.Ge:
		return "ir.Ge", nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown comparison operator %v", op)
	}
}

func aggFuncIdent(f ir.AggFunc) (string, error) {
	switch f {
	case ir.Sum:
		return "ir.Sum", nil
	case ir.Mean:
		return "ir.Mean", nil
	case ir.Min:
		return "ir.Min", nil
	case ir.Max:
		return "ir.Max", nil
	case ir.Count:
		return "ir.Count", nil
	case ir.First:
		return "ir.First", nil
	case ir.Last:
		return "ir.Last", nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown aggregate function %v", f)
	}
}

func joinKindIdent(k ir.JoinKind) (string, error) {
	switch k {
	case ir.InnerJoin:
		return "ir.InnerJoin", nil
	case ir.LeftJoin:
		return "ir.LeftJoin", nil
	case ir.AsofJoin:
		return "ir.AsofJoin", nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown join kind %v", k)
	}
}

// emitFilterExpr renders e as Go source constructing the equivalent
// ir.FilterExpr value, so the generated program reconstructs exactly
// the predicate the lowerer built.
func emitFilterExpr(e ir.FilterExpr) (string, error) {
	switch e.Kind {
	case ir.FColumn:
		return fmt.Sprintf("ir.FilterColumnExpr(%s)", quoteString(e.Column)), nil
	case ir.FLiteral:
		lit, err := emitLiteral(e.Lit)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterLiteralExpr(%s)", lit), nil
	case ir.FArith:
		op, err := arithOpIdent(e.ArithOp)
		if err != nil {
			return "", err
		}
		l, err := emitFilterExpr(*e.Left)
		if err != nil {
			return "", err
		}
		r, err := emitFilterExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterArithExpr(%s, %s, %s)", op, l, r), nil
	case ir.FCompare:
		op, err := compareOpIdent(e.CompareOp)
		if err != nil {
			return "", err
		}
		l, err := emitFilterExpr(*e.Left)
		if err != nil {
			return "", err
		}
		r, err := emitFilterExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterCompareExpr(%s, %s, %s)", op, l, r), nil
	case ir.FAnd:
		l, err := emitFilterExpr(*e.Left)
		if err != nil {
			return "", err
		}
		r, err := emitFilterExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterAndExpr(%s, %s)", l, r), nil
	case ir.FOr:
		l, err := emitFilterExpr(*e.Left)
		if err != nil {
			return "", err
		}
		r, err := emitFilterExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterOrExpr(%s, %s)", l, r), nil
	case ir.FNot:
		op, err := emitFilterExpr(*e.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.FilterNotExpr(%s)", op), nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown filter expression kind %d", e.Kind)
	}
}

// emitValueExpr is emitFilterExpr's counterpart for the value
// expression tree used inside Update fields and ExternCall arguments.
func emitValueExpr(e ir.Expr) (string, error) {
	switch e.Kind {
	case ir.ExprColumn:
		return fmt.Sprintf("ir.ColumnExpr(%s)", quoteString(e.Column)), nil
	case ir.ExprLiteral:
		lit, err := emitLiteral(e.Lit)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.LiteralExpr(%s)", lit), nil
	case ir.ExprBinary:
		op, err := arithOpIdent(e.Op)
		if err != nil {
			return "", err
		}
		l, err := emitValueExpr(*e.Left)
		if err != nil {
			return "", err
		}
		r, err := emitValueExpr(*e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.BinaryExpr(%s, %s, %s)", op, l, r), nil
	case ir.ExprCall:
		args, err := emitExprSlice(e.Args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ir.CallExpr(%s, %s)", quoteString(e.Callee), args), nil
	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown value expression kind %d", e.Kind)
	}
}

func emitExprSlice(exprs []ir.Expr) (string, error) {
	out := "[]ir.Expr{"
	for i := range exprs {
		s, err := emitValueExpr(exprs[i])
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out + "}", nil
}
