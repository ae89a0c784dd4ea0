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

package lower

import (
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/qast"
)

var arithOps = map[qast.BinOp]ir.ArithOp{
	qast.OpAdd: ir.Add,
	qast.OpSub: ir.Sub,
	qast.OpMul: ir.Mul,
	qast.OpDiv: ir.Div,
	qast.OpMod: ir.Mod,
}

var compareOps = map[qast.BinOp]ir.CompareOp{
	qast.OpEq: ir.Eq,
	qast.OpNe: ir.Ne,
	qast.OpLt: ir.Lt,
	qast.OpLe: ir.Le,
	qast.OpGt: ir.Gt,
	qast.OpGe: ir.Ge,
}

// lowerFilterExpr translates a parsed predicate tree shape-for-shape
// into the filter-expression sum type: arithmetic
// operators map to arithmetic kinds, comparisons to comparison kinds,
// logical operators to and/or/not. A bare identifier is a column
// reference; a bare literal is a filter literal.
func lowerFilterExpr(e qast.Expr) (ir.FilterExpr, error) {
	switch n := e.(type) {
	case *qast.Ident:
		return ir.FilterColumnExpr(n.Name), nil
	case *qast.IntLit:
		return ir.FilterLiteralExpr(ir.IntLiteral(n.Value)), nil
	case *qast.FloatLit:
		return ir.FilterLiteralExpr(ir.FloatLiteral(n.Value)), nil
	case *qast.StringLit:
		return ir.FilterLiteralExpr(ir.StringLiteral(n.Value)), nil
	case *qast.Grouped:
		return lowerFilterExpr(n.X)
	case *qast.Unary:
		operand, err := lowerFilterExpr(n.X)
		if err != nil {
			return ir.FilterExpr{}, err
		}
		return ir.FilterNotExpr(operand), nil
	case *qast.Binary:
		if n.Op == qast.OpAnd || n.Op == qast.OpOr {
			l, err := lowerFilterExpr(n.X)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			r, err := lowerFilterExpr(n.Y)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			if n.Op == qast.OpAnd {
				return ir.FilterAndExpr(l, r), nil
			}
			return ir.FilterOrExpr(l, r), nil
		}
		if cop, ok := compareOps[n.Op]; ok {
			l, err := lowerFilterExpr(n.X)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			r, err := lowerFilterExpr(n.Y)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			return ir.FilterCompareExpr(cop, l, r), nil
		}
		if aop, ok := arithOps[n.Op]; ok {
			l, err := lowerFilterExpr(n.X)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			r, err := lowerFilterExpr(n.Y)
			if err != nil {
				return ir.FilterExpr{}, err
			}
			return ir.FilterArithExpr(aop, l, r), nil
		}
		return ir.FilterExpr{}, ibexerr.Wrap(ibexerr.ErrLowering, "unknown filter operator %q", n.Op)
	default:
		return ir.FilterExpr{}, ibexerr.Wrap(ibexerr.ErrLowering, "unsupported literal or expression in filter")
	}
}

// lowerValueExpr translates an AST expression into the value
// expression tree used inside Update fields and ExternCall arguments
//: identifier→column ref, literal→literal, binary-
// arith→binary, grouped→operand, call→call. Comparison and logical
// forms are rejected: a value expression cannot be boolean-shaped.
func lowerValueExpr(e qast.Expr) (ir.Expr, error) {
	switch n := e.(type) {
	case *qast.Ident:
		return ir.ColumnExpr(n.Name), nil
	case *qast.IntLit:
		return ir.LiteralExpr(ir.IntLiteral(n.Value)), nil
	case *qast.FloatLit:
		return ir.LiteralExpr(ir.FloatLiteral(n.Value)), nil
	case *qast.StringLit:
		return ir.LiteralExpr(ir.StringLiteral(n.Value)), nil
	case *qast.Grouped:
		return lowerValueExpr(n.X)
	case *qast.Call:
		args := make([]ir.Expr, len(n.Args))
		for i, a := range n.Args {
			lowered, err := lowerValueExpr(a)
			if err != nil {
				return ir.Expr{}, err
			}
			args[i] = lowered
		}
		return ir.CallExpr(n.Callee, args), nil
	case *qast.Binary:
		if aop, ok := arithOps[n.Op]; ok {
			l, err := lowerValueExpr(n.X)
			if err != nil {
				return ir.Expr{}, err
			}
			r, err := lowerValueExpr(n.Y)
			if err != nil {
				return ir.Expr{}, err
			}
			return ir.BinaryExpr(aop, l, r), nil
		}
		return ir.Expr{}, ibexerr.Wrap(ibexerr.ErrLowering, "update field must be a value expression")
	default:
		return ir.Expr{}, ibexerr.Wrap(ibexerr.ErrLowering, "update field must be a value expression")
	}
}

// literalArgs checks that every already-lowered value expression is a
// literal, rejecting any non-literal argument. Used for extern-call
// arguments, which the interpreter requires to be literal.
func literalArgs(args []ir.Expr) error {
	for _, a := range args {
		if a.Kind != ir.ExprLiteral {
			return ibexerr.Wrap(ibexerr.ErrLowering, "extern call argument must be a literal")
		}
	}
	return nil
}
