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

// Package qast defines the AST contract the lowerer consumes: the
// shape the out-of-process lexer and recursive-descent parser are
// expected to produce. It owns no parsing logic of its own, only the
// node types and their serialized JSON form.
package qast

// Program is an ordered list of statements.
type Program struct {
	Stmts []Stmt
}

// Stmt is one of ExternDecl, FunctionDecl, Let, or ExprStmt.
type Stmt interface {
	stmtNode()
}

// Param is one (name, type) parameter of an extern or function
// declaration. Type is an uninterpreted name from the surface syntax
// (e.g. "int", "string", "table"); the lowerer does not check it.
type Param struct {
	Name string
	Type string
}

// ExternDecl declares a host-provided function. It carries no IR of
// its own; lowering records its SourcePath so the emitter can include
// it.
type ExternDecl struct {
	Name       string
	Params     []Param
	ReturnType string
	SourcePath string
}

func (*ExternDecl) stmtNode() {}

// FunctionDecl declares a query-language function. The query core
// does not lower function bodies independently of call sites; they
// are out of this component's scope beyond being valid statements.
type FunctionDecl struct {
	Name       string
	Params     []Param
	ReturnType string
	Body       Expr
}

func (*FunctionDecl) stmtNode() {}

// Let binds Name to the IR produced by lowering Value. Identifiers
// referencing Name later lower to a clone of that IR. A bare literal
// Value binds Name to a scalar instead.
type Let struct {
	Mutable      bool
	Name         string
	DeclaredType string // "" if not annotated
	Value        Expr
}

func (*Let) stmtNode() {}

// ExprStmt is a bare expression statement. Only the last non-let
// ExprStmt in a Program contributes the lowered result.
type ExprStmt struct {
	X Expr
}

func (*ExprStmt) stmtNode() {}

// Expr is one node of the query-surface expression grammar: Ident,
// IntLit/FloatLit/StringLit, Binary, Unary, Grouped, Call, or Block.
type Expr interface {
	exprNode()
}

// Ident is a bare identifier: either a column/bound-name reference
// (inside clauses) or a base-expression reference to a `let` binding
// or table source.
type Ident struct {
	Name string
}

func (*Ident) exprNode() {}

type IntLit struct{ Value int64 }
type FloatLit struct{ Value float64 }
type StringLit struct{ Value string }

func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*StringLit) exprNode() {}

// BinOp names a binary operator from the surface grammar: arithmetic
// (+ - * / mod), comparison (= != < <= > >=), or logical (and/or).
type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpMod BinOp = "mod"

	OpEq BinOp = "="
	OpNe BinOp = "!="
	OpLt BinOp = "<"
	OpLe BinOp = "<="
	OpGt BinOp = ">"
	OpGe BinOp = ">="

	OpAnd BinOp = "and"
	OpOr  BinOp = "or"
)

// Binary is a binary operator application.
type Binary struct {
	Op   BinOp
	X, Y Expr
}

func (*Binary) exprNode() {}

// Unary is the logical negation "not x"; it is the only unary
// operator in the grammar.
type Unary struct {
	X Expr
}

func (*Unary) exprNode() {}

// Grouped is a parenthesized sub-expression; it lowers to its operand
// with no wrapping IR node.
type Grouped struct {
	X Expr
}

func (*Grouped) exprNode() {}

// Call is a function call, used both for aggregate functions
// (sum/mean/min/max/count/first/last) in a select field and for
// extern calls.
type Call struct {
	Callee string
	Args   []Expr
}

func (*Call) exprNode() {}

// ClauseKind discriminates the seven clause kinds a Block may carry
//.
type ClauseKind uint8

const (
	ClauseFilter ClauseKind = iota
	ClauseSelect
	ClauseUpdate
	ClauseDistinct
	ClauseOrder
	ClauseBy
	ClauseWindow
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseFilter:
		return "filter"
	case ClauseSelect:
		return "select"
	case ClauseUpdate:
		return "update"
	case ClauseDistinct:
		return "distinct"
	case ClauseOrder:
		return "order"
	case ClauseBy:
		return "by"
	case ClauseWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Field is one brace-delimited entry of a select/update/by clause: a
// bare identifier (Expr == nil, Alias names the column/key directly)
// or an "alias = expression" computed entry.
type Field struct {
	Alias string
	Expr  Expr // nil for a bare identifier entry
}

// OrderKey is one entry of an `order` clause.
type OrderKey struct {
	Name      string
	Ascending bool
}

// Clause is one clause attached to a Block. Exactly
// one of the per-kind fields below is meaningful, selected by Kind.
type Clause struct {
	Kind ClauseKind

	Filter Expr // ClauseFilter

	Fields []Field // ClauseSelect, ClauseUpdate, ClauseBy

	OrderKeys []OrderKey // ClauseOrder

	Duration string // ClauseWindow: raw duration text, e.g. "5m"
}

// Block is a base expression with an ordered list of clauses applied
// to it, in source order. The lowerer re-sequences them into its
// fixed evaluation order.
type Block struct {
	Base    Expr
	Clauses []Clause
}

func (*Block) exprNode() {}
