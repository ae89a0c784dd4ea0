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

// Package ir defines the immutable plan tree produced by the lowerer
// and consumed by the interpreter and the emitter. Nodes
// are a tagged sum of variant payloads plus a shared id and children
// list, rather than a class hierarchy: a NodeKind selects which of a
// Node's payload fields are meaningful.
package ir

import (
	"time"

	"github.com/bobjansen/ibex/date"
)

// NodeKind discriminates the kind of relational operation a Node
// represents.
type NodeKind uint8

const (
	Scan NodeKind = iota
	Filter
	Project
	Distinct
	Order
	Aggregate
	Update
	Window
	AsTimeframe
	Join
	ExternCall
)

func (k NodeKind) String() string {
	switch k {
	case Scan:
		return "Scan"
	case Filter:
		return "Filter"
	case Project:
		return "Project"
	case Distinct:
		return "Distinct"
	case Order:
		return "Order"
	case Aggregate:
		return "Aggregate"
	case Update:
		return "Update"
	case Window:
		return "Window"
	case AsTimeframe:
		return "AsTimeframe"
	case Join:
		return "Join"
	case ExternCall:
		return "ExternCall"
	default:
		return "Unknown"
	}
}

// ColumnRef is a reference to a column by name.
type ColumnRef struct {
	Name string
}

// OrderKey is one key of an Order node's sort spec.
type OrderKey struct {
	Name      string
	Ascending bool
}

// AggFunc names a supported aggregation function.
type AggFunc uint8

const (
	Sum AggFunc = iota
	Mean
	Min
	Max
	Count
	First
	Last
)

func (f AggFunc) String() string {
	switch f {
	case Sum:
		return "sum"
	case Mean:
		return "mean"
	case Min:
		return "min"
	case Max:
		return "max"
	case Count:
		return "count"
	case First:
		return "first"
	case Last:
		return "last"
	default:
		return "unknown"
	}
}

// AggSpec is one (func, source column, alias) aggregation in an
// Aggregate node. Column is empty for Count, which takes no argument.
type AggSpec struct {
	Func   AggFunc
	Column string
	Alias  string
}

// FieldSpec is one (alias, expression) computed field in an Update
// node.
type FieldSpec struct {
	Alias string
	Expr  Expr
}

// JoinKind selects the join algorithm a Join node runs.
type JoinKind uint8

const (
	InnerJoin JoinKind = iota
	LeftJoin
	AsofJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case AsofJoin:
		return "asof"
	default:
		return "unknown"
	}
}

// Node is a single relational operation in the plan DAG (in practice
// always a tree: children are exclusively owned). A
// Node's ID is assigned by a Builder and stable for the lifetime
// of the tree.
type Node struct {
	Kind     NodeKind
	ID       uint64
	Children []*Node

	// Scan
	Source string

	// Filter
	Predicate FilterExpr

	// Project
	Columns []ColumnRef

	// Order
	OrderKeys []OrderKey

	// Aggregate
	GroupBy []ColumnRef
	Aggs    []AggSpec

	// Update (GroupBy above is reused for a grouped update whose by
	// keys are all plain column references; GroupByExprs is used
	// instead when any by key is computed, which only a grouped
	// update permits)
	Fields       []FieldSpec
	GroupByExprs []Expr

	// Window
	Duration time.Duration

	// AsTimeframe
	TimeColumn string

	// Join
	JoinKind JoinKind
	JoinKeys []string

	// ExternCall
	Callee string
	Args   []Expr
}

// AddChild appends child to n's child list. The builder exclusively
// owns a node until it is added as a child, at which point the parent
// exclusively owns it.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// Child returns the i'th child, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Clone returns a copy of n with its own Children slice (recursively
// cloned), so that appending to one tree's child list can never
// affect another. `let` bindings materialize by cloning the
// referenced sub-tree rather than sharing it. Expression
// trees (Predicate, Fields, Args) are immutable after construction, so
// Clone does not deep-copy their internal pointers; aliasing them is
// harmless. Clone does not reassign node ids: every node of the clone
// carries the id of the node it copies. Ibex's lowerer returns such a
// clone for each reference to a `let`-bound name, so the same ids can
// appear more than once across the lowered program; only the clause
// nodes it builds on top of a clone get fresh ids from its Builder.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = Clone(c)
	}
	out.Columns = append([]ColumnRef(nil), n.Columns...)
	out.OrderKeys = append([]OrderKey(nil), n.OrderKeys...)
	out.GroupBy = append([]ColumnRef(nil), n.GroupBy...)
	out.Aggs = append([]AggSpec(nil), n.Aggs...)
	out.Fields = append([]FieldSpec(nil), n.Fields...)
	out.GroupByExprs = append([]Expr(nil), n.GroupByExprs...)
	out.JoinKeys = append([]string(nil), n.JoinKeys...)
	out.Args = append([]Expr(nil), n.Args...)
	return &out
}

// literal kinds carried by Literal, shared between the value
// expression tree (Expr) and the filter expression tree (FilterExpr).
type LiteralKind uint8

const (
	LitInt64 LiteralKind = iota
	LitFloat64
	LitString
	LitDate
	LitTimestamp
)

// Literal is a constant value appearing in either expression tree.
type Literal struct {
	Kind LiteralKind
	I    int64
	F    float64
	S    string
	D    date.Date
	T    date.Timestamp
}

func IntLiteral(v int64) Literal         { return Literal{Kind: LitInt64, I: v} }
func FloatLiteral(v float64) Literal     { return Literal{Kind: LitFloat64, F: v} }
func StringLiteral(v string) Literal     { return Literal{Kind: LitString, S: v} }
func DateLiteral(v date.Date) Literal    { return Literal{Kind: LitDate, D: v} }
func TimestampLiteral(v date.Timestamp) Literal {
	return Literal{Kind: LitTimestamp, T: v}
}
