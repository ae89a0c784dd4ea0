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

// Package lower implements the AST to IR lowering: clause
// composition, duration parsing, and the lowering rules for filter,
// update, and aggregate expressions.
package lower

import (
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/qast"
	"github.com/bobjansen/ibex/scalar"
)

// aggFuncs maps the accepted aggregate callee names to
// their IR AggFunc.
var aggFuncs = map[string]ir.AggFunc{
	"sum":   ir.Sum,
	"mean":  ir.Mean,
	"min":   ir.Min,
	"max":   ir.Max,
	"count": ir.Count,
	"first": ir.First,
	"last":  ir.Last,
}

// Lowerer lowers a qast.Program to a single IR tree. It tracks `let`
// bindings (materialized by cloning, not sharing) and the distinct
// extern-declaration source paths an emitter needs to include.
type Lowerer struct {
	builder *ir.Builder
	lets    map[string]*ir.Node
	binds   map[string]scalar.Value
	sources []string
	seenSrc map[string]bool
	externs map[string]qast.ExternDecl
}

// New returns a Lowerer backed by a fresh ir.Builder.
func New() *Lowerer {
	return &Lowerer{
		builder: ir.NewBuilder(),
		lets:    make(map[string]*ir.Node),
		binds:   make(map[string]scalar.Value),
		seenSrc: make(map[string]bool),
		externs: make(map[string]qast.ExternDecl),
	}
}

// ScalarBindings returns the scalar values bound by `let` statements
// whose right-hand side is a bare literal. Expressions reference them
// as broadcast constants through the per-query scalar registry.
func (l *Lowerer) ScalarBindings() map[string]scalar.Value {
	out := make(map[string]scalar.Value, len(l.binds))
	for k, v := range l.binds {
		out[k] = v
	}
	return out
}

// ExternSources returns the extern-declaration source paths collected
// while lowering, in first-declaration order, for the emitter's
// include directives.
func (l *Lowerer) ExternSources() []string {
	return append([]string(nil), l.sources...)
}

// Lower lowers prog to its result IR tree: extern declarations are
// recorded but produce no IR; `let` statements bind a name to the IR
// of their value; only the last non-let expression statement
// contributes the result.
func (l *Lowerer) Lower(prog *qast.Program) (*ir.Node, error) {
	var result *ir.Node
	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *qast.ExternDecl:
			l.externs[s.Name] = *s
			if !l.seenSrc[s.SourcePath] {
				l.seenSrc[s.SourcePath] = true
				l.sources = append(l.sources, s.SourcePath)
			}
		case *qast.FunctionDecl:
			// Function declarations carry no query-core IR of their
			// own; only call sites within expression statements do.
		case *qast.Let:
			if v, ok := literalScalar(s.Value); ok {
				l.binds[s.Name] = v
				continue
			}
			node, err := l.lowerRelExpr(s.Value)
			if err != nil {
				return nil, err
			}
			l.lets[s.Name] = node
		case *qast.ExprStmt:
			node, err := l.lowerRelExpr(s.X)
			if err != nil {
				return nil, err
			}
			result = node
		default:
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "unknown statement type %T", stmt)
		}
	}
	return result, nil
}

// literalScalar reports whether e is a bare literal `let` value and
// converts it to the scalar it binds.
func literalScalar(e qast.Expr) (scalar.Value, bool) {
	switch n := e.(type) {
	case *qast.IntLit:
		return scalar.Int64(n.Value), true
	case *qast.FloatLit:
		return scalar.Float64(n.Value), true
	case *qast.StringLit:
		return scalar.Str(n.Value), true
	case *qast.Grouped:
		return literalScalar(n.X)
	default:
		return scalar.Value{}, false
	}
}

// lowerRelExpr lowers a relational (table-producing) expression: an
// identifier (a `let` binding or a fresh Scan), an extern call, or a
// Block applying clauses to a base expression.
func (l *Lowerer) lowerRelExpr(e qast.Expr) (*ir.Node, error) {
	switch n := e.(type) {
	case *qast.Ident:
		if bound, ok := l.lets[n.Name]; ok {
			return ir.Clone(bound), nil
		}
		return l.builder.ScanNode(n.Name), nil
	case *qast.Call:
		args := make([]ir.Expr, len(n.Args))
		for i, a := range n.Args {
			lowered, err := lowerValueExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = lowered
		}
		if err := literalArgs(args); err != nil {
			return nil, err
		}
		return l.builder.ExternCallNode(n.Callee, args), nil
	case *qast.Grouped:
		return l.lowerRelExpr(n.X)
	case *qast.Block:
		return l.lowerBlock(n)
	default:
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "expected a relational expression, got %T", e)
	}
}

// clauseSet holds the (at most one each) clauses present on a Block,
// validated for duplicates.
type clauseSet struct {
	filter   *qast.Clause
	selectC  *qast.Clause
	updateC  *qast.Clause
	distinct *qast.Clause
	order    *qast.Clause
	by       *qast.Clause
	window   *qast.Clause
}

func collectClauses(clauses []qast.Clause) (*clauseSet, error) {
	cs := &clauseSet{}
	for i := range clauses {
		c := &clauses[i]
		var slot **qast.Clause
		switch c.Kind {
		case qast.ClauseFilter:
			slot = &cs.filter
		case qast.ClauseSelect:
			slot = &cs.selectC
		case qast.ClauseUpdate:
			slot = &cs.updateC
		case qast.ClauseDistinct:
			slot = &cs.distinct
		case qast.ClauseOrder:
			slot = &cs.order
		case qast.ClauseBy:
			slot = &cs.by
		case qast.ClauseWindow:
			slot = &cs.window
		default:
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "unknown clause kind %v", c.Kind)
		}
		if *slot != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "clause %v appears more than once", c.Kind)
		}
		*slot = c
	}
	if cs.selectC != nil && cs.updateC != nil {
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "select and update clauses are mutually exclusive")
	}
	if cs.by != nil && cs.selectC == nil && cs.updateC == nil {
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "by clause requires select or update")
	}
	return cs, nil
}

// lowerBlock applies a Block's clauses to its lowered base expression
// in the fixed evaluation order: filter, then aggregate (iff
// by+select) or project (iff select alone), then update, distinct,
// order, window.
func (l *Lowerer) lowerBlock(b *qast.Block) (*ir.Node, error) {
	base, err := l.lowerRelExpr(b.Base)
	if err != nil {
		return nil, err
	}
	cs, err := collectClauses(b.Clauses)
	if err != nil {
		return nil, err
	}

	cur := base

	if cs.filter != nil {
		pred, err := lowerFilterExpr(cs.filter.Filter)
		if err != nil {
			return nil, err
		}
		node := l.builder.FilterNode(pred)
		node.AddChild(cur)
		cur = node
	}

	switch {
	case cs.by != nil && cs.selectC != nil:
		node, err := l.lowerAggregate(cs.selectC, cs.by)
		if err != nil {
			return nil, err
		}
		node.AddChild(cur)
		cur = node
	case cs.selectC != nil:
		node, err := l.lowerProject(cs.selectC)
		if err != nil {
			return nil, err
		}
		node.AddChild(cur)
		cur = node
	}

	if cs.updateC != nil {
		node, err := l.lowerUpdate(cs.updateC, cs.by)
		if err != nil {
			return nil, err
		}
		node.AddChild(cur)
		cur = node
	}

	if cs.distinct != nil {
		node := l.builder.DistinctNode()
		node.AddChild(cur)
		cur = node
	}

	if cs.order != nil {
		keys := make([]ir.OrderKey, len(cs.order.OrderKeys))
		for i, k := range cs.order.OrderKeys {
			keys[i] = ir.OrderKey{Name: k.Name, Ascending: k.Ascending}
		}
		node := l.builder.OrderNode(keys)
		node.AddChild(cur)
		cur = node
	}

	if cs.window != nil {
		d, err := ParseDuration(cs.window.Duration)
		if err != nil {
			return nil, err
		}
		node := l.builder.WindowNode(d)
		node.AddChild(cur)
		cur = node
	}

	return cur, nil
}

// lowerAggregate builds an Aggregate node: select fields with a call
// expression become aggregations; fields without an expression become
// grouping projections, which must appear in the by list.
func (l *Lowerer) lowerAggregate(selectC, by *qast.Clause) (*ir.Node, error) {
	byNames := make(map[string]bool, len(by.Fields))
	for _, k := range by.Fields {
		if k.Expr != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "computed group-by key %q not allowed in plain aggregation", k.Alias)
		}
		byNames[k.Alias] = true
	}
	groupBy := make([]ir.ColumnRef, len(by.Fields))
	for i, k := range by.Fields {
		groupBy[i] = ir.ColumnRef{Name: k.Alias}
	}

	var aggs []ir.AggSpec
	for _, f := range selectC.Fields {
		if f.Expr == nil {
			if !byNames[f.Alias] {
				return nil, ibexerr.Wrap(ibexerr.ErrLowering, "select field %q without an expression must appear in the by list", f.Alias)
			}
			continue
		}
		call, ok := f.Expr.(*qast.Call)
		if !ok {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "select field %q must be an aggregate function call", f.Alias)
		}
		fn, ok := aggFuncs[call.Callee]
		if !ok {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "unknown aggregate function %q", call.Callee)
		}
		spec := ir.AggSpec{Func: fn, Alias: f.Alias}
		switch fn {
		case ir.Count:
			if len(call.Args) != 0 {
				return nil, ibexerr.Wrap(ibexerr.ErrArity, "count takes no arguments")
			}
		default:
			if len(call.Args) != 1 {
				return nil, ibexerr.Wrap(ibexerr.ErrArity, "%s takes exactly one column argument", call.Callee)
			}
			colRef, ok := call.Args[0].(*qast.Ident)
			if !ok {
				return nil, ibexerr.Wrap(ibexerr.ErrLowering, "%s argument must be a column reference", call.Callee)
			}
			spec.Column = colRef.Name
		}
		aggs = append(aggs, spec)
	}
	return l.builder.AggregateNode(groupBy, aggs), nil
}

// lowerProject builds a Project node from a select clause with no by
//; each field must be a bare column reference.
func (l *Lowerer) lowerProject(selectC *qast.Clause) (*ir.Node, error) {
	cols := make([]ir.ColumnRef, len(selectC.Fields))
	for i, f := range selectC.Fields {
		if f.Expr != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "select field %q must be a column reference without by", f.Alias)
		}
		cols[i] = ir.ColumnRef{Name: f.Alias}
	}
	return l.builder.ProjectNode(cols), nil
}

// lowerUpdate builds an Update node; fields lower through
// lowerValueExpr. An accompanying by clause may
// contain computed keys only with update; when every key is a plain
// identifier the node uses the shared GroupBy column-ref list, and
// otherwise uses GroupByExprs.
func (l *Lowerer) lowerUpdate(updateC *qast.Clause, by *qast.Clause) (*ir.Node, error) {
	fields := make([]ir.FieldSpec, len(updateC.Fields))
	for i, f := range updateC.Fields {
		if f.Expr == nil {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "update field %q is missing an expression", f.Alias)
		}
		expr, err := lowerValueExpr(f.Expr)
		if err != nil {
			return nil, err
		}
		fields[i] = ir.FieldSpec{Alias: f.Alias, Expr: expr}
	}
	if by == nil {
		return l.builder.UpdateNode(fields, nil), nil
	}

	allPlain := true
	for _, k := range by.Fields {
		if k.Expr != nil {
			allPlain = false
			break
		}
	}
	if allPlain {
		groupBy := make([]ir.ColumnRef, len(by.Fields))
		for i, k := range by.Fields {
			groupBy[i] = ir.ColumnRef{Name: k.Alias}
		}
		return l.builder.UpdateNode(fields, groupBy), nil
	}

	exprs := make([]ir.Expr, len(by.Fields))
	for i, k := range by.Fields {
		if k.Expr == nil {
			exprs[i] = ir.ColumnExpr(k.Alias)
			continue
		}
		e, err := lowerValueExpr(k.Expr)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return l.builder.UpdateNodeComputedBy(fields, exprs), nil
}
