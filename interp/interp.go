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

// Package interp implements the tree-walking interpreter that
// evaluates an IR tree against columnar tables: a
// recursive, post-order dispatch from node kind to the corresponding
// runtimeops primitive.
package interp

import (
	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/runtimeops"
	"github.com/bobjansen/ibex/scalar"
)

// TableRegistry is the per-query table-name → Table input borrow
//: rows are read-only for the life of the query.
type TableRegistry struct {
	tables map[string]*column.Table
}

// NewTableRegistry returns an empty TableRegistry.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{tables: make(map[string]*column.Table)}
}

// Add registers t under name, last-write-wins.
func (r *TableRegistry) Add(name string, t *column.Table) {
	if r.tables == nil {
		r.tables = make(map[string]*column.Table)
	}
	r.tables[name] = t
}

// Find looks up a table by name.
func (r *TableRegistry) Find(name string) (*column.Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Interp evaluates an IR tree against a TableRegistry and an optional
// extern.Registry. It carries no state across calls to Run beyond the
// two registries it was built with; a single Interp may run many
// queries.
type Interp struct {
	Tables  *TableRegistry
	Externs *extern.Registry
}

// New returns an Interp over tables and externs. externs may be nil
// if the IR tree contains no ExternCall or call-expression nodes.
func New(tables *TableRegistry, externs *extern.Registry) *Interp {
	return &Interp{Tables: tables, Externs: externs}
}

// Run evaluates root and returns the resulting table. It acquires the
// extern registry's shared read borrow for the duration of the query
// and releases it on every return path, including error
// returns.
func (ip *Interp) Run(root *ir.Node) (*column.Table, error) {
	return ip.RunWith(root, runtimeops.NewScalarRegistry())
}

// RunWith is Run with a pre-populated scalar registry, for callers
// that carry `let` scalar bindings into the query.
func (ip *Interp) RunWith(root *ir.Node, scalars *runtimeops.ScalarRegistry) (*column.Table, error) {
	if ip.Externs != nil {
		release := ip.Externs.Borrow()
		defer release()
	}
	if scalars == nil {
		scalars = runtimeops.NewScalarRegistry()
	}
	return ip.eval(root, scalars)
}

func childArity(node *ir.Node, want int) error {
	if len(node.Children) != want {
		return ibexerr.Wrap(ibexerr.ErrArity, "%s requires %d child(ren), got %d", node.Kind, want, len(node.Children))
	}
	return nil
}

// eval recurses into children first (post-order), then dispatches on
// node.Kind to the matching runtimeops primitive.
func (ip *Interp) eval(node *ir.Node, scalars *runtimeops.ScalarRegistry) (*column.Table, error) {
	if node == nil {
		return nil, ibexerr.Wrap(ibexerr.ErrArity, "nil IR node")
	}
	switch node.Kind {
	case ir.Scan:
		if err := childArity(node, 0); err != nil {
			return nil, err
		}
		t, ok := ip.Tables.Find(node.Source)
		if !ok {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "scan source not found: %s", node.Source)
		}
		return t, nil

	case ir.Filter:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Filter(in, &node.Predicate, scalars, ip.Externs)

	case ir.Project:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Project(in, node.Columns)

	case ir.Distinct:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Distinct(in)

	case ir.Order:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Order(in, node.OrderKeys)

	case ir.Aggregate:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Aggregate(in, node.GroupBy, node.Aggs)

	case ir.Update:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Update(in, node.Fields, node.GroupBy, node.GroupByExprs, scalars, ip.Externs)

	case ir.Window:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		// There are no rolling-window runtime semantics yet; the
		// lowerer accepts the clause but interpretation is an
		// explicit error rather than a silent no-op.
		return nil, ibexerr.Wrap(ibexerr.ErrUnsupported, "window interpretation is not supported")

	case ir.AsTimeframe:
		if err := childArity(node, 1); err != nil {
			return nil, err
		}
		in, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.AsTimeframe(in, node.TimeColumn)

	case ir.Join:
		if err := childArity(node, 2); err != nil {
			return nil, err
		}
		left, err := ip.eval(node.Child(0), scalars)
		if err != nil {
			return nil, err
		}
		right, err := ip.eval(node.Child(1), scalars)
		if err != nil {
			return nil, err
		}
		return runtimeops.Join(left, right, node.JoinKind, node.JoinKeys)

	case ir.ExternCall:
		if err := childArity(node, 0); err != nil {
			return nil, err
		}
		return ip.evalExternCall(node)

	default:
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "unknown IR node kind %v", node.Kind)
	}
}

// evalExternCall dispatches an ExternCall node's literal arguments to
// the named extern function via runtimeops.CallExtern,
// the same dispatch path the emitter's generated code uses.
func (ip *Interp) evalExternCall(node *ir.Node) (*column.Table, error) {
	args := make([]scalar.Value, len(node.Args))
	for i, a := range node.Args {
		if a.Kind != ir.ExprLiteral {
			return nil, ibexerr.Wrap(ibexerr.ErrLowering, "extern call argument must be a literal")
		}
		args[i] = runtimeops.ScalarFromLiteral(a.Lit)
	}
	return runtimeops.CallExtern(ip.Externs, node.Callee, args)
}
