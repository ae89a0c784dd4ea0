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
	"fmt"
	"math"
	"strings"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// Update adds or replaces columns under fields' aliases, preserving
// row count. With no grouping, each field is evaluated
// row by row. With grouping (groupBy or groupByExprs, mutually
// exclusive; exactly one is non-empty when grouped), rows are
// partitioned by the group key values in first-occurrence order, each
// field is evaluated once against its group's first row to produce a
// per-group scalar, and that scalar is broadcast back to every row of
// the group.
func Update(t *column.Table, fields []ir.FieldSpec, groupBy []ir.ColumnRef, groupByExprs []ir.Expr, scalars *ScalarRegistry, externs *extern.Registry) (*column.Table, error) {
	var groupOf, repRows []int
	var err error
	switch {
	case len(groupByExprs) > 0:
		groupOf, repRows, err = assignGroupsByExpr(t, groupByExprs, scalars, externs)
	case len(groupBy) > 0:
		groupOf, repRows, err = assignGroups(t, groupBy)
	default:
		return updateUngrouped(t, fields, scalars, externs)
	}
	if err != nil {
		return nil, err
	}
	return updateGrouped(t, fields, groupOf, repRows, scalars, externs)
}

func updateUngrouped(t *column.Table, fields []ir.FieldSpec, scalars *ScalarRegistry, externs *extern.Registry) (*column.Table, error) {
	out := t.Clone()
	for _, f := range fields {
		kind, err := InferKind(&f.Expr, t, scalars, externs)
		if err != nil {
			return nil, err
		}
		dst := newColumn(kind)
		for row := 0; row < t.Rows(); row++ {
			lit, err := EvalExpr(&f.Expr, t, row, scalars, externs)
			if err != nil {
				return nil, err
			}
			appendLiteral(dst, lit)
		}
		out.AddColumn(f.Alias, dst)
	}
	return out, nil
}

func updateGrouped(t *column.Table, fields []ir.FieldSpec, groupOf, repRows []int, scalars *ScalarRegistry, externs *extern.Registry) (*column.Table, error) {
	numGroups := len(repRows)
	out := t.Clone()
	for _, f := range fields {
		kind, err := InferKind(&f.Expr, t, scalars, externs)
		if err != nil {
			return nil, err
		}
		perGroup := make([]ir.Literal, numGroups)
		for gid, rep := range repRows {
			lit, err := EvalExpr(&f.Expr, t, rep, scalars, externs)
			if err != nil {
				return nil, err
			}
			perGroup[gid] = lit
		}
		dst := newColumn(kind)
		for row := 0; row < t.Rows(); row++ {
			appendLiteral(dst, perGroup[groupOf[row]])
		}
		out.AddColumn(f.Alias, dst)
	}
	return out, nil
}

// assignGroups partitions t's rows by the values of groupBy's columns,
// in first-occurrence order, returning each row's group id and the
// representative (first) row of each group. Shared with Aggregate's
// multi-key fallback keying scheme so the two operators agree on what
// "the same group" means.
func assignGroups(t *column.Table, groupBy []ir.ColumnRef) (groupOf []int, repRows []int, err error) {
	n := t.Rows()
	groupOf = make([]int, n)
	numGroups := 0
	buckets := make(map[uint64][]int)
	for row := 0; row < n; row++ {
		h, herr := compositeKeyHash(t, groupBy, row)
		if herr != nil {
			return nil, nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", herr)
		}
		gid := -1
		for _, rep := range buckets[h] {
			if groupKeysEqual(t, groupBy, rep, row) {
				gid = groupOf[rep]
				break
			}
		}
		if gid < 0 {
			gid = numGroups
			buckets[h] = append(buckets[h], row)
			repRows = append(repRows, row)
			numGroups++
		}
		groupOf[row] = gid
	}
	return groupOf, repRows, nil
}

// assignGroupsByExpr is assignGroups' counterpart for a grouped
// Update whose by keys include a computed expression:
// the group key is built from each key expression's evaluated value
// at every row rather than from existing column storage.
func assignGroupsByExpr(t *column.Table, exprs []ir.Expr, scalars *ScalarRegistry, externs *extern.Registry) (groupOf []int, repRows []int, err error) {
	n := t.Rows()
	groupOf = make([]int, n)
	index := make(map[string]int)
	var key strings.Builder
	for row := 0; row < n; row++ {
		key.Reset()
		for i := range exprs {
			lit, err := EvalExpr(&exprs[i], t, row, scalars, externs)
			if err != nil {
				return nil, nil, err
			}
			fmt.Fprintf(&key, "\x00%v", literalHashKey(lit))
		}
		k := key.String()
		gid, ok := index[k]
		if !ok {
			gid = len(repRows)
			index[k] = gid
			repRows = append(repRows, row)
		}
		groupOf[row] = gid
	}
	return groupOf, repRows, nil
}

// literalHashKey returns a comparable value for lit suitable as a
// map key component, canonicalizing NaN the way column.HashKey does
//.
func literalHashKey(lit ir.Literal) any {
	switch lit.Kind {
	case ir.LitInt64:
		return lit.I
	case ir.LitFloat64:
		if math.IsNaN(lit.F) {
			return "nan"
		}
		return lit.F
	case ir.LitDate:
		return lit.D
	case ir.LitTimestamp:
		return lit.T
	default:
		return lit.S
	}
}
