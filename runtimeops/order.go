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
	"golang.org/x/exp/slices"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// Order sorts t by keys, each ascending or descending, in priority
// order. Row index is appended as a final tiebreaker so
// the sort is a well-defined total order without depending on the
// stability of the underlying sort algorithm.
func Order(t *column.Table, keys []ir.OrderKey) (*column.Table, error) {
	cols := make([]*column.Column, len(keys))
	for i, k := range keys {
		col, err := t.MustFind(k.Name)
		if err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		cols[i] = col
	}

	idx := make([]int, t.Rows())
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) bool {
		for i, k := range keys {
			less, equal := columnLess(cols[i], a, b)
			if equal {
				continue
			}
			if k.Ascending {
				return less
			}
			return !less
		}
		return a < b
	})

	out := column.New()
	dst := make([]*column.Column, t.NumColumns())
	for i := 0; i < t.NumColumns(); i++ {
		dst[i] = t.ColumnAt(i).New()
	}
	for _, row := range idx {
		for i := range dst {
			dst[i].Append(t.ColumnAt(i), row)
		}
	}
	for i, name := range t.Names() {
		out.AddColumn(name, dst[i])
	}
	if t.IsTimeFrame() {
		_ = out.SetTimeIndex(t.TimeIndex())
	}
	return out, nil
}

// columnLess compares rows a and b of col, returning (less, equal).
// A missing cell compares greater than any present value, which makes
// nulls sort last under an ascending key and first under a descending
// one.
func columnLess(col *column.Column, a, b int) (less, equal bool) {
	av, bv := col.IsValid(a), col.IsValid(b)
	if !av || !bv {
		return av, av == bv
	}
	la, lb := literalFromColumn(col, a), literalFromColumn(col, b)
	eq, _ := compareValues(ir.Eq, la, lb)
	if eq {
		return false, true
	}
	lt, _ := compareValues(ir.Lt, la, lb)
	return lt, false
}
