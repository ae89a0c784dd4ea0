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
	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ir"
)

// Filter keeps the rows of t for which pred evaluates true, preserving
// row order and the source schema.
func Filter(t *column.Table, pred *ir.FilterExpr, scalars *ScalarRegistry, externs *extern.Registry) (*column.Table, error) {
	out := column.New()
	dst := make([]*column.Column, t.NumColumns())
	for i := 0; i < t.NumColumns(); i++ {
		dst[i] = t.ColumnAt(i).New()
	}
	for row := 0; row < t.Rows(); row++ {
		keep, err := EvalFilterBool(pred, t, row, scalars, externs)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
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
