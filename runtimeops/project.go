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
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// Project narrows t to the named columns, in the order requested
//. Column data is shared with t, not copied: operators
// never mutate their input.
func Project(t *column.Table, cols []ir.ColumnRef) (*column.Table, error) {
	out := column.New()
	for _, c := range cols {
		col, err := t.MustFind(c.Name)
		if err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		out.AddColumn(c.Name, col)
	}
	if t.IsTimeFrame() {
		if _, ok := out.Find(t.TimeIndex()); ok {
			_ = out.SetTimeIndex(t.TimeIndex())
		}
	}
	return out, nil
}
