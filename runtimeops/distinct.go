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
	"strings"

	"github.com/bobjansen/ibex/column"
)

// Distinct keeps the first occurrence of each distinct row across all
// columns, preserving first-seen order. Two NaN float cells are
// treated as equal for this purpose, matching
// column.Column's own NaN canonicalization.
func Distinct(t *column.Table) (*column.Table, error) {
	out := column.New()
	dst := make([]*column.Column, t.NumColumns())
	for i := 0; i < t.NumColumns(); i++ {
		dst[i] = t.ColumnAt(i).New()
	}
	seen := make(map[string]struct{})
	var key strings.Builder
	for row := 0; row < t.Rows(); row++ {
		key.Reset()
		for i := 0; i < t.NumColumns(); i++ {
			col := t.ColumnAt(i)
			if !col.IsValid(row) {
				key.WriteString("\x00N")
				continue
			}
			fmt.Fprintf(&key, "\x00%#v", col.HashKey(row))
		}
		k := key.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
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
