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

package column

import "fmt"

// Table is an ordered sequence of named columns plus a name→position
// index. Names are unique; all columns share the same
// row count; insertion order is preserved and observable (it drives
// projection output order and join tie-breaks).
//
// A Table may carry an optional time index: the name of a Timestamp
// column. Once set, the table is eligible for as-of joins and
// windowed aggregation (a "TimeFrame").
type Table struct {
	names     []string
	cols      []*Column
	index     map[string]int
	timeIndex string
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// AddColumn adds col under name, replacing the existing column of
// that name in place if one exists (preserving its position and thus
// insertion order), or appending it otherwise.
func (t *Table) AddColumn(name string, col *Column) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[name]; ok {
		t.cols[i] = col
		return
	}
	t.index[name] = len(t.cols)
	t.names = append(t.names, name)
	t.cols = append(t.cols, col)
}

// Find borrows the column named name, or reports ok=false if absent.
func (t *Table) Find(name string) (col *Column, ok bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// MustFind is like Find but returns a descriptive error instead of a
// boolean, for use at operator call sites.
func (t *Table) MustFind(name string) (*Column, error) {
	col, ok := t.Find(name)
	if !ok {
		return nil, fmt.Errorf("column not found: %s", name)
	}
	return col, nil
}

// Names returns the columns in insertion order. The slice must not be
// mutated by callers.
func (t *Table) Names() []string { return t.names }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.cols) }

// ColumnAt returns the column at position i (0-based, insertion order).
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// NameAt returns the name at position i.
func (t *Table) NameAt(i int) string { return t.names[i] }

// Rows returns 0 if the table has no columns, else the length of the
// first column (all columns must share that length).
func (t *Table) Rows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// TimeIndex returns the name of the time-index column, or "" if the
// table is not a TimeFrame.
func (t *Table) TimeIndex() string { return t.timeIndex }

// SetTimeIndex designates column name (which must be a Timestamp
// column) as the table's time index, promoting it to a TimeFrame.
func (t *Table) SetTimeIndex(name string) error {
	col, ok := t.Find(name)
	if !ok {
		return fmt.Errorf("time index column not found: %s", name)
	}
	if col.Kind() != Timestamp {
		return fmt.Errorf("time index column %q must be a timestamp, got %s", name, col.Kind())
	}
	t.timeIndex = name
	return nil
}

// IsTimeFrame reports whether t has a time index set.
func (t *Table) IsTimeFrame() bool { return t.timeIndex != "" }

// Clone returns a shallow copy of t: a fresh column list referencing
// the same underlying Column values (operators always produce a fresh
// Table; they never mutate their input, so sharing Column pointers
// across an unmodified Clone is safe).
func (t *Table) Clone() *Table {
	out := New()
	out.names = append([]string(nil), t.names...)
	out.cols = append([]*Column(nil), t.cols...)
	out.index = make(map[string]int, len(t.index))
	for k, v := range t.index {
		out.index[k] = v
	}
	out.timeIndex = t.timeIndex
	return out
}

// Equal reports whether t and o have the same columns, in the same
// order, with value-equal contents, and the same time index.
func (t *Table) Equal(o *Table) bool {
	if len(t.cols) != len(o.cols) || t.timeIndex != o.timeIndex {
		return false
	}
	for i := range t.cols {
		if t.names[i] != o.names[i] {
			return false
		}
		if !t.cols[i].Equal(o.cols[i]) {
			return false
		}
	}
	return true
}
