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
	"testing"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/date"
)

// trades returns the canonical three-row test table.
func trades() *column.Table {
	t := column.New()
	t.AddColumn("price", column.NewInt64([]int64{10, 20, 30}))
	t.AddColumn("symbol", column.NewString([]string{"A", "B", "A"}))
	return t
}

func timeframe(t *testing.T, name string, ts []int64, cols map[string][]int64, strs map[string][]string) *column.Table {
	t.Helper()
	tf := column.New()
	stamps := make([]date.Timestamp, len(ts))
	for i, v := range ts {
		stamps[i] = date.Timestamp(v)
	}
	tf.AddColumn("ts", column.NewTimestamp(stamps))
	for n, vals := range strs {
		tf.AddColumn(n, column.NewString(vals))
	}
	for n, vals := range cols {
		tf.AddColumn(n, column.NewInt64(vals))
	}
	if err := tf.SetTimeIndex("ts"); err != nil {
		t.Fatalf("%s: %s", name, err)
	}
	return tf
}

func wantInt64(t *testing.T, tbl *column.Table, name string, want []int64) {
	t.Helper()
	col, ok := tbl.Find(name)
	if !ok {
		t.Fatalf("column %s missing", name)
	}
	if col.Kind() != column.Int64 {
		t.Fatalf("column %s: kind %s", name, col.Kind())
	}
	if col.Len() != len(want) {
		t.Fatalf("column %s: %d rows, want %d", name, col.Len(), len(want))
	}
	for i, w := range want {
		if got := col.Int64At(i); got != w {
			t.Errorf("column %s row %d: got %d want %d", name, i, got, w)
		}
	}
}

func wantFloat64(t *testing.T, tbl *column.Table, name string, want []float64) {
	t.Helper()
	col, ok := tbl.Find(name)
	if !ok {
		t.Fatalf("column %s missing", name)
	}
	if col.Kind() != column.Float64 {
		t.Fatalf("column %s: kind %s", name, col.Kind())
	}
	for i, w := range want {
		if got := col.Float64At(i); got != w {
			t.Errorf("column %s row %d: got %g want %g", name, i, got, w)
		}
	}
}

func wantStrings(t *testing.T, tbl *column.Table, name string, want []string) {
	t.Helper()
	col, ok := tbl.Find(name)
	if !ok {
		t.Fatalf("column %s missing", name)
	}
	if col.Len() != len(want) {
		t.Fatalf("column %s: %d rows, want %d", name, col.Len(), len(want))
	}
	for i, w := range want {
		if got := col.StringAt(i); got != w {
			t.Errorf("column %s row %d: got %q want %q", name, i, got, w)
		}
	}
}
