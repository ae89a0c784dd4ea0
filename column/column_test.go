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

import (
	"math"
	"testing"
)

func TestColumnLenAndAt(t *testing.T) {
	c := NewInt64([]int64{1, 2, 3})
	if c.Kind() != Int64 {
		t.Fatalf("kind: got %s", c.Kind())
	}
	if c.Len() != 3 {
		t.Fatalf("len: got %d", c.Len())
	}
	if c.Int64At(1) != 2 {
		t.Fatalf("at(1): got %d", c.Int64At(1))
	}
}

func TestColumnAppendKeepsValiditySynced(t *testing.T) {
	dst := NewFloat64([]float64{1.5})
	src := NewFloat64([]float64{2.5, 3.5})
	src.Valid = []bool{true, false}

	dst.Append(src, 0)
	dst.Append(src, 1)
	if dst.Len() != 3 {
		t.Fatalf("len: got %d", dst.Len())
	}
	// the pre-existing row must have been backfilled as valid
	if !dst.IsValid(0) || !dst.IsValid(1) || dst.IsValid(2) {
		t.Fatalf("validity: got %v %v %v", dst.IsValid(0), dst.IsValid(1), dst.IsValid(2))
	}
}

func TestColumnSliceIsView(t *testing.T) {
	c := NewString([]string{"a", "b", "c", "d"})
	s := c.Slice(1, 3)
	if s.Len() != 2 || s.StringAt(0) != "b" || s.StringAt(1) != "c" {
		t.Fatalf("slice contents wrong: len=%d", s.Len())
	}
}

func TestColumnEqualNaN(t *testing.T) {
	a := NewFloat64([]float64{1, math.NaN()})
	b := NewFloat64([]float64{1, math.NaN()})
	if !a.Equal(b) {
		t.Fatal("NaN cells must compare equal for column equality")
	}
}

func TestColumnEqualValidity(t *testing.T) {
	a := NewInt64([]int64{1, 2})
	b := NewInt64([]int64{1, 99})
	b.Valid = []bool{true, false}
	if a.Equal(b) {
		t.Fatal("differing validity must not compare equal")
	}
	a.Valid = []bool{true, false}
	if !a.Equal(b) {
		t.Fatal("matching validity must ignore the undefined cell")
	}
}

func TestCategoricalDecodes(t *testing.T) {
	c := NewCategorical([]int32{0, 1, 0}, []string{"buy", "sell"})
	if c.StringAt(2) != "buy" || c.StringAt(1) != "sell" {
		t.Fatalf("decode: got %q %q", c.StringAt(2), c.StringAt(1))
	}
	if c.CodeAt(1) != 1 {
		t.Fatalf("code: got %d", c.CodeAt(1))
	}
}

func TestHashKeyCanonicalizesNaN(t *testing.T) {
	c := NewFloat64([]float64{math.NaN(), math.Float64frombits(0x7ff8000000000001)})
	if c.HashKey(0) != c.HashKey(1) {
		t.Fatal("all NaN payloads must share one hash key")
	}
}

func TestTableAddColumnReplacePreservesOrder(t *testing.T) {
	tbl := New()
	tbl.AddColumn("a", NewInt64([]int64{1}))
	tbl.AddColumn("b", NewInt64([]int64{2}))
	tbl.AddColumn("a", NewInt64([]int64{9}))
	names := tbl.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("order after replace: %v", names)
	}
	col, _ := tbl.Find("a")
	if col.Int64At(0) != 9 {
		t.Fatal("replace did not swap the column in place")
	}
}

func TestTableRows(t *testing.T) {
	tbl := New()
	if tbl.Rows() != 0 {
		t.Fatal("empty table must have 0 rows")
	}
	tbl.AddColumn("x", NewInt64([]int64{1, 2, 3}))
	if tbl.Rows() != 3 {
		t.Fatalf("rows: got %d", tbl.Rows())
	}
}

func TestTableTimeIndex(t *testing.T) {
	tbl := New()
	tbl.AddColumn("ts", NewTimestamp(nil))
	tbl.AddColumn("price", NewInt64(nil))
	if err := tbl.SetTimeIndex("price"); err == nil {
		t.Fatal("non-timestamp time index must be rejected")
	}
	if err := tbl.SetTimeIndex("missing"); err == nil {
		t.Fatal("missing time index column must be rejected")
	}
	if err := tbl.SetTimeIndex("ts"); err != nil {
		t.Fatalf("SetTimeIndex: %s", err)
	}
	if !tbl.IsTimeFrame() || tbl.TimeIndex() != "ts" {
		t.Fatal("time index not recorded")
	}
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := New()
	tbl.AddColumn("x", NewInt64([]int64{1}))
	clone := tbl.Clone()
	clone.AddColumn("y", NewInt64([]int64{2}))
	if _, ok := tbl.Find("y"); ok {
		t.Fatal("adding to a clone leaked into the original")
	}
}
