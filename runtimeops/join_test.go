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
	"errors"
	"testing"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/date"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

func joinInputs() (*column.Table, *column.Table) {
	l := column.New()
	l.AddColumn("id", column.NewInt64([]int64{1, 2, 3}))
	l.AddColumn("val", column.NewInt64([]int64{10, 20, 30}))
	r := column.New()
	r.AddColumn("id", column.NewInt64([]int64{2, 3, 4}))
	r.AddColumn("val", column.NewInt64([]int64{200, 300, 400}))
	return l, r
}

func TestInnerJoin(t *testing.T) {
	l, r := joinInputs()
	out, err := Join(l, r, ir.InnerJoin, []string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "id", []int64{2, 3})
	wantInt64(t, out, "val", []int64{20, 30})
	wantInt64(t, out, "val_right", []int64{200, 300})
}

func TestLeftJoinZeroFills(t *testing.T) {
	l, r := joinInputs()
	out, err := Join(l, r, ir.LeftJoin, []string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "id", []int64{1, 2, 3})
	wantInt64(t, out, "val", []int64{10, 20, 30})
	wantInt64(t, out, "val_right", []int64{0, 200, 300})
}

func TestInnerJoinDuplicateKeysMultiply(t *testing.T) {
	l := column.New()
	l.AddColumn("k", column.NewInt64([]int64{1, 1}))
	l.AddColumn("lv", column.NewInt64([]int64{10, 11}))
	r := column.New()
	r.AddColumn("k", column.NewInt64([]int64{1, 1, 1}))
	r.AddColumn("rv", column.NewInt64([]int64{100, 101, 102}))
	out, err := Join(l, r, ir.InnerJoin, []string{"k"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 6 {
		t.Fatalf("2x3 duplicate keys must produce 6 rows, got %d", out.Rows())
	}
	// right rows iterate in right-table order for each left row
	wantInt64(t, out, "lv", []int64{10, 10, 10, 11, 11, 11})
	wantInt64(t, out, "rv", []int64{100, 101, 102, 100, 101, 102})
}

func TestJoinStringZeroFill(t *testing.T) {
	l := column.New()
	l.AddColumn("k", column.NewInt64([]int64{1}))
	r := column.New()
	r.AddColumn("k", column.NewInt64([]int64{2}))
	r.AddColumn("name", column.NewString([]string{"x"}))
	r.AddColumn("score", column.NewFloat64([]float64{1.5}))
	out, err := Join(l, r, ir.LeftJoin, []string{"k"})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "name", []string{""})
	wantFloat64(t, out, "score", []float64{0})
}

func TestJoinCategoricalZeroFill(t *testing.T) {
	l := column.New()
	l.AddColumn("k", column.NewInt64([]int64{1, 2}))
	r := column.New()
	r.AddColumn("k", column.NewInt64([]int64{2}))
	r.AddColumn("side", column.NewCategorical([]int32{0}, []string{"buy"}))
	out, err := Join(l, r, ir.LeftJoin, []string{"k"})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "side", []string{"", "buy"})
}

func TestJoinMissingKeyColumn(t *testing.T) {
	l, r := joinInputs()
	_, err := Join(l, r, ir.InnerJoin, []string{"nope"})
	if err == nil || !errors.Is(err, ibexerr.ErrReference) {
		t.Fatalf("got %v", err)
	}
}

func TestAsofJoinMatchesLatestAtOrBefore(t *testing.T) {
	l := timeframe(t, "l", []int64{10, 20, 30}, nil, map[string][]string{"sym": {"A", "A", "A"}})
	r := timeframe(t, "r", []int64{5, 20, 25}, map[string][]int64{"rval": {50, 200, 250}}, map[string][]string{"sym": {"A", "A", "A"}})
	out, err := Join(l, r, ir.AsofJoin, []string{"ts", "sym"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "rval", []int64{50, 200, 250})
	if out.Rows() != 3 {
		t.Fatalf("asof keeps every left row: %d", out.Rows())
	}
	if out.TimeIndex() != "ts" {
		t.Fatal("asof output must keep the left time index")
	}
}

func TestAsofJoinRespectsEqualityKeys(t *testing.T) {
	l := timeframe(t, "l", []int64{10, 10}, nil, map[string][]string{"sym": {"A", "B"}})
	r := timeframe(t, "r", []int64{5, 7}, map[string][]int64{"rval": {50, 70}}, map[string][]string{"sym": {"A", "B"}})
	out, err := Join(l, r, ir.AsofJoin, []string{"ts", "sym"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "rval", []int64{50, 70})
}

func TestAsofJoinZeroFillsWhenNoEarlierRow(t *testing.T) {
	l := timeframe(t, "l", []int64{3}, nil, nil)
	r := timeframe(t, "r", []int64{5}, map[string][]int64{"rval": {50}}, nil)
	out, err := Join(l, r, ir.AsofJoin, []string{"ts"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "rval", []int64{0})
}

func TestAsofJoinTieBreaksToLastRightRow(t *testing.T) {
	l := timeframe(t, "l", []int64{20}, nil, nil)
	r := timeframe(t, "r", []int64{20, 20}, map[string][]int64{"rval": {1, 2}}, nil)
	out, err := Join(l, r, ir.AsofJoin, []string{"ts"})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "rval", []int64{2})
}

func TestAsofJoinIsRightMonotone(t *testing.T) {
	l := timeframe(t, "l", []int64{10, 15, 20, 40}, nil, nil)
	r := timeframe(t, "r", []int64{5, 12, 18, 35}, map[string][]int64{"rt": {5, 12, 18, 35}}, nil)
	out, err := Join(l, r, ir.AsofJoin, []string{"ts"})
	if err != nil {
		t.Fatal(err)
	}
	col, _ := out.Find("rt")
	prev := int64(-1)
	for i := 0; i < col.Len(); i++ {
		v := col.Int64At(i)
		if v < prev {
			t.Fatalf("matched right times must be non-decreasing: %d after %d", v, prev)
		}
		prev = v
	}
}

func TestAsofJoinRequiresTimeIndexBothSides(t *testing.T) {
	l := timeframe(t, "l", []int64{1}, nil, nil)
	r := column.New()
	r.AddColumn("ts", column.NewTimestamp([]date.Timestamp{1}))
	_, err := Join(l, r, ir.AsofJoin, []string{"ts"})
	if err == nil || !errors.Is(err, ibexerr.ErrJoin) {
		t.Fatalf("got %v", err)
	}
}

func TestAsofJoinTimeKeyMustBeFirst(t *testing.T) {
	l := timeframe(t, "l", []int64{1}, nil, map[string][]string{"sym": {"A"}})
	r := timeframe(t, "r", []int64{1}, nil, map[string][]string{"sym": {"A"}})
	_, err := Join(l, r, ir.AsofJoin, []string{"sym", "ts"})
	if err == nil || !errors.Is(err, ibexerr.ErrJoin) {
		t.Fatalf("got %v", err)
	}
	if _, err := Join(l, r, ir.AsofJoin, nil); err == nil {
		t.Fatal("empty on-list must be rejected")
	}
}
