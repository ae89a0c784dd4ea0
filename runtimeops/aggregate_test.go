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
	"math"
	"testing"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

func TestAggregateSumByKey(t *testing.T) {
	out, err := Aggregate(trades(),
		[]ir.ColumnRef{{Name: "symbol"}},
		[]ir.AggSpec{{Func: ir.Sum, Column: "price", Alias: "total"}})
	if err != nil {
		t.Fatal(err)
	}
	// first-occurrence order: A before B
	wantStrings(t, out, "symbol", []string{"A", "B"})
	wantInt64(t, out, "total", []int64{40, 20})
}

func TestAggregateAllFuncs(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("g", column.NewString([]string{"x", "x", "y", "x"}))
	tbl.AddColumn("v", column.NewInt64([]int64{3, 1, 7, 2}))

	out, err := Aggregate(tbl,
		[]ir.ColumnRef{{Name: "g"}},
		[]ir.AggSpec{
			{Func: ir.Sum, Column: "v", Alias: "sum"},
			{Func: ir.Mean, Column: "v", Alias: "mean"},
			{Func: ir.Min, Column: "v", Alias: "min"},
			{Func: ir.Max, Column: "v", Alias: "max"},
			{Func: ir.Count, Alias: "n"},
			{Func: ir.First, Column: "v", Alias: "first"},
			{Func: ir.Last, Column: "v", Alias: "last"},
		})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "g", []string{"x", "y"})
	wantInt64(t, out, "sum", []int64{6, 7})
	wantFloat64(t, out, "mean", []float64{2, 7})
	wantInt64(t, out, "min", []int64{1, 7})
	wantInt64(t, out, "max", []int64{3, 7})
	wantInt64(t, out, "n", []int64{3, 1})
	wantInt64(t, out, "first", []int64{3, 7})
	wantInt64(t, out, "last", []int64{2, 7})
}

func TestAggregateMultiKey(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("a", column.NewString([]string{"x", "x", "y", "x"}))
	tbl.AddColumn("b", column.NewInt64([]int64{1, 2, 1, 1}))
	tbl.AddColumn("v", column.NewInt64([]int64{10, 20, 30, 40}))

	out, err := Aggregate(tbl,
		[]ir.ColumnRef{{Name: "a"}, {Name: "b"}},
		[]ir.AggSpec{{Func: ir.Sum, Column: "v", Alias: "total"}})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "a", []string{"x", "x", "y"})
	wantInt64(t, out, "b", []int64{1, 2, 1})
	wantInt64(t, out, "total", []int64{50, 20, 30})
}

func TestAggregateRowCountMatchesDistinctKeys(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("k", column.NewInt64([]int64{5, 3, 5, 3, 9}))
	out, err := Aggregate(tbl, []ir.ColumnRef{{Name: "k"}}, []ir.AggSpec{{Func: ir.Count, Alias: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "k", []int64{5, 3, 9})
	wantInt64(t, out, "n", []int64{2, 2, 1})
}

func TestAggregateMinMaxStrings(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("g", column.NewInt64([]int64{1, 1, 1}))
	tbl.AddColumn("s", column.NewString([]string{"pear", "apple", "plum"}))
	out, err := Aggregate(tbl,
		[]ir.ColumnRef{{Name: "g"}},
		[]ir.AggSpec{
			{Func: ir.Min, Column: "s", Alias: "lo"},
			{Func: ir.Max, Column: "s", Alias: "hi"},
		})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "lo", []string{"apple"})
	wantStrings(t, out, "hi", []string{"plum"})
}

func TestAggregateStringSumRejected(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("g", column.NewInt64([]int64{1}))
	tbl.AddColumn("s", column.NewString([]string{"a"}))
	for _, fn := range []ir.AggFunc{ir.Sum, ir.Mean} {
		_, err := Aggregate(tbl, []ir.ColumnRef{{Name: "g"}}, []ir.AggSpec{{Func: fn, Column: "s", Alias: "x"}})
		if err == nil || !errors.Is(err, ibexerr.ErrType) {
			t.Fatalf("%s over strings: got %v", fn, err)
		}
	}
}

func TestAggregateFloatSum(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("g", column.NewString([]string{"a", "a"}))
	tbl.AddColumn("v", column.NewFloat64([]float64{1.5, 2.25}))
	out, err := Aggregate(tbl, []ir.ColumnRef{{Name: "g"}}, []ir.AggSpec{{Func: ir.Sum, Column: "v", Alias: "s"}})
	if err != nil {
		t.Fatal(err)
	}
	wantFloat64(t, out, "s", []float64{3.75})
}

func TestAggregateNaNKeysGroupTogether(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("k", column.NewFloat64([]float64{math.NaN(), 1, math.Float64frombits(0x7ff8000000000001)}))
	tbl.AddColumn("v", column.NewInt64([]int64{1, 1, 1}))
	out, err := Aggregate(tbl, []ir.ColumnRef{{Name: "k"}}, []ir.AggSpec{{Func: ir.Count, Alias: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("NaN keys must collapse to one group: got %d groups", out.Rows())
	}
	wantInt64(t, out, "n", []int64{2, 1})
}

func TestAggregateNaNKeysGroupTogetherMultiKey(t *testing.T) {
	// a second key forces the composite-key fallback, which must key
	// NaN the same way the single-key fast path does
	tbl := column.New()
	tbl.AddColumn("k", column.NewFloat64([]float64{math.NaN(), math.NaN(), 1}))
	tbl.AddColumn("g", column.NewString([]string{"a", "a", "a"}))
	tbl.AddColumn("v", column.NewInt64([]int64{1, 1, 1}))
	out, err := Aggregate(tbl,
		[]ir.ColumnRef{{Name: "k"}, {Name: "g"}},
		[]ir.AggSpec{{Func: ir.Count, Alias: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("NaN keys must collapse to one group: got %d groups", out.Rows())
	}
	wantInt64(t, out, "n", []int64{2, 1})
}

func TestAggregateMissingColumn(t *testing.T) {
	_, err := Aggregate(trades(), []ir.ColumnRef{{Name: "symbol"}}, []ir.AggSpec{{Func: ir.Sum, Column: "nope", Alias: "x"}})
	if err == nil || !errors.Is(err, ibexerr.ErrReference) {
		t.Fatalf("got %v", err)
	}
}

func TestAggregateTimestampKeyFallback(t *testing.T) {
	// a single Timestamp key is not fast-path eligible and must take
	// the composite-key path with identical semantics
	tf := timeframe(t, "t", []int64{5, 5, 9}, map[string][]int64{"v": {1, 2, 3}}, nil)
	out, err := Aggregate(tf, []ir.ColumnRef{{Name: "ts"}}, []ir.AggSpec{{Func: ir.Sum, Column: "v", Alias: "s"}})
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("groups: %d", out.Rows())
	}
	wantInt64(t, out, "s", []int64{3, 3})
}

func TestDistinctKeepsFirstOccurrence(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("a", column.NewInt64([]int64{1, 2, 1, 2, 3}))
	tbl.AddColumn("b", column.NewString([]string{"x", "y", "x", "z", "x"}))
	out, err := Distinct(tbl)
	if err != nil {
		t.Fatal(err)
	}
	wantInt64(t, out, "a", []int64{1, 2, 2, 3})
	wantStrings(t, out, "b", []string{"x", "y", "z", "x"})
}

func TestDistinctTreatsNaNAsEqual(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("f", column.NewFloat64([]float64{math.NaN(), math.NaN(), 1}))
	out, err := Distinct(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("NaN rows must deduplicate: got %d rows", out.Rows())
	}
}

func TestDistinctValidityParticipates(t *testing.T) {
	c := column.NewInt64([]int64{7, 7, 7})
	c.Valid = []bool{true, false, true}
	tbl := column.New()
	tbl.AddColumn("v", c)
	out, err := Distinct(tbl)
	if err != nil {
		t.Fatal(err)
	}
	if out.Rows() != 2 {
		t.Fatalf("missing and present cells are distinct rows: got %d", out.Rows())
	}
}

func TestOrderMultiKeyWithDirections(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("g", column.NewString([]string{"b", "a", "b", "a"}))
	tbl.AddColumn("v", column.NewInt64([]int64{1, 2, 3, 4}))
	out, err := Order(tbl, []ir.OrderKey{
		{Name: "g", Ascending: true},
		{Name: "v", Ascending: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "g", []string{"a", "a", "b", "b"})
	wantInt64(t, out, "v", []int64{4, 2, 3, 1})
}

func TestOrderIsStableForEqualKeys(t *testing.T) {
	tbl := column.New()
	tbl.AddColumn("k", column.NewInt64([]int64{1, 1, 1}))
	tbl.AddColumn("tag", column.NewString([]string{"first", "second", "third"}))
	out, err := Order(tbl, []ir.OrderKey{{Name: "k", Ascending: true}})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, out, "tag", []string{"first", "second", "third"})
}

func TestOrderNullsLastAscendingFirstDescending(t *testing.T) {
	c := column.NewInt64([]int64{2, 0, 1})
	c.Valid = []bool{true, false, true}
	tbl := column.New()
	tbl.AddColumn("v", c)
	tbl.AddColumn("tag", column.NewString([]string{"two", "null", "one"}))

	asc, err := Order(tbl, []ir.OrderKey{{Name: "v", Ascending: true}})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, asc, "tag", []string{"one", "two", "null"})

	desc, err := Order(tbl, []ir.OrderKey{{Name: "v", Ascending: false}})
	if err != nil {
		t.Fatal(err)
	}
	wantStrings(t, desc, "tag", []string{"null", "two", "one"})
}

func TestOrderMissingKey(t *testing.T) {
	_, err := Order(trades(), []ir.OrderKey{{Name: "nope", Ascending: true}})
	if err == nil || !errors.Is(err, ibexerr.ErrReference) {
		t.Fatalf("got %v", err)
	}
}
