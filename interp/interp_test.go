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

package interp

import (
	"errors"
	"testing"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/runtimeops"
	"github.com/bobjansen/ibex/scalar"
)

func tradesRegistry() *TableRegistry {
	t := column.New()
	t.AddColumn("price", column.NewInt64([]int64{10, 20, 30}))
	t.AddColumn("symbol", column.NewString([]string{"A", "B", "A"}))
	reg := NewTableRegistry()
	reg.Add("trades", t)
	return reg
}

func wantCol(t *testing.T, tbl *column.Table, name string, want []int64) {
	t.Helper()
	col, ok := tbl.Find(name)
	if !ok {
		t.Fatalf("column %s missing", name)
	}
	if col.Len() != len(want) {
		t.Fatalf("column %s: %d rows want %d", name, col.Len(), len(want))
	}
	for i, w := range want {
		if col.Int64At(i) != w {
			t.Errorf("column %s row %d: got %d want %d", name, i, col.Int64At(i), w)
		}
	}
}

func TestInterpFilterSelect(t *testing.T) {
	b := ir.NewBuilder()
	scan := b.ScanNode("trades")
	filter := b.FilterNode(ir.FilterCompareExpr(ir.Gt, ir.FilterColumnExpr("price"), ir.FilterLiteralExpr(ir.IntLiteral(15))))
	filter.AddChild(scan)
	project := b.ProjectNode([]ir.ColumnRef{{Name: "price"}})
	project.AddChild(filter)

	out, err := New(tradesRegistry(), nil).Run(project)
	if err != nil {
		t.Fatal(err)
	}
	if out.NumColumns() != 1 {
		t.Fatalf("columns: %v", out.Names())
	}
	wantCol(t, out, "price", []int64{20, 30})
}

func TestInterpAggregatePipeline(t *testing.T) {
	b := ir.NewBuilder()
	scan := b.ScanNode("trades")
	agg := b.AggregateNode(
		[]ir.ColumnRef{{Name: "symbol"}},
		[]ir.AggSpec{{Func: ir.Sum, Column: "price", Alias: "total"}})
	agg.AddChild(scan)

	out, err := New(tradesRegistry(), nil).Run(agg)
	if err != nil {
		t.Fatal(err)
	}
	wantCol(t, out, "total", []int64{40, 20})
}

func TestInterpMissingScanSource(t *testing.T) {
	b := ir.NewBuilder()
	_, err := New(NewTableRegistry(), nil).Run(b.ScanNode("ghost"))
	if err == nil || !errors.Is(err, ibexerr.ErrReference) {
		t.Fatalf("got %v", err)
	}
}

func TestInterpArityChecked(t *testing.T) {
	b := ir.NewBuilder()
	filter := b.FilterNode(ir.FilterCompareExpr(ir.Gt, ir.FilterColumnExpr("x"), ir.FilterLiteralExpr(ir.IntLiteral(0))))
	// no child attached
	_, err := New(tradesRegistry(), nil).Run(filter)
	if err == nil || !errors.Is(err, ibexerr.ErrArity) {
		t.Fatalf("got %v", err)
	}

	join := b.JoinNode(ir.InnerJoin, []string{"id"})
	join.AddChild(b.ScanNode("trades"))
	_, err = New(tradesRegistry(), nil).Run(join)
	if err == nil || !errors.Is(err, ibexerr.ErrArity) {
		t.Fatalf("join with one child: got %v", err)
	}
}

func TestInterpWindowUnsupported(t *testing.T) {
	b := ir.NewBuilder()
	win := b.WindowNode(5)
	win.AddChild(b.ScanNode("trades"))
	_, err := New(tradesRegistry(), nil).Run(win)
	if err == nil || !errors.Is(err, ibexerr.ErrUnsupported) {
		t.Fatalf("got %v", err)
	}
}

func TestInterpExternCallTable(t *testing.T) {
	externs := extern.NewRegistry()
	externs.RegisterTable("make_table", func(args []scalar.Value) (*column.Table, error) {
		n := args[0].AsInt64()
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(i)
		}
		t := column.New()
		t.AddColumn("n", column.NewInt64(vals))
		return t, nil
	})
	b := ir.NewBuilder()
	call := b.ExternCallNode("make_table", []ir.Expr{ir.LiteralExpr(ir.IntLiteral(4))})
	out, err := New(NewTableRegistry(), externs).Run(call)
	if err != nil {
		t.Fatal(err)
	}
	wantCol(t, out, "n", []int64{0, 1, 2, 3})
}

func TestInterpExternCallScalarBecomesValueTable(t *testing.T) {
	externs := extern.NewRegistry()
	externs.RegisterScalar("answer", func(args []scalar.Value) (scalar.Value, error) {
		return scalar.Int64(42), nil
	})
	b := ir.NewBuilder()
	out, err := New(NewTableRegistry(), externs).Run(b.ExternCallNode("answer", nil))
	if err != nil {
		t.Fatal(err)
	}
	wantCol(t, out, "value", []int64{42})
}

func TestInterpExternCallMissingCallee(t *testing.T) {
	b := ir.NewBuilder()
	_, err := New(NewTableRegistry(), extern.NewRegistry()).Run(b.ExternCallNode("ghost", nil))
	if err == nil || !errors.Is(err, ibexerr.ErrReference) {
		t.Fatalf("got %v", err)
	}
}

func TestInterpExternCallNonLiteralArg(t *testing.T) {
	b := ir.NewBuilder()
	call := b.ExternCallNode("f", []ir.Expr{ir.ColumnExpr("x")})
	_, err := New(NewTableRegistry(), extern.NewRegistry()).Run(call)
	if err == nil || !errors.Is(err, ibexerr.ErrLowering) {
		t.Fatalf("got %v", err)
	}
}

func TestInterpRunWithScalars(t *testing.T) {
	b := ir.NewBuilder()
	scan := b.ScanNode("trades")
	update := b.UpdateNode([]ir.FieldSpec{{
		Alias: "adj",
		Expr:  ir.BinaryExpr(ir.Add, ir.ColumnExpr("price"), ir.ColumnExpr("offset")),
	}}, nil)
	update.AddChild(scan)

	scalars := runtimeops.NewScalarRegistry()
	scalars.Bind("offset", scalar.Int64(5))
	out, err := New(tradesRegistry(), nil).RunWith(update, scalars)
	if err != nil {
		t.Fatal(err)
	}
	wantCol(t, out, "adj", []int64{15, 25, 35})
}

func TestInterpAsTimeframe(t *testing.T) {
	reg := NewTableRegistry()
	tbl := column.New()
	tbl.AddColumn("when", column.NewTimestamp(nil))
	reg.Add("events", tbl)

	b := ir.NewBuilder()
	atf := b.AsTimeframeNode("when")
	atf.AddChild(b.ScanNode("events"))
	out, err := New(reg, nil).Run(atf)
	if err != nil {
		t.Fatal(err)
	}
	if out.TimeIndex() != "when" {
		t.Fatal("time index not promoted")
	}
	if tbl.IsTimeFrame() {
		t.Fatal("input table must not be mutated")
	}
}

func TestBenchRunsWarmupAndTimed(t *testing.T) {
	b := ir.NewBuilder()
	res, err := New(tradesRegistry(), nil).Bench(b.ScanNode("trades"), 2, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Warmup != 2 || res.Timed != 3 {
		t.Fatalf("result: %+v", res)
	}
}
