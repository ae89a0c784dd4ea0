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

package qast

import "testing"

func TestDecodeProgram(t *testing.T) {
	data := []byte(`{
	  "stmts": [
	    {"kind": "extern", "name": "read_csv",
	     "params": [{"name": "path", "type": "string"}],
	     "returnType": "table", "sourcePath": "io/csv"},
	    {"kind": "let", "name": "threshold", "value": {"kind": "int", "value": 15}},
	    {"kind": "expr", "expr": {
	      "kind": "block",
	      "base": {"kind": "ident", "name": "trades"},
	      "clauses": [
	        {"kind": "filter", "expr": {
	          "kind": "binary", "op": ">",
	          "x": {"kind": "ident", "name": "price"},
	          "y": {"kind": "ident", "name": "threshold"}}},
	        {"kind": "select", "fields": [
	          {"alias": "symbol"},
	          {"alias": "total", "expr": {
	            "kind": "call", "callee": "sum",
	            "args": [{"kind": "ident", "name": "price"}]}}]},
	        {"kind": "by", "fields": [{"alias": "symbol"}]},
	        {"kind": "order", "keys": [{"name": "total", "ascending": false}]}
	      ]}}
	  ]
	}`)
	prog, err := DecodeProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Stmts) != 3 {
		t.Fatalf("stmts: %d", len(prog.Stmts))
	}
	ext, ok := prog.Stmts[0].(*ExternDecl)
	if !ok || ext.Name != "read_csv" || ext.SourcePath != "io/csv" || len(ext.Params) != 1 {
		t.Fatalf("extern: %+v", prog.Stmts[0])
	}
	let, ok := prog.Stmts[1].(*Let)
	if !ok || let.Name != "threshold" {
		t.Fatalf("let: %+v", prog.Stmts[1])
	}
	if lit, ok := let.Value.(*IntLit); !ok || lit.Value != 15 {
		t.Fatalf("let value: %+v", let.Value)
	}
	es, ok := prog.Stmts[2].(*ExprStmt)
	if !ok {
		t.Fatalf("expr stmt: %+v", prog.Stmts[2])
	}
	block, ok := es.X.(*Block)
	if !ok || len(block.Clauses) != 4 {
		t.Fatalf("block: %+v", es.X)
	}
	if block.Clauses[0].Kind != ClauseFilter {
		t.Fatalf("clause 0: %v", block.Clauses[0].Kind)
	}
	sel := block.Clauses[1]
	if sel.Kind != ClauseSelect || len(sel.Fields) != 2 {
		t.Fatalf("select: %+v", sel)
	}
	if sel.Fields[0].Expr != nil {
		t.Fatal("bare field must decode with a nil expression")
	}
	call, ok := sel.Fields[1].Expr.(*Call)
	if !ok || call.Callee != "sum" {
		t.Fatalf("call: %+v", sel.Fields[1].Expr)
	}
	ord := block.Clauses[3]
	if len(ord.OrderKeys) != 1 || ord.OrderKeys[0].Name != "total" || ord.OrderKeys[0].Ascending {
		t.Fatalf("order: %+v", ord)
	}
}

func TestDecodeProgramErrors(t *testing.T) {
	cases := []string{
		`not json`,
		`{"stmts": [{"name": "missing kind"}]}`,
		`{"stmts": [{"kind": "mystery"}]}`,
		`{"stmts": [{"kind": "expr", "expr": {"kind": "binary", "op": "+"}}]}`,
		`{"stmts": [{"kind": "expr", "expr": {"kind": "block",
		  "base": {"kind": "ident", "name": "t"},
		  "clauses": [{"kind": "sideways"}]}}]}`,
	}
	for _, c := range cases {
		if _, err := DecodeProgram([]byte(c)); err == nil {
			t.Errorf("%s: expected an error", c)
		}
	}
}

func TestDecodeWindowAndDistinct(t *testing.T) {
	data := []byte(`{"stmts": [{"kind": "expr", "expr": {
	  "kind": "block",
	  "base": {"kind": "ident", "name": "t"},
	  "clauses": [{"kind": "distinct"}, {"kind": "window", "duration": "5m"}]}}]}`)
	prog, err := DecodeProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	block := prog.Stmts[0].(*ExprStmt).X.(*Block)
	if block.Clauses[0].Kind != ClauseDistinct {
		t.Fatalf("distinct: %+v", block.Clauses[0])
	}
	if block.Clauses[1].Kind != ClauseWindow || block.Clauses[1].Duration != "5m" {
		t.Fatalf("window: %+v", block.Clauses[1])
	}
}
