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

import (
	"encoding/json"
	"fmt"
)

// DecodeProgram decodes the kind-tagged JSON form of a Program that
// the out-of-process parser serializes its AST into. Each statement
// and expression object carries a "kind" discriminator naming its
// variant; payload fields follow the struct fields of this package.
func DecodeProgram(data []byte) (*Program, error) {
	var raw struct {
		Stmts []json.RawMessage `json:"stmts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("qast: bad program: %s", err)
	}
	prog := &Program{}
	for i, msg := range raw.Stmts {
		stmt, err := decodeStmt(msg)
		if err != nil {
			return nil, fmt.Errorf("qast: statement %d: %s", i, err)
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func kindOf(msg json.RawMessage) (string, error) {
	var k struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(msg, &k); err != nil {
		return "", err
	}
	if k.Kind == "" {
		return "", fmt.Errorf("missing kind discriminator")
	}
	return k.Kind, nil
}

func decodeStmt(msg json.RawMessage) (Stmt, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "extern":
		var s struct {
			Name       string  `json:"name"`
			Params     []Param `json:"params"`
			ReturnType string  `json:"returnType"`
			SourcePath string  `json:"sourcePath"`
		}
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return &ExternDecl{Name: s.Name, Params: s.Params, ReturnType: s.ReturnType, SourcePath: s.SourcePath}, nil
	case "function":
		var s struct {
			Name       string          `json:"name"`
			Params     []Param         `json:"params"`
			ReturnType string          `json:"returnType"`
			Body       json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		body, err := decodeExpr(s.Body)
		if err != nil {
			return nil, err
		}
		return &FunctionDecl{Name: s.Name, Params: s.Params, ReturnType: s.ReturnType, Body: body}, nil
	case "let":
		var s struct {
			Mutable      bool            `json:"mutable"`
			Name         string          `json:"name"`
			DeclaredType string          `json:"type"`
			Value        json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		value, err := decodeExpr(s.Value)
		if err != nil {
			return nil, err
		}
		return &Let{Mutable: s.Mutable, Name: s.Name, DeclaredType: s.DeclaredType, Value: value}, nil
	case "expr":
		var s struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		x, err := decodeExpr(s.Expr)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
}

func decodeExpr(msg json.RawMessage) (Expr, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("missing expression")
	}
	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "ident":
		var e struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		return &Ident{Name: e.Name}, nil
	case "int":
		var e struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		return &IntLit{Value: e.Value}, nil
	case "float":
		var e struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		return &FloatLit{Value: e.Value}, nil
	case "string":
		var e struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		return &StringLit{Value: e.Value}, nil
	case "binary":
		var e struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
			Y  json.RawMessage `json:"y"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		x, err := decodeExpr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeExpr(e.Y)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: BinOp(e.Op), X: x, Y: y}, nil
	case "not":
		var e struct {
			X json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		x, err := decodeExpr(e.X)
		if err != nil {
			return nil, err
		}
		return &Unary{X: x}, nil
	case "grouped":
		var e struct {
			X json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		x, err := decodeExpr(e.X)
		if err != nil {
			return nil, err
		}
		return &Grouped{X: x}, nil
	case "call":
		var e struct {
			Callee string            `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		call := &Call{Callee: e.Callee}
		for _, a := range e.Args {
			arg, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	case "block":
		var e struct {
			Base    json.RawMessage   `json:"base"`
			Clauses []json.RawMessage `json:"clauses"`
		}
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		base, err := decodeExpr(e.Base)
		if err != nil {
			return nil, err
		}
		block := &Block{Base: base}
		for i, c := range e.Clauses {
			clause, err := decodeClause(c)
			if err != nil {
				return nil, fmt.Errorf("clause %d: %s", i, err)
			}
			block.Clauses = append(block.Clauses, clause)
		}
		return block, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
}

func decodeClause(msg json.RawMessage) (Clause, error) {
	kind, err := kindOf(msg)
	if err != nil {
		return Clause{}, err
	}
	switch kind {
	case "filter":
		var c struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(msg, &c); err != nil {
			return Clause{}, err
		}
		x, err := decodeExpr(c.Expr)
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: ClauseFilter, Filter: x}, nil
	case "select", "update", "by":
		var c struct {
			Fields []struct {
				Alias string          `json:"alias"`
				Expr  json.RawMessage `json:"expr"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(msg, &c); err != nil {
			return Clause{}, err
		}
		clauseKind := map[string]ClauseKind{
			"select": ClauseSelect,
			"update": ClauseUpdate,
			"by":     ClauseBy,
		}[kind]
		out := Clause{Kind: clauseKind}
		for _, f := range c.Fields {
			field := Field{Alias: f.Alias}
			if len(f.Expr) > 0 && string(f.Expr) != "null" {
				x, err := decodeExpr(f.Expr)
				if err != nil {
					return Clause{}, err
				}
				field.Expr = x
			}
			out.Fields = append(out.Fields, field)
		}
		return out, nil
	case "distinct":
		return Clause{Kind: ClauseDistinct}, nil
	case "order":
		var c struct {
			Keys []OrderKey `json:"keys"`
		}
		if err := json.Unmarshal(msg, &c); err != nil {
			return Clause{}, err
		}
		return Clause{Kind: ClauseOrder, OrderKeys: c.Keys}, nil
	case "window":
		var c struct {
			Duration string `json:"duration"`
		}
		if err := json.Unmarshal(msg, &c); err != nil {
			return Clause{}, err
		}
		return Clause{Kind: ClauseWindow, Duration: c.Duration}, nil
	default:
		return Clause{}, fmt.Errorf("unknown clause kind %q", kind)
	}
}
