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

// Package emit translates an IR tree into a standalone Go source file
// that reconstructs the same tree, one local per node, and evaluates
// it by calling the exact runtimeops primitives the interpreter calls
//. Compiling and running the emitted program against
// the same tables and extern registry must produce the same result
// table the interpreter produces for that tree; the two paths share runtimeops.CallExtern and
// runtimeops.ScalarFromLiteral for that reason.
package emit

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/scalar"
)

// Options configures the shape of the emitted program.
type Options struct {
	// Package names the emitted file's package clause. Defaults to
	// "main" when empty.
	Package string

	// Print selects whether main prints the result's column names, one
	// per line, followed by "<n> rows" (true), or prints only its row
	// count (false, the default). Cell values are not printed.
	Print bool

	// BenchWarmup and BenchTimed, when BenchTimed > 0, wrap the
	// emitted Run call in a discarded warmup loop followed by a timed
	// loop, mirroring interp.Bench so the two paths can be benchmarked
	// the same way.
	BenchWarmup int
	BenchTimed  int

	// Scalars carries `let` scalar bindings into the generated
	// program; Run binds them into its scalar registry before
	// evaluating, exactly as the interpreter does.
	Scalars map[string]scalar.Value
}

type emitter struct {
	body    bytes.Buffer
	locals  map[*ir.Node]string
	counter int
}

// Emit writes a complete Go source file to w that, compiled against
// this module's runtimeops/ir/column/extern/scalar packages and the
// extern source packages at sources, evaluates root and prints either
// its column names and row count (opts.Print) or its row count alone.
// sources is the
// deduplicated list of extern-declaration source paths the Lowerer
// recorded for the program root came from (Lowerer.ExternSources).
//
// Emit refuses to translate a tree containing a Window node: the
// runtime has no rolling-window evaluation semantics to call into,
// mirroring the interpreter's refusal of the same node kind.
func Emit(w io.Writer, root *ir.Node, sources []string, opts Options) error {
	e := &emitter{locals: make(map[*ir.Node]string)}
	resultLocal, err := e.node(root)
	if err != nil {
		return err
	}

	pkg := opts.Package
	if pkg == "" {
		pkg = "main"
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by ibex's emitter from a lowered query. DO NOT EDIT.\n\npackage %s\n\n", pkg)

	bindText, err := renderScalarBinds(opts.Scalars)
	if err != nil {
		return err
	}
	bodyText := e.body.String() + bindText
	imports := []string{
		`"fmt"`,
		`"log"`,
	}
	if opts.BenchTimed > 0 {
		imports = append(imports, `"time"`)
	}
	imports = append(imports,
		``,
		`"github.com/bobjansen/ibex/column"`,
		`"github.com/bobjansen/ibex/extern"`,
		`"github.com/bobjansen/ibex/interp"`,
		`"github.com/bobjansen/ibex/runtimeops"`,
	)
	if strings.Contains(bodyText, "date.") {
		imports = append(imports, `"github.com/bobjansen/ibex/date"`)
	}
	if strings.Contains(bodyText, "ir.") {
		imports = append(imports, `"github.com/bobjansen/ibex/ir"`)
	}
	if strings.Contains(bodyText, "scalar.") {
		imports = append(imports, `"github.com/bobjansen/ibex/scalar"`)
	}
	aliases, err := importAliases(sources)
	if err != nil {
		return err
	}
	if len(aliases) > 0 {
		imports = append(imports, ``)
		for _, a := range aliases {
			imports = append(imports, fmt.Sprintf("%s %s", a.ident, quoteString(a.path)))
		}
	}
	out.WriteString("import (\n")
	for _, imp := range imports {
		if imp == "" {
			out.WriteString("\n")
			continue
		}
		out.WriteString("\t" + imp + "\n")
	}
	out.WriteString(")\n\n")

	out.WriteString("// Tables is the external-table registry Scan nodes resolve against.\n")
	out.WriteString("// A host embedding this generated unit registers its input tables here\n")
	out.WriteString("// before calling Run.\n")
	out.WriteString("var Tables = interp.NewTableRegistry()\n\n")

	out.WriteString("// Externs is the extern-function registry ExternCall nodes dispatch\n")
	out.WriteString("// through. Each extern source package below registers its functions into\n")
	out.WriteString("// it from init.\n")
	out.WriteString("var Externs = extern.NewRegistry()\n\n")

	if len(aliases) > 0 {
		out.WriteString("func init() {\n")
		for _, a := range aliases {
			fmt.Fprintf(&out, "\t%s.Register(Externs)\n", a.ident)
		}
		out.WriteString("}\n\n")
	}

	out.WriteString("// Run evaluates the compiled query and returns its result table.\n")
	out.WriteString("func Run() (*column.Table, error) {\n")
	out.WriteString("\tscalars := runtimeops.NewScalarRegistry()\n")
	out.WriteString("\t_ = scalars\n")
	out.WriteString(bindText)
	out.Write(e.body.Bytes())
	fmt.Fprintf(&out, "\treturn %s, nil\n", resultLocal)
	out.WriteString("}\n\n")

	out.WriteString("func main() {\n")
	if opts.BenchTimed > 0 {
		fmt.Fprintf(&out, "\tfor i := 0; i < %d; i++ {\n", opts.BenchWarmup)
		out.WriteString("\t\tif _, err := Run(); err != nil {\n\t\t\tlog.Fatal(err)\n\t\t}\n\t}\n")
		out.WriteString("\tstart := time.Now()\n")
		fmt.Fprintf(&out, "\tfor i := 0; i < %d; i++ {\n", opts.BenchTimed)
		out.WriteString("\t\tif _, err := Run(); err != nil {\n\t\t\tlog.Fatal(err)\n\t\t}\n\t}\n")
		fmt.Fprintf(&out, "\tlog.Printf(\"%%d iterations in %%s\", %d, time.Since(start))\n", opts.BenchTimed)
	}
	out.WriteString("\tresult, err := Run()\n")
	out.WriteString("\tif err != nil {\n\t\tlog.Fatal(err)\n\t}\n")
	if opts.Print {
		out.WriteString("\tfor _, name := range result.Names() {\n")
		out.WriteString("\t\tfmt.Println(name)\n")
		out.WriteString("\t}\n")
		out.WriteString("\tfmt.Println(result.Rows(), \"rows\")\n")
	} else {
		out.WriteString("\tfmt.Println(result.Rows())\n")
	}
	out.WriteString("}\n")

	_, err = w.Write(out.Bytes())
	return err
}

// node emits the statements needed to compute node's result table and
// returns the Go identifier holding it. Children are emitted first
// (post-order), matching the interpreter's evaluation order exactly.
func (e *emitter) node(node *ir.Node) (string, error) {
	if node == nil {
		return "", ibexerr.Wrap(ibexerr.ErrArity, "nil IR node")
	}
	if local, ok := e.locals[node]; ok {
		return local, nil
	}

	switch node.Kind {
	case ir.Scan:
		local := e.newLocal()
		fmt.Fprintf(&e.body, "\t%s, ok := Tables.Find(%s)\n", local, quoteString(node.Source))
		fmt.Fprintf(&e.body, "\tif !ok {\n\t\treturn nil, fmt.Errorf(\"scan source not found: %%s\", %s)\n\t}\n", quoteString(node.Source))
		e.locals[node] = local
		return local, nil

	case ir.Filter:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		pred, err := emitFilterExpr(node.Predicate)
		if err != nil {
			return "", err
		}
		local := e.newLocal()
		predVar := local + "_pred"
		fmt.Fprintf(&e.body, "\t%s := %s\n", predVar, pred)
		fmt.Fprintf(&e.body, "\t%s, err := runtimeops.Filter(%s, &%s, scalars, Externs)\n", local, child, predVar)
		e.body.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
		e.locals[node] = local
		return local, nil

	case ir.Project:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		cols := renderColumnRefs(node.Columns)
		return e.call1("runtimeops.Project", child, cols, node)

	case ir.Distinct:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		return e.call1("runtimeops.Distinct", child, "", node)

	case ir.Order:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		keys := renderOrderKeys(node.OrderKeys)
		return e.call1("runtimeops.Order", child, keys, node)

	case ir.Aggregate:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		groupBy := renderColumnRefs(node.GroupBy)
		aggs, err := renderAggSpecs(node.Aggs)
		if err != nil {
			return "", err
		}
		return e.call1("runtimeops.Aggregate", child, groupBy+", "+aggs, node)

	case ir.Update:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		fields, err := renderFieldSpecs(node.Fields)
		if err != nil {
			return "", err
		}
		groupBy := renderColumnRefs(node.GroupBy)
		groupByExprs, err := emitExprSlice(node.GroupByExprs)
		if err != nil {
			return "", err
		}
		args := fmt.Sprintf("%s, %s, %s, scalars, Externs", fields, groupBy, groupByExprs)
		return e.call1("runtimeops.Update", child, args, node)

	case ir.Window:
		return "", ibexerr.Wrap(ibexerr.ErrUnsupported, "emit does not support Window nodes")

	case ir.AsTimeframe:
		child, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		return e.call1("runtimeops.AsTimeframe", child, quoteString(node.TimeColumn), node)

	case ir.Join:
		left, err := e.node(node.Child(0))
		if err != nil {
			return "", err
		}
		right, err := e.node(node.Child(1))
		if err != nil {
			return "", err
		}
		kind, err := joinKindIdent(node.JoinKind)
		if err != nil {
			return "", err
		}
		local := e.newLocal()
		fmt.Fprintf(&e.body, "\t%s, err := runtimeops.Join(%s, %s, %s, %s)\n", local, left, right, kind, renderStrings(node.JoinKeys))
		e.body.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
		e.locals[node] = local
		return local, nil

	case ir.ExternCall:
		args, err := renderScalarArgs(node.Args)
		if err != nil {
			return "", err
		}
		local := e.newLocal()
		fmt.Fprintf(&e.body, "\t%s, err := runtimeops.CallExtern(Externs, %s, %s)\n", local, quoteString(node.Callee), args)
		e.body.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
		e.locals[node] = local
		return local, nil

	default:
		return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown IR node kind %v", node.Kind)
	}
}

// call1 emits "local, err := fn(child[, extra]); if err != nil {...}"
// for the common one-input-table shape shared by most node kinds.
func (e *emitter) call1(fn, child, extra string, node *ir.Node) (string, error) {
	local := e.newLocal()
	if extra == "" {
		fmt.Fprintf(&e.body, "\t%s, err := %s(%s)\n", local, fn, child)
	} else {
		fmt.Fprintf(&e.body, "\t%s, err := %s(%s, %s)\n", local, fn, child, extra)
	}
	e.body.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	e.locals[node] = local
	return local, nil
}

func (e *emitter) newLocal() string {
	e.counter++
	return fmt.Sprintf("t_%d", e.counter)
}

func renderColumnRefs(refs []ir.ColumnRef) string {
	out := "[]ir.ColumnRef{"
	for i, r := range refs {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("{Name: %s}", quoteString(r.Name))
	}
	return out + "}"
}

func renderOrderKeys(keys []ir.OrderKey) string {
	out := "[]ir.OrderKey{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("{Name: %s, Ascending: %t}", quoteString(k.Name), k.Ascending)
	}
	return out + "}"
}

func renderAggSpecs(aggs []ir.AggSpec) (string, error) {
	out := "[]ir.AggSpec{"
	for i, a := range aggs {
		fn, err := aggFuncIdent(a.Func)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("{Func: %s, Column: %s, Alias: %s}", fn, quoteString(a.Column), quoteString(a.Alias))
	}
	return out + "}", nil
}

func renderFieldSpecs(fields []ir.FieldSpec) (string, error) {
	out := "[]ir.FieldSpec{"
	for i, f := range fields {
		expr, err := emitValueExpr(f.Expr)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("{Alias: %s, Expr: %s}", quoteString(f.Alias), expr)
	}
	return out + "}", nil
}

func renderStrings(ss []string) string {
	out := "[]string{"
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += quoteString(s)
	}
	return out + "}"
}

// renderScalarArgs renders an ExternCall node's arguments the same way
// interp.evalExternCall converts them at evaluation time: each
// argument must already be a literal (the lowerer rejects anything
// else, see lower/expr.go's literalArgs), wrapped through
// runtimeops.ScalarFromLiteral so both paths produce byte-identical
// scalar.Value conversions.
func renderScalarArgs(args []ir.Expr) (string, error) {
	out := "[]scalar.Value{"
	for i, a := range args {
		if a.Kind != ir.ExprLiteral {
			return "", ibexerr.Wrap(ibexerr.ErrLowering, "extern call argument must be a literal")
		}
		lit, err := emitLiteral(a.Lit)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("runtimeops.ScalarFromLiteral(%s)", lit)
	}
	return out + "}", nil
}

type importAlias struct {
	ident string
	path  string
}

var nonIdentRune = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// capitalize upper-cases s's first byte; used to turn a source path's
// base name into an exported-looking import identifier segment.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// importAliases assigns a unique Go import identifier to each extern
// source path, derived from the path's final component, so the
// emitted file's init function can call "<alias>.Register(Externs)"
// for each one.
func importAliases(sources []string) ([]importAlias, error) {
	seen := make(map[string]int)
	out := make([]importAlias, 0, len(sources))
	for _, src := range sources {
		base := path.Base(src)
		base = strings.TrimSuffix(base, path.Ext(base))
		ident := "ext" + capitalize(nonIdentRune.ReplaceAllString(base, "_"))
		if ident == "ext" {
			ident = "extsrc"
		}
		seen[ident]++
		if n := seen[ident]; n > 1 {
			ident = fmt.Sprintf("%s%d", ident, n)
		}
		out = append(out, importAlias{ident: ident, path: src})
	}
	return out, nil
}

// renderScalarBinds renders deterministic scalars.Bind lines for the
// generated Run function, sorted by name.
func renderScalarBinds(binds map[string]scalar.Value) (string, error) {
	if len(binds) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(binds))
	for name := range binds {
		names = append(names, name)
	}
	sort.Strings(names)
	var out strings.Builder
	for _, name := range names {
		v := binds[name]
		var ctor string
		switch v.Kind() {
		case scalar.Int:
			ctor = fmt.Sprintf("scalar.Int64(%d)", v.AsInt64())
		case scalar.Float:
			ctor = fmt.Sprintf("scalar.Float64(%s)", formatFloat(v.AsFloat64()))
		case scalar.String:
			ctor = fmt.Sprintf("scalar.Str(%s)", quoteString(v.AsString()))
		default:
			return "", ibexerr.Wrap(ibexerr.ErrLowering, "unknown scalar kind %v", v.Kind())
		}
		fmt.Fprintf(&out, "\tscalars.Bind(%s, %s)\n", quoteString(name), ctor)
	}
	return out.String(), nil
}

// Digest returns the blake2b-256 content digest of the program Emit
// would write for root, so emitted programs can be cached and
// compared without re-diffing source text.
func Digest(root *ir.Node, sources []string, opts Options) ([blake2b.Size256]byte, error) {
	var buf bytes.Buffer
	if err := Emit(&buf, root, sources, opts); err != nil {
		return [blake2b.Size256]byte{}, err
	}
	return blake2b.Sum256(buf.Bytes()), nil
}
