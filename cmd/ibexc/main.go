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

// Command ibexc lowers a parsed Ibex program (as the parser's JSON
// AST) and either interprets it against table snapshots registered
// with -table, emits the equivalent standalone Go program, or dumps
// the plan as graphviz.
//
// Usage:
//
//	ibexc [-config cfg.yaml] [-table name=path.ibx ...] [-emit|-g|-bench] [-o out] program.json
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/bobjansen/ibex/codec"
	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/engine"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/qast"
)

var (
	dashconfig string
	dashemit   bool
	dashg      bool
	dashbench  bool
	dashprint  bool
	dasho      string
	tables     tableFlags
)

// tableFlags accumulates repeated -table name=path.ibx flags.
type tableFlags []struct{ name, path string }

func (t *tableFlags) String() string {
	parts := make([]string, len(*t))
	for i, e := range *t {
		parts[i] = e.name + "=" + e.path
	}
	return strings.Join(parts, ",")
}

func (t *tableFlags) Set(s string) error {
	name, path, ok := strings.Cut(s, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("-table wants name=path, got %q", s)
	}
	*t = append(*t, struct{ name, path string }{name, path})
	return nil
}

func init() {
	flag.StringVar(&dashconfig, "config", "", "engine config file (yaml)")
	flag.BoolVar(&dashemit, "emit", false, "emit the equivalent Go program instead of executing")
	flag.BoolVar(&dashg, "g", false, "just dump the query plan graphviz; do not execute")
	flag.BoolVar(&dashbench, "bench", false, "benchmark interpretation with the configured iteration counts")
	flag.BoolVar(&dashprint, "print", false, "print the full result table instead of a summary")
	flag.StringVar(&dasho, "o", "", "output file (default stdout)")
	flag.Var(&tables, "table", "register a table snapshot as name=path.ibx (repeatable)")
}

func main() {
	flag.Parse()
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := engine.DefaultConfig()
	if dashconfig != "" {
		var err error
		cfg, err = engine.LoadConfig(dashconfig)
		if err != nil {
			log.Fatal(err)
		}
	}
	if dashprint {
		cfg.Print = true
	}
	if dashbench {
		cfg.Bench = true
	}

	eng := engine.New(cfg)
	eng.Logger = log.New(os.Stderr, "", log.LstdFlags)
	for _, e := range tables {
		t, err := loadSnapshot(e.path)
		if err != nil {
			log.Fatalf("-table %s: %s", e.name, err)
		}
		eng.RegisterTable(e.name, t)
	}

	prog, err := readProgram(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	dst := io.Writer(os.Stdout)
	if dasho != "" {
		f, err := os.Create(dasho)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		dst = f
	}

	switch {
	case dashg:
		q, err := eng.Lower(prog)
		if err != nil {
			log.Fatal(err)
		}
		if err := ir.WriteDOT(dst, q.Root); err != nil {
			log.Fatal(err)
		}
	case dashemit:
		if err := eng.Emit(dst, prog); err != nil {
			log.Fatal(err)
		}
	case dashbench:
		res, err := eng.Bench(prog)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Fprintf(dst, "%d warmup + %d timed iterations in %s\n", res.Warmup, res.Timed, res.Elapsed)
	default:
		result, err := eng.Run(prog)
		if err != nil {
			log.Fatal(err)
		}
		printTable(dst, result, cfg.Print)
	}
}

func readProgram(path string) (*qast.Program, error) {
	var buf []byte
	var err error
	if path == "" || path == "-" {
		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return qast.DecodeProgram(buf)
}

func loadSnapshot(path string) (*column.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return codec.Decode(f)
}

// printTable writes the result: a one-line summary by default, or
// every row in column order when full is set.
func printTable(w io.Writer, t *column.Table, full bool) {
	if !full {
		fmt.Fprintf(w, "%d rows, %d columns\n", t.Rows(), t.NumColumns())
		return
	}
	fmt.Fprintln(w, strings.Join(t.Names(), "\t"))
	for row := 0; row < t.Rows(); row++ {
		parts := make([]string, t.NumColumns())
		for i := 0; i < t.NumColumns(); i++ {
			parts[i] = cellString(t.ColumnAt(i), row)
		}
		fmt.Fprintln(w, strings.Join(parts, "\t"))
	}
}

func cellString(c *column.Column, row int) string {
	if !c.IsValid(row) {
		return "<missing>"
	}
	switch c.Kind() {
	case column.Int64:
		return fmt.Sprintf("%d", c.Int64At(row))
	case column.Float64:
		return fmt.Sprintf("%g", c.Float64At(row))
	case column.Date:
		return c.DateAt(row).String()
	case column.Timestamp:
		return c.TimestampAt(row).String()
	default:
		return c.StringAt(row)
	}
}
