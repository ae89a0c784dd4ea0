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

// Package engine ties the query core's layers together behind one
// façade: a table registry, an extern registry, and the lower →
// interpret and lower → emit paths, configured from a Config.
package engine

import (
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/emit"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/interp"
	"github.com/bobjansen/ibex/ir"
	"github.com/bobjansen/ibex/lower"
	"github.com/bobjansen/ibex/qast"
	"github.com/bobjansen/ibex/runtimeops"
	"github.com/bobjansen/ibex/scalar"
)

// Engine owns one table registry and one extern registry and runs
// queries against them. It is safe to run independent queries against
// disjoint table sets concurrently; mutating a registered table while
// a query reads it is a caller-side data race.
type Engine struct {
	cfg     Config
	tables  *interp.TableRegistry
	externs *extern.Registry

	// Logger, when non-nil, receives two lines per run (start and
	// outcome), tagged with the run's id, and Bench's warmup and timing
	// lines, which carry no run id; the core stays silent otherwise.
	Logger *log.Logger
}

// New returns an Engine with empty registries.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		tables:  interp.NewTableRegistry(),
		externs: extern.NewRegistry(),
	}
}

// Tables returns the engine's table registry.
func (e *Engine) Tables() *interp.TableRegistry { return e.tables }

// Externs returns the engine's extern registry.
func (e *Engine) Externs() *extern.Registry { return e.externs }

// RegisterTable registers t under name for Scan nodes to resolve,
// last-write-wins.
func (e *Engine) RegisterTable(name string, t *column.Table) {
	e.tables.Add(name, t)
}

// Query is a lowered program ready to interpret or emit: the result
// IR plus everything lowering collected along the way.
type Query struct {
	Root    *ir.Node
	Sources []string
	Scalars map[string]scalar.Value
}

// Lower lowers prog to a Query.
func (e *Engine) Lower(prog *qast.Program) (*Query, error) {
	lw := lower.New()
	root, err := lw.Lower(prog)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "program has no result expression")
	}
	return &Query{
		Root:    root,
		Sources: lw.ExternSources(),
		Scalars: lw.ScalarBindings(),
	}, nil
}

// Run lowers prog and interprets it against the engine's registries.
func (e *Engine) Run(prog *qast.Program) (*column.Table, error) {
	q, err := e.Lower(prog)
	if err != nil {
		return nil, err
	}
	return e.RunQuery(q)
}

// RunQuery interprets an already-lowered Query.
func (e *Engine) RunQuery(q *Query) (*column.Table, error) {
	runID := uuid.NewString()
	if e.Logger != nil {
		e.Logger.Printf("run %s: interpreting", runID)
	}
	ip := interp.New(e.tables, e.externs)
	out, err := ip.RunWith(q.Root, scalarRegistry(q.Scalars))
	if e.Logger != nil {
		if err != nil {
			e.Logger.Printf("run %s: failed: %s", runID, err)
		} else {
			e.Logger.Printf("run %s: %d rows", runID, out.Rows())
		}
	}
	return out, err
}

// Bench lowers prog and benchmarks its interpretation with the
// configured warmup/timed iteration counts.
func (e *Engine) Bench(prog *qast.Program) (interp.BenchResult, error) {
	q, err := e.Lower(prog)
	if err != nil {
		return interp.BenchResult{}, err
	}
	ip := interp.New(e.tables, e.externs)
	return ip.Bench(q.Root, e.cfg.BenchWarmup, e.cfg.BenchTimed, e.Logger)
}

// Emit lowers prog and writes the equivalent standalone Go program to
// w, carrying the configured print and benchmark options.
func (e *Engine) Emit(w io.Writer, prog *qast.Program) error {
	q, err := e.Lower(prog)
	if err != nil {
		return err
	}
	return emit.Emit(w, q.Root, q.Sources, e.emitOptions(q))
}

// EmitDigest returns the content digest of the program Emit would
// write for prog.
func (e *Engine) EmitDigest(prog *qast.Program) ([32]byte, error) {
	q, err := e.Lower(prog)
	if err != nil {
		return [32]byte{}, err
	}
	return emit.Digest(q.Root, q.Sources, e.emitOptions(q))
}

func (e *Engine) emitOptions(q *Query) emit.Options {
	opts := emit.Options{
		Print:   e.cfg.Print,
		Scalars: q.Scalars,
	}
	if e.cfg.Bench {
		opts.BenchWarmup = e.cfg.BenchWarmup
		opts.BenchTimed = e.cfg.BenchTimed
	}
	return opts
}

// WriteSink dispatches a scalar-from-table extern function: t plus
// the scalar args go in, and the function's scalar (typically a row
// count from a write_* sink) comes back.
func (e *Engine) WriteSink(name string, t *column.Table, args []scalar.Value) (scalar.Value, error) {
	release := e.externs.Borrow()
	defer release()
	fn, err := e.externs.MustFind(name)
	if err != nil {
		return scalar.Value{}, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	if fn.Kind != extern.ScalarFromTableReturn {
		return scalar.Value{}, ibexerr.Wrap(ibexerr.ErrType, "extern function %s is not a table sink", name)
	}
	v, err := fn.ScalarFromTable(t, args)
	if err != nil {
		return scalar.Value{}, ibexerr.Wrap(ibexerr.ErrReference, "%s: %s", name, err)
	}
	return v, nil
}

func scalarRegistry(binds map[string]scalar.Value) *runtimeops.ScalarRegistry {
	reg := runtimeops.NewScalarRegistry()
	for name, v := range binds {
		reg.Bind(name, v)
	}
	return reg
}
