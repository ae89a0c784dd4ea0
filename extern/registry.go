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

// Package extern implements the process-wide extern function registry
//: a name → (return-kind, callable) mapping written at
// plugin-load time and read during query execution.
package extern

import (
	"fmt"
	"sync"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/scalar"
)

// ReturnKind selects which of a Function's callables is populated.
type ReturnKind uint8

const (
	// ScalarReturn functions take scalar arguments and return a scalar.
	ScalarReturn ReturnKind = iota
	// TableReturn functions take scalar arguments and return a table.
	TableReturn
	// ScalarFromTableReturn functions take a table plus scalar
	// arguments and return a scalar (used for write_* sinks that
	// report a row count).
	ScalarFromTableReturn
)

type ScalarFunc func(args []scalar.Value) (scalar.Value, error)
type TableFunc func(args []scalar.Value) (*column.Table, error)
type ScalarFromTableFunc func(t *column.Table, args []scalar.Value) (scalar.Value, error)

// Function is one registered extern callable.
type Function struct {
	Kind            ReturnKind
	Scalar          ScalarFunc
	Table           TableFunc
	ScalarFromTable ScalarFromTableFunc
}

// Registry is a process-wide mapping from extern function name to
// Function. It is written at plugin-load time and read during query
// execution; Borrow acquires the shared read-side of that discipline
// for the duration of one query so inserts cannot race a read.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]Function)}
}

// RegisterScalar registers a scalar-returning extern function. Later
// registrations of the same name win.
func (r *Registry) RegisterScalar(name string, fn ScalarFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = Function{Kind: ScalarReturn, Scalar: fn}
}

// RegisterTable registers a table-returning extern function.
func (r *Registry) RegisterTable(name string, fn TableFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = Function{Kind: TableReturn, Table: fn}
}

// RegisterScalarFromTable registers a scalar-from-table extern
// function.
func (r *Registry) RegisterScalarFromTable(name string, fn ScalarFromTableFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = Function{Kind: ScalarFromTableReturn, ScalarFromTable: fn}
}

// Borrow acquires a shared read lock for the duration of a query and
// returns a function that releases it; callers should `defer` the
// returned function immediately, mirroring a scope-guard discipline
// across all error paths.
func (r *Registry) Borrow() func() {
	r.mu.RLock()
	return r.mu.RUnlock
}

// Find looks up name under an already-held Borrow. Lookups are by
// exact name equality.
func (r *Registry) Find(name string) (Function, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

// MustFind is like Find but returns a descriptive error, for use at
// ExternCall dispatch sites.
func (r *Registry) MustFind(name string) (Function, error) {
	fn, ok := r.Find(name)
	if !ok {
		return Function{}, fmt.Errorf("unknown extern function: %s", name)
	}
	return fn, nil
}
