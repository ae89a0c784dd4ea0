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

// Package runtimeops implements the per-operator primitives behind
// every IR node kind: filter, project, distinct, order, aggregate,
// update, and join. Each operator takes a borrowed
// input table and returns a freshly allocated output table; none
// mutate their input.
package runtimeops

import "github.com/bobjansen/ibex/scalar"

// ScalarRegistry is the per-query mapping from a bound name (from a
// `let` statement or a scalar-returning extern call) to its scalar
// value, consulted when an expression references a name that is not
// a column.
type ScalarRegistry struct {
	values map[string]scalar.Value
}

// NewScalarRegistry returns an empty registry.
func NewScalarRegistry() *ScalarRegistry {
	return &ScalarRegistry{values: make(map[string]scalar.Value)}
}

// Bind records name → v, overwriting any previous binding.
func (r *ScalarRegistry) Bind(name string, v scalar.Value) {
	if r.values == nil {
		r.values = make(map[string]scalar.Value)
	}
	r.values[name] = v
}

// Lookup returns the bound value for name, if any.
func (r *ScalarRegistry) Lookup(name string) (scalar.Value, bool) {
	if r == nil {
		return scalar.Value{}, false
	}
	v, ok := r.values[name]
	return v, ok
}
