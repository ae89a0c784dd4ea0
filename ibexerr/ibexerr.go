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

// Package ibexerr holds the sentinel errors for Ibex's error
// taxonomy. Every error returned by lower, interp, and runtimeops
// wraps exactly one of these, so callers can classify a failure with
// errors.Is instead of matching message text.
package ibexerr

import (
	"errors"
	"fmt"
)

var (
	// ErrLowering covers AST → IR lowering failures: unknown
	// aggregate function, bad clause combination, non-literal extern
	// arg, computed group-by key in plain aggregation, malformed
	// duration, unsupported literal in filter.
	ErrLowering = errors.New("lowering error")

	// ErrType covers string-in-arithmetic, string aggregation for
	// sum/mean, and filter literal/column type mismatches.
	ErrType = errors.New("type error")

	// ErrReference covers missing column names, missing scan
	// sources, and missing extern callees.
	ErrReference = errors.New("reference error")

	// ErrArity covers wrong child counts at interpret time and wrong
	// argument counts to an aggregate function or extern call.
	ErrArity = errors.New("arity error")

	// ErrJoin covers asof-join preconditions: missing time index,
	// time index not first in the on-list.
	ErrJoin = errors.New("join error")

	// ErrUnsupported covers operations the interpreter or emitter
	// knowingly refuses rather than silently handles incorrectly
	// (currently: interpreting or emitting a Window node).
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrap builds an error with enough context to locate the offending
// operator, classified under sentinel via errors.Is.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
