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
	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/extern"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/scalar"
)

// CallExtern dispatches callee with args through externs and returns
// a table: a table-returning function yields its table directly; a
// scalar-returning function yields a single-row, single-column table
// named "value". Both the
// interpreter and the emitted program call this same function, so
// ExternCall's behavior is identical whichever path runs it.
func CallExtern(externs *extern.Registry, callee string, args []scalar.Value) (*column.Table, error) {
	if externs == nil {
		return nil, ibexerr.Wrap(ibexerr.ErrReference, "no extern registry available to call %s", callee)
	}
	fn, err := externs.MustFind(callee)
	if err != nil {
		return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	switch fn.Kind {
	case extern.TableReturn:
		t, err := fn.Table(args)
		if err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s: %s", callee, err)
		}
		return t, nil
	case extern.ScalarReturn:
		v, err := fn.Scalar(args)
		if err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s: %s", callee, err)
		}
		return ScalarTable(v), nil
	default:
		return nil, ibexerr.Wrap(ibexerr.ErrType, "extern function %s does not return a table", callee)
	}
}

// ScalarTable wraps a scalar result in a single-row, single-column
// table named "value".
func ScalarTable(v scalar.Value) *column.Table {
	t := column.New()
	lit := literalFromScalar(v)
	dst := newColumn(columnKindFromLiteralKind(lit.Kind))
	appendLiteral(dst, lit)
	t.AddColumn("value", dst)
	return t
}
