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
	"github.com/bobjansen/ibex/ibexerr"
)

// AsTimeframe promotes t to a TimeFrame by designating timeColumn as
// its time index. No clause constructs the node yet, but it is fully
// interpretable and emittable so a TimeFrame can be built directly
// when a table source carries a timestamp column under another name.
func AsTimeframe(t *column.Table, timeColumn string) (*column.Table, error) {
	out := t.Clone()
	if err := out.SetTimeIndex(timeColumn); err != nil {
		return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	return out, nil
}
