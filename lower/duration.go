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

package lower

import (
	"strconv"
	"time"

	"github.com/bobjansen/ibex/ibexerr"
)

// durationUnits maps the accepted unit suffixes to their nanosecond
// multiplier. ParseDuration looks up the whole suffix, so "mo" and
// "m" never compete.
var durationUnits = map[string]int64{
	"ns": 1,
	"us": 1e3,
	"ms": 1e6,
	"s":  1e9,
	"m":  60 * 1e9,
	"h":  60 * 60 * 1e9,
	"d":  24 * 60 * 60 * 1e9,
	"w":  7 * 24 * 60 * 60 * 1e9,
	"mo": 30 * 24 * 60 * 60 * 1e9,
	"y":  365 * 24 * 60 * 60 * 1e9,
}

// ParseDuration parses "digits followed by a unit suffix" into a nanosecond time.Duration. It is a pure function: the
// same input always yields the same result.
func ParseDuration(s string) (time.Duration, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, ibexerr.Wrap(ibexerr.ErrLowering, "malformed duration %q: missing digits", s)
	}
	digits, suffix := s[:i], s[i:]
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ibexerr.Wrap(ibexerr.ErrLowering, "malformed duration %q: %s", s, err)
	}
	mult, ok := durationUnits[suffix]
	if !ok {
		return 0, ibexerr.Wrap(ibexerr.ErrLowering, "malformed duration %q: unknown unit %q", s, suffix)
	}
	return time.Duration(n * mult), nil
}
