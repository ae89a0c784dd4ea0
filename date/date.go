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

// Package date provides the two opaque, totally-ordered time scalars
// of the Ibex type system: Date (days since the Unix epoch) and
// Timestamp (nanoseconds since the Unix epoch). Neither carries a
// timezone, and neither decomposes into calendar components inside
// the query core; plain integer ordering is all the operators need.
// Date arithmetic is deliberately out of scope. Conversion to and
// from time.Time exists only for table sources and display.
package date

import "time"

const secondsPerDay = 86400

// Date is a calendar day expressed as a day count since the Unix
// epoch (1970-01-01).
type Date int32

// Timestamp is a nanosecond instant since the Unix epoch.
type Timestamp int64

// DateOf truncates t to the Date (day count) it falls on, in UTC.
func DateOf(t time.Time) Date {
	secs := t.UTC().Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return Date(days)
}

// TimestampOf converts t to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Time expands d back out to midnight UTC on that day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// Time expands ts back out to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(0, int64(ts)).UTC()
}

func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

func (ts Timestamp) String() string {
	return ts.Time().Format("2006-01-02 15:04:05.999999999 -0700 MST")
}
