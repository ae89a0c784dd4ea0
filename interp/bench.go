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

package interp

import (
	"log"
	"time"

	"github.com/bobjansen/ibex/ir"
)

// BenchResult reports a Bench run's timing, mirroring the warmup/
// timed-loop shape the emitter generates for the compiled path, so
// interpret/emit equivalence can be checked under repeated execution
// rather than a single run.
type BenchResult struct {
	Warmup  int
	Timed   int
	Elapsed time.Duration
}

// Bench runs root warmup times (discarded) then timed times, timing
// only the query itself, not any data load that happened before Run
// was first called. logger, if non-nil, receives one
// line per phase.
func (ip *Interp) Bench(root *ir.Node, warmup, timed int, logger *log.Logger) (BenchResult, error) {
	for i := 0; i < warmup; i++ {
		if _, err := ip.Run(root); err != nil {
			return BenchResult{}, err
		}
	}
	if logger != nil {
		logger.Printf("interp bench: warmup complete (%d iterations)", warmup)
	}
	start := time.Now()
	for i := 0; i < timed; i++ {
		if _, err := ip.Run(root); err != nil {
			return BenchResult{}, err
		}
	}
	elapsed := time.Since(start)
	if logger != nil {
		logger.Printf("interp bench: %d iterations in %s", timed, elapsed)
	}
	return BenchResult{Warmup: warmup, Timed: timed, Elapsed: elapsed}, nil
}
