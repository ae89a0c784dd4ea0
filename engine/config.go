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

package engine

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config holds the engine's tunables. The zero value is usable;
// DefaultConfig fills in the benchmark iteration counts.
type Config struct {
	// Print selects whether emitted programs print the result's column
	// names and row count instead of just its row count; they do not
	// print cell values.
	Print bool `json:"print,omitempty"`

	// Bench enables benchmark mode on emitted programs.
	Bench bool `json:"bench,omitempty"`

	// BenchWarmup and BenchTimed are the warmup and timed iteration
	// counts used by Bench and by benchmark-mode emission.
	BenchWarmup int `json:"benchWarmup,omitempty"`
	BenchTimed  int `json:"benchTimed,omitempty"`
}

// DefaultConfig returns the configuration used when no config file is
// given.
func DefaultConfig() Config {
	return Config{
		BenchWarmup: 3,
		BenchTimed:  10,
	}
}

// LoadConfig reads a YAML (or JSON) config file. Fields not present
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(buf)
}

// ParseConfig parses YAML (or JSON) config bytes.
func ParseConfig(buf []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: bad config: %s", err)
	}
	if cfg.BenchWarmup < 0 || cfg.BenchTimed < 0 {
		return Config{}, fmt.Errorf("engine: benchmark iteration counts must be non-negative")
	}
	return cfg, nil
}
