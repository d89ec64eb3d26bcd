// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package merge

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

// DefaultOutputBatchBytes bounds the estimated size of one output batch.
const DefaultOutputBatchBytes = 2 << 20

// Config is the "merge" configuration section. Sizes accept human readable
// values such as "2MiB" or "512kB".
type Config struct {
	OutputBatchSize   string   `mapstructure:"output_batch_size"`
	MemoryLimit       string   `mapstructure:"memory_limit"`
	LocalQueueBatches int      `mapstructure:"local_queue_batches"`
	SortKeys          []string `mapstructure:"sort_keys"`
}

// DefaultConfig returns default settings.
func DefaultConfig() Config {
	return Config{
		OutputBatchSize:   "2MiB",
		MemoryLimit:       "",
		LocalQueueBatches: 4,
	}
}

// Validate checks that every field parses.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseSize(c.OutputBatchSize, DefaultOutputBatchBytes); err != nil {
		errs = append(errs, fmt.Errorf("output_batch_size: %w", err))
	}
	if _, err := parseSize(c.MemoryLimit, 0); err != nil {
		errs = append(errs, fmt.Errorf("memory_limit: %w", err))
	}
	if c.LocalQueueBatches < 1 {
		errs = append(errs, fmt.Errorf("local_queue_batches must be at least 1, got %d", c.LocalQueueBatches))
	}
	if _, err := ParseSortKeys(c.SortKeys); err != nil {
		errs = append(errs, fmt.Errorf("sort_keys: %w", err))
	}
	return errors.Join(errs...)
}

// Options builds operator options for rows of the given schema. When keys is
// empty the configured sort keys are used.
func (c Config) Options(schema *rowstore.Schema, keys []SortKey) (Options, error) {
	if err := c.Validate(); err != nil {
		return Options{}, err
	}
	if len(keys) == 0 {
		keys, _ = ParseSortKeys(c.SortKeys)
	}
	batchBytes, _ := parseSize(c.OutputBatchSize, DefaultOutputBatchBytes)
	limit, _ := parseSize(c.MemoryLimit, 0)
	return Options{
		Schema:           schema,
		Keys:             keys,
		OutputBatchBytes: batchBytes,
		MemoryLimitBytes: limit,
	}, nil
}

// Options holds everything a merge operator needs at construction.
type Options struct {
	// Schema every source's rows must match.
	Schema *rowstore.Schema
	// Keys defines the merge order. At least one is required.
	Keys []SortKey
	// OutputBatchBytes bounds each output batch. Zero means DefaultOutputBatchBytes.
	OutputBatchBytes int64
	// MemoryLimitBytes caps rows buffered in the row store. Zero means unlimited.
	MemoryLimitBytes int64
}

func parseSize(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return int64(n), nil
}
