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

// Package filereader reads rows from files as pooled batches. Readers feed
// local merge producers; each file must already be sorted by the merge keys.
package filereader

import (
	"context"

	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// MaxLineSizeBytes bounds a single JSON line.
const MaxLineSizeBytes = 1024 * 1024

// DefaultBatchSize is the number of rows per batch when none is given.
const DefaultBatchSize = 1000

// Reader is the core interface for reading rows from any file format.
type Reader interface {
	// Next returns the next batch of rows. The caller owns the batch and
	// must return it with pipeline.ReturnBatch. Returns io.EOF when there
	// are no more rows.
	Next(ctx context.Context) (*pipeline.Batch, error)

	// Close releases any resources held by the reader.
	Close() error

	// TotalRowsReturned returns the number of rows returned by Next so far.
	TotalRowsReturned() int64
}
