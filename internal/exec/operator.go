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

package exec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// Operator is the contract between a source operator and its driver.
type Operator interface {
	// IsBlocked reports whether the operator can make progress. If it cannot,
	// the returned future completes once a retry may succeed.
	IsBlocked(ctx context.Context) (BlockingReason, *Future)

	// GetOutput returns the next batch. A nil batch with a nil error means no
	// output could be produced now; call IsBlocked and retry. io.EOF marks the
	// end of the stream. The caller owns the returned batch.
	GetOutput(ctx context.Context) (*pipeline.Batch, error)

	// IsFinished reports whether the operator will produce no more output.
	IsFinished() bool

	String() string

	// Close releases everything the operator holds, including its inputs.
	Close() error
}

// Sink receives each output batch. The batch is returned to the pool after the
// sink returns, so a sink must copy any row it keeps.
type Sink func(ctx context.Context, batch *pipeline.Batch) error

// Drive runs op on the calling goroutine until it finishes, fails or ctx is
// cancelled. It is the simplest possible driver: one operator, one thread,
// waiting on the blocking future when there is nothing else to do.
func Drive(ctx context.Context, op Operator, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reason, future := op.IsBlocked(ctx); reason != NotBlocked {
			if err := future.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		batch, err := op.GetOutput(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if batch == nil {
			continue
		}

		err = sink(ctx, batch)
		pipeline.ReturnBatch(batch)
		if err != nil {
			return err
		}
	}
}
