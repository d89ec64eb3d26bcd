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
	"sync"
)

// Future is a one-shot wait handle. The side that owns the awaited condition
// calls Complete; any number of waiters can observe it.
type Future struct {
	done chan struct{}
	once sync.Once
}

// NewFuture returns a pending future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

var completed = func() *Future {
	f := NewFuture()
	f.Complete()
	return f
}()

// CompletedFuture returns a future that has already completed. It is used to
// ask the driver for an immediate re-poll.
func CompletedFuture() *Future {
	return completed
}

// Complete marks the future done. Calling it more than once is a no-op.
func (f *Future) Complete() {
	f.once.Do(func() { close(f.done) })
}

// Done returns a channel that is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed. A nil future counts as done.
func (f *Future) IsDone() bool {
	if f == nil {
		return true
	}
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	if f == nil {
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
