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

package exchange

import (
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/lakemerge/internal/exec"
)

// SplitQueue collects splits as they are assigned. It is safe for concurrent
// use by the assigning side and the consuming operator.
type SplitQueue struct {
	mu      sync.Mutex
	pending []Split
	seen    mapset.Set[string]
	noMore  bool
	waiter  *exec.Future
}

// NewSplitQueue returns an empty, open queue.
func NewSplitQueue() *SplitQueue {
	return &SplitQueue{seen: mapset.NewThreadUnsafeSet[string]()}
}

// Add queues split for the consumer.
func (q *SplitQueue) Add(split Split) error {
	if split.ID == "" {
		return errors.New("split has no id")
	}
	if split.Pages == nil {
		return fmt.Errorf("split %s has no page buffer", split.ID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.noMore {
		return fmt.Errorf("%w: split %s", ErrSplitsClosed, split.ID)
	}
	if !q.seen.Add(split.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateSplit, split.ID)
	}
	q.pending = append(q.pending, split)
	q.wake()
	return nil
}

// NoMoreSplits records that assignment has ended. Calling it again is a no-op.
func (q *SplitQueue) NoMoreSplits() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.noMore = true
	q.wake()
}

// Poll returns the splits added since the last call. While assignment is
// still open it also returns a future that completes on the next Add or on
// NoMoreSplits.
func (q *SplitQueue) Poll() ([]Split, *exec.Future, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	splits := q.pending
	q.pending = nil
	if q.noMore {
		return splits, nil, true
	}
	if q.waiter == nil {
		q.waiter = exec.NewFuture()
	}
	return splits, q.waiter, false
}

// Count returns the number of splits ever added.
func (q *SplitQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen.Cardinality()
}

func (q *SplitQueue) wake() {
	if q.waiter != nil {
		q.waiter.Complete()
		q.waiter = nil
	}
}
