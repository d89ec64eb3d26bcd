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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// LocalMergeSource is a bounded batch queue between one producer goroutine
// and a merge. The producer calls Enqueue and then NoMoreData or Fail; the
// merge consumes through Next.
type LocalMergeSource struct {
	mu         sync.Mutex
	queue      []*pipeline.Batch
	capacity   int
	noMoreData bool
	err        error
	closed     bool

	// consumerWait completes when data, end of data or a failure arrives.
	consumerWait *exec.Future
	// producerWait completes when the queue has room again.
	producerWait *exec.Future
}

var _ Source = (*LocalMergeSource)(nil)

// NewLocalMergeSource creates a queue holding up to capacity batches.
func NewLocalMergeSource(capacity int) *LocalMergeSource {
	return &LocalMergeSource{capacity: max(capacity, 1)}
}

// Next returns the oldest queued batch, a WaitForProducer future when the
// queue is empty, or io.EOF after NoMoreData.
func (s *LocalMergeSource) Next(_ context.Context) (*pipeline.Batch, exec.BlockingReason, *exec.Future, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		batch := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		if s.producerWait != nil && len(s.queue) < s.capacity {
			s.producerWait.Complete()
			s.producerWait = nil
		}
		return batch, exec.NotBlocked, nil, nil
	}
	if s.err != nil {
		return nil, exec.NotBlocked, nil, s.err
	}
	if s.noMoreData || s.closed {
		return nil, exec.NotBlocked, nil, io.EOF
	}
	if s.consumerWait == nil {
		s.consumerWait = exec.NewFuture()
	}
	return nil, exec.WaitForProducer, s.consumerWait, nil
}

// Enqueue hands batch to the consumer. When the queue is full the returned
// future completes once there is room; the producer should wait on it
// before enqueueing again.
func (s *LocalMergeSource) Enqueue(batch *pipeline.Batch) (*exec.Future, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		pipeline.ReturnBatch(batch)
		return nil, ErrSourceClosed
	}
	if s.noMoreData || s.err != nil {
		pipeline.ReturnBatch(batch)
		return nil, errors.New("enqueue after end of data")
	}

	s.queue = append(s.queue, batch)
	s.wakeConsumer()

	if len(s.queue) < s.capacity {
		return nil, nil
	}
	if s.producerWait == nil {
		s.producerWait = exec.NewFuture()
	}
	return s.producerWait, nil
}

// NoMoreData tells the consumer that nothing follows the queued batches.
func (s *LocalMergeSource) NoMoreData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noMoreData = true
	s.wakeConsumer()
}

// Fail reports a producer fault. The consumer sees err once the batches
// already queued are consumed.
func (s *LocalMergeSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	s.wakeConsumer()
}

// Close drops queued batches and releases a producer waiting for room.
func (s *LocalMergeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for i, b := range s.queue {
		pipeline.ReturnBatch(b)
		s.queue[i] = nil
	}
	s.queue = nil
	if s.producerWait != nil {
		s.producerWait.Complete()
		s.producerWait = nil
	}
	s.wakeConsumer()
	return nil
}

func (s *LocalMergeSource) wakeConsumer() {
	if s.consumerWait != nil {
		s.consumerWait.Complete()
		s.consumerWait = nil
	}
}

// BatchReader is anything that yields batches until io.EOF, such as a
// filereader.Reader.
type BatchReader interface {
	Next(ctx context.Context) (*pipeline.Batch, error)
}

// Pump copies every batch of reader into source, waiting for room when the
// queue is full, and finishes with NoMoreData. A reader failure is passed to
// the consumer with Fail and also returned. Run it on its own goroutine.
func Pump(ctx context.Context, reader BatchReader, source *LocalMergeSource) error {
	for {
		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			if batch != nil {
				if _, err := source.Enqueue(batch); err != nil {
					return err
				}
			}
			source.NoMoreData()
			return nil
		}
		if err != nil {
			err = fmt.Errorf("read merge input: %w", err)
			source.Fail(err)
			return err
		}
		if batch == nil {
			continue
		}

		wait, err := source.Enqueue(batch)
		if err != nil {
			return err
		}
		if err := wait.Wait(ctx); err != nil {
			source.Fail(err)
			return err
		}
	}
}
