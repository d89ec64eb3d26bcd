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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// rowsReader yields rows in batches of batchSize, then io.EOF.
type rowsReader struct {
	rows      []pipeline.Row
	batchSize int
	err       error
}

func (r *rowsReader) Next(context.Context) (*pipeline.Batch, error) {
	if len(r.rows) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	b := pipeline.GetBatch()
	for len(r.rows) > 0 && b.Len() < r.batchSize {
		row := b.AddRow()
		for k, v := range r.rows[0] {
			row[k] = v
		}
		r.rows = r.rows[1:]
	}
	return b, nil
}

func oneRowBatch(v int64) *pipeline.Batch {
	b := pipeline.GetBatch()
	b.AddRow()[keyTS] = v
	return b
}

func TestLocalMergeSourceQueue(t *testing.T) {
	ctx := context.Background()
	s := NewLocalMergeSource(2)

	batch, reason, consumerWait, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Equal(t, exec.WaitForProducer, reason)
	require.NotNil(t, consumerWait)

	wait, err := s.Enqueue(oneRowBatch(1))
	require.NoError(t, err)
	assert.Nil(t, wait)
	assert.True(t, consumerWait.IsDone(), "enqueue wakes the consumer")

	full, err := s.Enqueue(oneRowBatch(2))
	require.NoError(t, err)
	require.NotNil(t, full, "a full queue pushes back on the producer")
	assert.False(t, full.IsDone())

	batch, _, _, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), batch.Get(0)[keyTS])
	pipeline.ReturnBatch(batch)
	assert.True(t, full.IsDone(), "consuming makes room")

	s.NoMoreData()
	batch, _, _, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), batch.Get(0)[keyTS])
	pipeline.ReturnBatch(batch)

	_, _, _, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	_, err = s.Enqueue(oneRowBatch(3))
	assert.Error(t, err)
}

func TestLocalMergeSourceFail(t *testing.T) {
	ctx := context.Background()
	s := NewLocalMergeSource(1)
	_, _, wait, err := s.Next(ctx)
	require.NoError(t, err)

	boom := errors.New("producer failed")
	s.Fail(boom)
	assert.True(t, wait.IsDone())

	_, _, _, err = s.Next(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestLocalMergeSourceClose(t *testing.T) {
	s := NewLocalMergeSource(1)
	full, err := s.Enqueue(oneRowBatch(1))
	require.NoError(t, err)
	require.NotNil(t, full)

	require.NoError(t, s.Close())
	assert.True(t, full.IsDone(), "close releases a waiting producer")

	_, err = s.Enqueue(oneRowBatch(2))
	assert.ErrorIs(t, err, ErrSourceClosed)
	require.NoError(t, s.Close())
}

func TestPumpStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewLocalMergeSource(1)
	reader := &rowsReader{rows: tsRows(0, 1, 2, 3), batchSize: 1}

	done := make(chan error, 1)
	go func() { done <- Pump(ctx, reader, s) }()

	select {
	case err := <-done:
		t.Fatalf("pump returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	_, _, _, err = s.Next(context.Background())
	require.NoError(t, err, "the batch queued before cancel is still delivered")
	_, _, _, err = s.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPumpReaderFailure(t *testing.T) {
	boom := errors.New("bad line")
	s := NewLocalMergeSource(4)
	reader := &rowsReader{rows: tsRows(0, 1), batchSize: 1, err: boom}

	err := Pump(context.Background(), reader, s)
	assert.ErrorIs(t, err, boom)
}

func TestLocalMergeWithConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	const producers = 5
	const perProducer = 500

	sources := make([]*LocalMergeSource, producers)
	for i := range sources {
		sources[i] = NewLocalMergeSource(DefaultConfig().LocalQueueBatches)
	}

	m, err := NewLocalMerge(tsOptions(t, Ascending), 3, producers, func(n int) ([]Source, error) {
		out := make([]Source, n)
		for i := range out {
			out[i] = sources[i]
		}
		return out, nil
	})
	require.NoError(t, err)
	defer m.Close()

	g, gctx := errgroup.WithContext(ctx)
	for p := range producers {
		g.Go(func() error {
			reader := &rowsReader{batchSize: 7 + p}
			for i := range perProducer {
				reader.rows = append(reader.rows, pipeline.Row{keyTS: int64(i*producers + p), keySrc: int64(p)})
			}
			if err := Pump(gctx, reader, sources[p]); err != nil {
				return fmt.Errorf("producer %d: %w", p, err)
			}
			return nil
		})
	}

	got := tsValues(collectRows(t, m))
	require.NoError(t, g.Wait())

	require.Len(t, got, producers*perProducer)
	for i, v := range got {
		require.Equal(t, int64(i), v)
	}
	st := m.Stats()
	assert.Equal(t, int64(producers*perProducer), st.RowsIn)
	assert.Equal(t, producers, st.SourcesExhausted)
}
