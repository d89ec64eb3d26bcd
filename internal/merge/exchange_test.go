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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/lakemerge/internal/exchange"
	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/rowcodec"
)

func encodeRows(t *testing.T, codec rowcodec.Codec, rows []pipeline.Row) []byte {
	t.Helper()
	b := pipeline.GetBatch()
	defer pipeline.ReturnBatch(b)
	for _, r := range rows {
		row := b.AddRow()
		for k, v := range r {
			row[k] = v
		}
	}
	page, err := exchange.EncodePage(codec, b)
	require.NoError(t, err)
	return page
}

func TestMergeExchangeWaitsForSplits(t *testing.T) {
	ctx := context.Background()
	codec, err := rowcodec.NewCBOR()
	require.NoError(t, err)

	queue := exchange.NewSplitQueue()
	m, err := NewMergeExchange(tsOptions(t, Ascending), 7, queue, nil)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "MergeExchange(7)", m.String())

	reason, future := m.IsBlocked(ctx)
	assert.Equal(t, exec.WaitForSplit, reason)
	require.NotNil(t, future)
	assert.False(t, future.IsDone())

	first := exchange.NewSplit("task-a")
	require.NoError(t, first.Pages.Enqueue(encodeRows(t, codec, tsRows(0, 5, 6))))
	first.Pages.NoMorePages()
	require.NoError(t, queue.Add(first))
	assert.True(t, future.IsDone())

	// One split has arrived, but a later one may still hold the first row.
	reason, future = m.IsBlocked(ctx)
	assert.Equal(t, exec.WaitForSplit, reason)
	assert.Equal(t, 1, m.NumSplits())
	batch, err := m.GetOutput(ctx)
	require.NoError(t, err)
	assert.Nil(t, batch)

	second := exchange.NewSplit("task-b")
	require.NoError(t, queue.Add(second))
	queue.NoMoreSplits()
	assert.True(t, future.IsDone())

	// All splits are known; the second has no pages yet.
	reason, future = m.IsBlocked(ctx)
	assert.Equal(t, exec.WaitForExchange, reason)
	assert.Equal(t, 2, m.NumSplits())

	require.NoError(t, second.Pages.Enqueue(encodeRows(t, codec, tsRows(1, 1, 7))))
	second.Pages.NoMorePages()
	assert.True(t, future.IsDone())

	assert.Equal(t, int64s(1, 5, 6, 7), tsValues(collectRows(t, m)))
	assert.Equal(t, 2, m.Stats().SplitsConsumed)
	assert.Equal(t, 2, m.Stats().SourcesExhausted)
}

func TestMergeExchangeNoSplits(t *testing.T) {
	queue := exchange.NewSplitQueue()
	queue.NoMoreSplits()
	m, err := NewMergeExchange(tsOptions(t, Ascending), 1, queue, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Empty(t, collectRows(t, m))
	assert.Equal(t, 0, m.NumSplits())
	assert.True(t, m.IsFinished())
}

func TestMergeExchangeFactoryError(t *testing.T) {
	queue := exchange.NewSplitQueue()
	require.NoError(t, queue.Add(exchange.NewSplit("t")))
	boom := fmt.Errorf("cannot open split")
	m, err := NewMergeExchange(tsOptions(t, Ascending), 1, queue, func(exchange.Split) (Source, error) {
		return nil, boom
	})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.GetOutput(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, m.State())
}

func TestMergeExchangeConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	codec, err := rowcodec.NewCBOR()
	require.NoError(t, err)

	const splits = 6
	const perSplit = 200
	queue := exchange.NewSplitQueue()
	m, err := NewMergeExchange(tsOptions(t, Ascending), 2, queue, nil)
	require.NoError(t, err)
	defer m.Close()

	g, gctx := errgroup.WithContext(ctx)
	for s := range splits {
		split := exchange.NewSplit(fmt.Sprintf("task-%d", s))
		require.NoError(t, queue.Add(split))
		g.Go(func() error {
			reader := &rowsReader{batchSize: 17}
			for i := range perSplit {
				reader.rows = append(reader.rows, pipeline.Row{keyTS: int64(i*splits + s), keySrc: int64(s)})
			}
			return exchange.Publish(gctx, codec, reader, split.Pages)
		})
	}
	queue.NoMoreSplits()

	got := tsValues(collectRows(t, m))
	require.NoError(t, g.Wait())

	require.Len(t, got, splits*perSplit)
	for i, v := range got {
		require.Equal(t, int64(i), v)
	}
	assert.Equal(t, splits, m.NumSplits())
}

func TestNewMergeExchangeRequiresPoller(t *testing.T) {
	_, err := NewMergeExchange(tsOptions(t, Ascending), 1, nil, nil)
	assert.Error(t, err)
}
