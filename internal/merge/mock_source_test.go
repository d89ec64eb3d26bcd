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
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

var (
	keyTS  = wkk.NewRowKey("ts")
	keySrc = wkk.NewRowKey("src")
	keySeq = wkk.NewRowKey("seq")
)

// step is one response of a mockSource.
type step struct {
	rows []pipeline.Row
	// block returns a pending future. The next call after it completes moves on.
	block bool
	// release completes the block future right away.
	release bool
	// empty returns a batch with no rows.
	empty bool
	// nothing returns a nil batch without a future.
	nothing bool
	err     error
}

// mockSource replays a script of steps and then returns io.EOF.
type mockSource struct {
	name     string
	steps    []step
	pos      int
	calls    int
	closed   int
	closeErr error
	futures  []*exec.Future
	// onBlock, if set, receives every block future that is not released.
	onBlock func(*exec.Future)
}

func (m *mockSource) Next(context.Context) (*pipeline.Batch, exec.BlockingReason, *exec.Future, error) {
	m.calls++
	if m.closed > 0 {
		return nil, exec.NotBlocked, nil, errors.New(m.name + " used after close")
	}
	if m.pos >= len(m.steps) {
		return nil, exec.NotBlocked, nil, io.EOF
	}
	st := m.steps[m.pos]
	m.pos++

	switch {
	case st.err != nil:
		return nil, exec.NotBlocked, nil, st.err
	case st.block:
		f := exec.NewFuture()
		m.futures = append(m.futures, f)
		if st.release {
			f.Complete()
		} else if m.onBlock != nil {
			m.onBlock(f)
		}
		return nil, exec.WaitForProducer, f, nil
	case st.empty:
		return pipeline.GetBatch(), exec.NotBlocked, nil, nil
	case st.nothing:
		return nil, exec.NotBlocked, nil, nil
	}

	batch := pipeline.GetBatch()
	for _, r := range st.rows {
		row := batch.AddRow()
		for k, v := range r {
			row[k] = v
		}
	}
	return batch, exec.NotBlocked, nil, nil
}

func (m *mockSource) Close() error {
	m.closed++
	return m.closeErr
}

// unblock completes every future the source has handed out.
func (m *mockSource) unblock() {
	for _, f := range m.futures {
		f.Complete()
	}
}

// tsRows builds one row per value, tagged with the source index.
func tsRows(src int, values ...any) []pipeline.Row {
	rows := make([]pipeline.Row, len(values))
	for i, v := range values {
		rows[i] = pipeline.Row{keyTS: v, keySrc: int64(src)}
	}
	return rows
}

// sourceOf returns a source yielding values in one batch.
func sourceOf(src int, values ...any) *mockSource {
	if len(values) == 0 {
		return &mockSource{}
	}
	return &mockSource{steps: []step{{rows: tsRows(src, values...)}}}
}

func tsSchema(t *testing.T) *rowstore.Schema {
	t.Helper()
	s, err := rowstore.NewSchema(
		rowstore.Column{Name: keyTS, DataType: rowstore.DataTypeInt64},
		rowstore.Column{Name: keySrc, DataType: rowstore.DataTypeInt64},
	)
	require.NoError(t, err)
	return s
}

func tsOptions(t *testing.T, order SortOrder) Options {
	t.Helper()
	return Options{
		Schema: tsSchema(t),
		Keys:   []SortKey{{Column: keyTS, Order: order}},
	}
}

func newLocal(t *testing.T, opts Options, sources ...*mockSource) *LocalMerge {
	t.Helper()
	srcs := make([]Source, len(sources))
	for i, s := range sources {
		srcs[i] = s
	}
	m, err := NewLocalMergeFromSources(opts, 1, srcs...)
	require.NoError(t, err)
	return m
}

// collectRows runs op to the end with exec.Drive and returns a copy of
// every output row.
func collectRows(t *testing.T, op exec.Operator) []pipeline.Row {
	t.Helper()
	var rows []pipeline.Row
	err := exec.Drive(context.Background(), op, func(_ context.Context, b *pipeline.Batch) error {
		for i := 0; i < b.Len(); i++ {
			rows = append(rows, pipeline.CopyRow(b.Get(i)))
		}
		return nil
	})
	require.NoError(t, err)
	return rows
}

func tsValues(rows []pipeline.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[keyTS]
	}
	return out
}

func int64s(values ...int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
