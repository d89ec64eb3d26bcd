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
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
	"github.com/cardinalhq/lakemerge/internal/rowcodec"
)

var keyV = wkk.NewRowKey("v")

func batchOf(values ...int64) *pipeline.Batch {
	b := pipeline.GetBatch()
	for _, v := range values {
		b.AddRow()[keyV] = v
	}
	return b
}

func values(b *pipeline.Batch) []int64 {
	out := make([]int64, 0, b.Len())
	for i := 0; i < b.Len(); i++ {
		out = append(out, b.Get(i)[keyV].(int64))
	}
	return out
}

// sliceReader yields the given batches and then io.EOF.
type sliceReader struct {
	batches []*pipeline.Batch
	err     error
}

func (r *sliceReader) Next(context.Context) (*pipeline.Batch, error) {
	if len(r.batches) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	b := r.batches[0]
	r.batches = r.batches[1:]
	return b, nil
}

func newCodec(t *testing.T) rowcodec.Codec {
	t.Helper()
	c, err := rowcodec.NewCBOR()
	require.NoError(t, err)
	return c
}

func TestSourceDecodesPagesInOrder(t *testing.T) {
	ctx := context.Background()
	codec := newCodec(t)
	split := NewSplit("remote")

	src, err := NewSource(split, codec)
	require.NoError(t, err)

	batch, reason, future, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Equal(t, exec.WaitForExchange, reason)
	require.NotNil(t, future)
	assert.False(t, future.IsDone())

	in := batchOf(1, 2, 3)
	page, err := EncodePage(codec, in)
	pipeline.ReturnBatch(in)
	require.NoError(t, err)
	require.NoError(t, split.Pages.Enqueue(page))
	assert.True(t, future.IsDone())
	assert.Equal(t, int64(len(page)), split.Pages.BufferedBytes())

	batch, reason, _, err = src.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, exec.NotBlocked, reason)
	assert.Equal(t, []int64{1, 2, 3}, values(batch))
	pipeline.ReturnBatch(batch)
	assert.Equal(t, int64(0), split.Pages.BufferedBytes())

	split.Pages.NoMorePages()
	_, _, _, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, src.Close())
}

func TestSourceFailure(t *testing.T) {
	ctx := context.Background()
	split := NewSplit("remote")
	src, err := NewSource(split, newCodec(t))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	split.Pages.Fail(boom)
	_, _, _, err = src.Next(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), split.ID)
}

func TestSourceMalformedPage(t *testing.T) {
	ctx := context.Background()
	split := NewSplit("remote")
	src, err := NewSource(split, newCodec(t))
	require.NoError(t, err)

	require.NoError(t, split.Pages.Enqueue([]byte{0xff}))
	_, _, _, err = src.Next(ctx)
	assert.Error(t, err)
}

func TestNewSourceValidates(t *testing.T) {
	_, err := NewSource(Split{ID: "x"}, newCodec(t))
	assert.Error(t, err)
	_, err = NewSource(NewSplit("r"), nil)
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	codec := newCodec(t)
	split := NewSplit("remote")
	reader := &sliceReader{batches: []*pipeline.Batch{batchOf(1, 2), batchOf(3)}}

	require.NoError(t, Publish(ctx, codec, reader, split.Pages))

	src, err := NewSource(split, codec)
	require.NoError(t, err)

	var got []int64
	for {
		batch, _, _, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, batch)
		got = append(got, values(batch)...)
		pipeline.ReturnBatch(batch)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestPublishReaderFailure(t *testing.T) {
	ctx := context.Background()
	split := NewSplit("remote")
	boom := errors.New("bad input")
	reader := &sliceReader{batches: []*pipeline.Batch{batchOf(1)}, err: boom}

	err := Publish(ctx, newCodec(t), reader, split.Pages)
	require.ErrorIs(t, err, boom)

	// The page delivered before the failure is still readable.
	page, _, err := split.Pages.Next()
	require.NoError(t, err)
	assert.NotEmpty(t, page)

	_, _, err = split.Pages.Next()
	assert.ErrorIs(t, err, boom)
}

func TestPageBufferClose(t *testing.T) {
	b := NewPageBuffer()
	require.NoError(t, b.Enqueue([]byte{1}))
	_, future, err := NewPageBuffer().Next()
	require.NoError(t, err)
	require.NotNil(t, future)

	b.Close()
	assert.Equal(t, int64(0), b.BufferedBytes())
	_, _, err = b.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, b.Enqueue([]byte{2}), "pages after close are dropped")
	_, _, err = b.Next()
	assert.ErrorIs(t, err, io.EOF)

	done := NewPageBuffer()
	done.NoMorePages()
	assert.Error(t, done.Enqueue([]byte{3}))
}
