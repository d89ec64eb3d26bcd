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
	"fmt"
	"io"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/rowcodec"
)

// Source reads the pages of one split as batches of rows.
type Source struct {
	split Split
	codec rowcodec.Codec
}

// NewSource creates a source over split's pages.
func NewSource(split Split, codec rowcodec.Codec) (*Source, error) {
	if split.Pages == nil {
		return nil, fmt.Errorf("split %s has no page buffer", split.ID)
	}
	if codec == nil {
		return nil, errors.New("exchange source requires a codec")
	}
	return &Source{split: split, codec: codec}, nil
}

// Next decodes the next page. An empty page yields an empty batch.
func (s *Source) Next(_ context.Context) (*pipeline.Batch, exec.BlockingReason, *exec.Future, error) {
	page, future, err := s.split.Pages.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, exec.NotBlocked, nil, io.EOF
		}
		return nil, exec.NotBlocked, nil, fmt.Errorf("split %s: %w", s.split.ID, err)
	}
	if page == nil {
		return nil, exec.WaitForExchange, future, nil
	}

	batch := pipeline.GetBatch()
	if err := s.codec.DecodePage(page, batch); err != nil {
		pipeline.ReturnBatch(batch)
		return nil, exec.NotBlocked, nil, fmt.Errorf("split %s: %w", s.split.ID, err)
	}
	return batch, exec.NotBlocked, nil, nil
}

// Split returns the split this source reads.
func (s *Source) Split() Split {
	return s.split
}

func (s *Source) Close() error {
	s.split.Pages.Close()
	return nil
}

// EncodePage encodes batch for delivery to a PageBuffer.
func EncodePage(codec rowcodec.Codec, batch *pipeline.Batch) ([]byte, error) {
	return codec.EncodePage(batch)
}

// BatchReader is anything that yields batches until io.EOF.
type BatchReader interface {
	Next(ctx context.Context) (*pipeline.Batch, error)
}

// Publish encodes each batch of reader as one page in pages and finishes
// with NoMorePages. A failure is also delivered to the consumer with Fail.
func Publish(ctx context.Context, codec rowcodec.Codec, reader BatchReader, pages *PageBuffer) error {
	for {
		if err := ctx.Err(); err != nil {
			pages.Fail(err)
			return err
		}
		batch, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			pages.NoMorePages()
			return nil
		}
		if err != nil {
			err = fmt.Errorf("read exchange input: %w", err)
			pages.Fail(err)
			return err
		}
		if batch == nil {
			continue
		}

		page, err := EncodePage(codec, batch)
		pipeline.ReturnBatch(batch)
		if err != nil {
			pages.Fail(err)
			return err
		}
		if err := pages.Enqueue(page); err != nil {
			return err
		}
	}
}
