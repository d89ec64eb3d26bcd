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

package filereader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// JSONLinesReader reads rows from a JSON lines stream, one object per line.
// Numbers that are integers become int64; other numbers become float64.
type JSONLinesReader struct {
	scanner   *bufio.Scanner
	rowIndex  int
	closed    bool
	totalRows int64
	closer    io.Closer
	batchSize int
}

var _ Reader = (*JSONLinesReader)(nil)

// NewJSONLinesReader creates a new JSONLinesReader for the given io.ReadCloser.
// The reader takes ownership of the closer and will close it when Close is called.
func NewJSONLinesReader(reader io.ReadCloser, batchSize int) (*JSONLinesReader, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSizeBytes)

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &JSONLinesReader{
		scanner:   scanner,
		closer:    reader,
		batchSize: batchSize,
	}, nil
}

func (r *JSONLinesReader) Next(ctx context.Context) (*pipeline.Batch, error) {
	if r.closed {
		return nil, io.EOF
	}

	batch := pipeline.GetBatch()

	for batch.Len() < r.batchSize {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				pipeline.ReturnBatch(batch)
				return nil, fmt.Errorf("scanner error reading at line %d: %w", r.rowIndex+1, err)
			}
			break
		}

		line := bytes.TrimSpace(r.scanner.Bytes())
		r.rowIndex++

		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var jsonRow map[string]any
		if err := dec.Decode(&jsonRow); err != nil {
			pipeline.ReturnBatch(batch)
			return nil, fmt.Errorf("JSON parse error at line %d: %w", r.rowIndex, err)
		}
		if jsonRow == nil {
			rowsDroppedCounter.Add(ctx, 1, otelmetric.WithAttributes(
				attribute.String("reader", "JSONLinesReader"),
				attribute.String("reason", "null_line"),
			))
			continue
		}

		batchRow := batch.AddRow()
		for k, v := range jsonRow {
			batchRow[wkk.NewRowKey(k)] = convertNumber(v)
		}
	}

	if batch.Len() == 0 {
		r.closed = true
		pipeline.ReturnBatch(batch)
		return nil, io.EOF
	}

	r.totalRows += int64(batch.Len())
	rowsInCounter.Add(ctx, int64(batch.Len()), otelmetric.WithAttributes(
		attribute.String("reader", "JSONLinesReader"),
	))
	return batch, nil
}

// convertNumber turns json.Number into int64 or float64. Integer literals
// that overflow int64 stay as their decimal text. Other values are returned
// unchanged.
func convertNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return n.String()
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// Close closes the reader and the underlying io.ReadCloser.
func (r *JSONLinesReader) Close() error {
	r.closed = true

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.scanner = nil
	return err
}

// TotalRowsReturned returns the total number of rows that have been successfully returned via Next().
func (r *JSONLinesReader) TotalRowsReturned() int64 {
	return r.totalRows
}
