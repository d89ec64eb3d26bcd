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
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var firstErr error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReaderForFile creates a Reader for filename based on its extension:
//
//   - .json, .jsonl, .ndjson: JSONLinesReader
//   - .csv: CSVReader
//
// Any of them may carry a trailing .gz for gzip compression.
func ReaderForFile(filename string, batchSize int) (Reader, error) {
	name := strings.ToLower(filename)
	gzipped := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")

	var open func(io.ReadCloser, int) (Reader, error)
	switch {
	case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".jsonl"), strings.HasSuffix(name, ".ndjson"):
		open = func(rc io.ReadCloser, n int) (Reader, error) { return NewJSONLinesReader(rc, n) }
	case strings.HasSuffix(name, ".csv"):
		open = func(rc io.ReadCloser, n int) (Reader, error) { return NewCSVReader(rc, n) }
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}

	var rc io.ReadCloser = file
	if gzipped {
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		rc = &multiReadCloser{
			Reader:  gzipReader,
			closers: []io.Closer{gzipReader, file},
		}
	}

	reader, err := open(rc, batchSize)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return reader, nil
}
