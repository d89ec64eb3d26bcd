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

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/lakemerge/config"
	"github.com/cardinalhq/lakemerge/internal/merge"
	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

func testConfig() *config.Config {
	return &config.Config{
		Merge:  merge.DefaultConfig(),
		Reader: config.ReaderConfig{BatchSize: 2},
	}
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestRunMerge(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.jsonl", "{\"ts\": 1, \"src\": \"a\"}\n{\"ts\": 4, \"src\": \"a\"}\n{\"ts\": 7, \"src\": \"a\"}\n"),
		writeFile(t, dir, "b.csv", "ts,src\n2,b\n5,b\n"),
		writeFile(t, dir, "c.jsonl", "{\"ts\": 3, \"src\": \"c\"}\n{\"ts\": 6, \"src\": \"c\"}\n"),
	}
	want := strings.Join([]string{
		`{"src":"a","ts":1}`,
		`{"src":"b","ts":2}`,
		`{"src":"c","ts":3}`,
		`{"src":"a","ts":4}`,
		`{"src":"b","ts":5}`,
		`{"src":"c","ts":6}`,
		`{"src":"a","ts":7}`,
	}, "\n") + "\n"

	for _, exchangeMode := range []bool{false, true} {
		name := "local"
		if exchangeMode {
			name = "exchange"
		}
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			stats, err := runMerge(context.Background(), testConfig(), mergeRun{
				Files:      files,
				Keys:       []string{"ts"},
				Columns:    []string{"ts:int64", "src:string"},
				Exchange:   exchangeMode,
				OperatorID: 7,
			}, &out)
			require.NoError(t, err)
			assert.Equal(t, want, out.String())
			assert.Equal(t, int64(7), stats.RowsIn)
			assert.Equal(t, int64(7), stats.RowsOut)
			assert.Equal(t, 3, stats.SourcesExhausted)
			if exchangeMode {
				assert.Equal(t, 3, stats.SplitsConsumed)
			}
		})
	}
}

func TestRunMergeCSVStringKey(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.csv", "id,v\n100,x\n200,y\n"),
		writeFile(t, dir, "b.csv", "id,v\n007,w\n150,z\n"),
	}
	want := strings.Join([]string{
		`{"id":"007","v":"w"}`,
		`{"id":"100","v":"x"}`,
		`{"id":"150","v":"z"}`,
		`{"id":"200","v":"y"}`,
	}, "\n") + "\n"

	for _, exchangeMode := range []bool{false, true} {
		var out bytes.Buffer
		_, err := runMerge(context.Background(), testConfig(), mergeRun{
			Files:    files,
			Keys:     []string{"id"},
			Columns:  []string{"id:string"},
			Exchange: exchangeMode,
		}, &out)
		require.NoError(t, err)
		assert.Equal(t, want, out.String(), "exchange=%v", exchangeMode)
	}
}

func TestRunMergeDescending(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.jsonl", "{\"ts\": 9}\n{\"ts\": 3}\n"),
		writeFile(t, dir, "b.jsonl", "{\"ts\": 5}\n{\"ts\": null}\n"),
	}

	var out bytes.Buffer
	_, err := runMerge(context.Background(), testConfig(), mergeRun{
		Files:   files,
		Keys:    []string{"ts DESC NULLS LAST"},
		Columns: []string{"ts:int64"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "{\"ts\":9}\n{\"ts\":5}\n{\"ts\":3}\n{\"ts\":null}\n", out.String())
}

func TestRunMergeErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "a.jsonl", "{\"ts\": 1}\n")
	bad := writeFile(t, dir, "bad.jsonl", "{\"ts\": 1}\n{\"ts\": \"later\"}\n")

	t.Run("no columns", func(t *testing.T) {
		_, err := runMerge(context.Background(), testConfig(), mergeRun{Files: []string{good}, Keys: []string{"ts"}}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("unknown key column", func(t *testing.T) {
		_, err := runMerge(context.Background(), testConfig(), mergeRun{
			Files: []string{good}, Keys: []string{"other"}, Columns: []string{"ts:int64"},
		}, &bytes.Buffer{})
		assert.ErrorIs(t, err, merge.ErrUnknownSortColumn)
	})

	t.Run("no keys", func(t *testing.T) {
		_, err := runMerge(context.Background(), testConfig(), mergeRun{
			Files: []string{good}, Columns: []string{"ts:int64"},
		}, &bytes.Buffer{})
		assert.ErrorIs(t, err, merge.ErrNoSortKeys)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runMerge(context.Background(), testConfig(), mergeRun{
			Files: []string{filepath.Join(dir, "nope.jsonl")}, Keys: []string{"ts"}, Columns: []string{"ts:int64"},
		}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	for _, exchangeMode := range []bool{false, true} {
		t.Run("row type mismatch", func(t *testing.T) {
			_, err := runMerge(context.Background(), testConfig(), mergeRun{
				Files: []string{good, bad}, Keys: []string{"ts"}, Columns: []string{"ts:int64"}, Exchange: exchangeMode,
			}, &bytes.Buffer{})
			assert.ErrorIs(t, err, rowstore.ErrSchemaMismatch)
		})
	}
}

func TestParseSchema(t *testing.T) {
	schema, err := parseSchema([]string{"ts:int64", " name : string "}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, schema.Len())
	assert.True(t, schema.Strict)
	assert.Equal(t, rowstore.DataTypeString, schema.Columns[1].DataType)

	for _, bad := range [][]string{{"ts"}, {":int64"}, {"ts:decimal"}, {"ts:int64", "ts:string"}} {
		_, err := parseSchema(bad, false)
		assert.Error(t, err, "%v", bad)
	}
}
