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

package pipeline

import (
	"maps"

	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// Row represents a single data row as a map of RowKey to any value.
// A key mapped to nil is a SQL NULL; a key that is absent is a missing column.
type Row map[wkk.RowKey]any

// CopyRow creates a copy of a row. Values are copied shallowly.
func CopyRow(in Row) Row {
	out := make(Row, len(in))
	maps.Copy(out, in)
	return out
}

// ToStringMap converts a Row to map[string]any for encoders that need string keys.
func ToStringMap(row Row) map[string]any {
	result := make(map[string]any, len(row))
	for key, value := range row {
		result[string(key.Value())] = value
	}
	return result
}

// FromStringMap fills into with the entries of m, interning the keys.
// into is cleared first.
func FromStringMap(m map[string]any, into Row) {
	clear(into)
	for k, v := range m {
		into[wkk.NewRowKey(k)] = v
	}
}
