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

package rowstore

import (
	"fmt"
	"strings"

	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// DataType represents the type of data in a column.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeString
	DataTypeInt64
	DataTypeFloat64
	DataTypeBool
	DataTypeBytes
)

func (dt DataType) String() string {
	switch dt {
	case DataTypeString:
		return "string"
	case DataTypeInt64:
		return "int64"
	case DataTypeFloat64:
		return "float64"
	case DataTypeBool:
		return "bool"
	case DataTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ParseDataType parses the names returned by DataType.String.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string":
		return DataTypeString, nil
	case "int64", "int", "bigint":
		return DataTypeInt64, nil
	case "float64", "double":
		return DataTypeFloat64, nil
	case "bool", "boolean":
		return DataTypeBool, nil
	case "bytes":
		return DataTypeBytes, nil
	default:
		return DataTypeUnknown, fmt.Errorf("unknown data type %q", s)
	}
}

// Column describes a single column in the schema.
type Column struct {
	Name     wkk.RowKey
	DataType DataType
}

// Schema is the ordered set of columns every stored row is checked against.
// Declared columns must be present in each row (nil means NULL). Undeclared
// columns are carried through untouched unless Strict is set.
type Schema struct {
	Columns []Column
	Strict  bool
	index   map[wkk.RowKey]int
}

// NewSchema builds a schema from the given columns. Column names must be unique.
func NewSchema(columns ...Column) (*Schema, error) {
	s := &Schema{
		Columns: columns,
		index:   make(map[wkk.RowKey]int, len(columns)),
	}
	for i, c := range columns {
		if c.DataType == DataTypeUnknown {
			return nil, fmt.Errorf("column %q has no data type", wkk.Name(c.Name))
		}
		if _, dup := s.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", wkk.Name(c.Name))
		}
		s.index[c.Name] = i
	}
	return s, nil
}

// ColumnIndex returns the position of the named column, or -1.
func (s *Schema) ColumnIndex(name wkk.RowKey) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of declared columns.
func (s *Schema) Len() int {
	return len(s.Columns)
}
