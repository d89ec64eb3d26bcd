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
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strings"
)

// CompareFlags controls how Compare orders two values of one column.
// Null placement does not depend on direction: NullsFirst puts NULL before
// every non-null value whether the column is ascending or descending.
type CompareFlags struct {
	NullsFirst bool
	Ascending  bool
}

// Compare compares the values of column in the rows behind a and b.
// It returns a negative number if a ranks first, positive if b does, and 0
// when they tie. Both handles must be live.
func (c *Container) Compare(a, b RowHandle, column int, flags CompareFlags) int {
	col := c.schema.Columns[column]
	va := c.mustLookup(a).row[col.Name]
	vb := c.mustLookup(b).row[col.Name]

	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		if flags.NullsFirst {
			return -1
		}
		return 1
	case vb == nil:
		if flags.NullsFirst {
			return 1
		}
		return -1
	}

	result := compareValues(col.DataType, va, vb)
	if !flags.Ascending {
		return -result
	}
	return result
}

// compareValues compares two non-nil, normalised values of type dt.
func compareValues(dt DataType, a, b any) int {
	switch dt {
	case DataTypeInt64:
		return cmp.Compare(a.(int64), b.(int64))
	case DataTypeFloat64:
		return compareFloat(a.(float64), b.(float64))
	case DataTypeString:
		return strings.Compare(a.(string), b.(string))
	case DataTypeBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case DataTypeBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	}
	panic(fmt.Sprintf("rowstore: cannot compare values of type %s", dt))
}

// compareFloat orders NaN after every number and equal to itself.
func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return cmp.Compare(a, b)
}
