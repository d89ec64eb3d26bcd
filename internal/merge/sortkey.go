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
	"fmt"
	"strings"

	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// SortOrder is the direction and null placement of one sort key.
type SortOrder struct {
	Ascending  bool
	NullsFirst bool
}

var (
	Ascending  = SortOrder{Ascending: true, NullsFirst: false}
	Descending = SortOrder{Ascending: false, NullsFirst: true}
)

func (o SortOrder) String() string {
	dir, nulls := "ASC", "NULLS LAST"
	if !o.Ascending {
		dir = "DESC"
	}
	if o.NullsFirst {
		nulls = "NULLS FIRST"
	}
	return dir + " " + nulls
}

// SortKey orders rows by one column.
type SortKey struct {
	Column wkk.RowKey
	Order  SortOrder
}

func (k SortKey) String() string {
	return wkk.Name(k.Column) + " " + k.Order.String()
}

// ParseSortKey parses "column [ASC|DESC] [NULLS FIRST|NULLS LAST]".
// Keywords are case-insensitive. Without an explicit null placement, nulls
// sort last for ascending keys and first for descending keys.
func ParseSortKey(s string) (SortKey, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return SortKey{}, fmt.Errorf("empty sort key")
	}

	key := SortKey{Column: wkk.NewRowKey(fields[0]), Order: Ascending}
	rest := fields[1:]

	if len(rest) > 0 {
		switch strings.ToUpper(rest[0]) {
		case "ASC":
			key.Order = Ascending
			rest = rest[1:]
		case "DESC":
			key.Order = Descending
			rest = rest[1:]
		}
	}

	if len(rest) > 0 {
		if len(rest) != 2 || !strings.EqualFold(rest[0], "NULLS") {
			return SortKey{}, fmt.Errorf("invalid sort key %q", s)
		}
		switch strings.ToUpper(rest[1]) {
		case "FIRST":
			key.Order.NullsFirst = true
		case "LAST":
			key.Order.NullsFirst = false
		default:
			return SortKey{}, fmt.Errorf("invalid null placement %q in sort key %q", rest[1], s)
		}
	}

	return key, nil
}

// ParseSortKeys parses each element with ParseSortKey.
func ParseSortKeys(specs []string) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(specs))
	for _, s := range specs {
		k, err := ParseSortKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
