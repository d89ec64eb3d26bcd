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

	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

// sourceRow is a frontier candidate: the next unseen row of one source.
type sourceRow struct {
	source int
	row    rowstore.RowHandle
}

type keyColumn struct {
	column int
	flags  rowstore.CompareFlags
}

// comparator orders rows in a container by a list of sort keys.
type comparator struct {
	store *rowstore.Container
	keys  []keyColumn
}

// resolveKeys maps sort keys to schema column indexes.
func resolveKeys(schema *rowstore.Schema, keys []SortKey) ([]keyColumn, error) {
	if len(keys) == 0 {
		return nil, ErrNoSortKeys
	}
	seen := make(map[wkk.RowKey]struct{}, len(keys))
	out := make([]keyColumn, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k.Column]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSortColumn, wkk.Name(k.Column))
		}
		seen[k.Column] = struct{}{}

		idx := schema.ColumnIndex(k.Column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSortColumn, wkk.Name(k.Column))
		}
		out = append(out, keyColumn{
			column: idx,
			flags: rowstore.CompareFlags{
				NullsFirst: k.Order.NullsFirst,
				Ascending:  k.Order.Ascending,
			},
		})
	}
	return out, nil
}

// greater reports whether lhs ranks strictly after rhs. Rows tied on every
// key are equal and neither is greater.
func (c *comparator) greater(lhs, rhs sourceRow) bool {
	for _, k := range c.keys {
		if r := c.store.Compare(lhs.row, rhs.row, k.column, k.flags); r != 0 {
			return r > 0
		}
	}
	return false
}
