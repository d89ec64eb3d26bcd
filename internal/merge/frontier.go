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

import "container/heap"

// frontier holds at most one candidate row per source. Less is the inverse
// of the comparator's greater, so the top of the heap is the row that ranks
// first.
type frontier struct {
	rows []sourceRow
	cmp  *comparator
}

var _ heap.Interface = (*frontier)(nil)

func (f *frontier) Len() int           { return len(f.rows) }
func (f *frontier) Less(i, j int) bool { return f.cmp.greater(f.rows[j], f.rows[i]) }
func (f *frontier) Swap(i, j int)      { f.rows[i], f.rows[j] = f.rows[j], f.rows[i] }
func (f *frontier) Push(x any)         { f.rows = append(f.rows, x.(sourceRow)) }

func (f *frontier) Pop() any {
	n := len(f.rows)
	v := f.rows[n-1]
	f.rows[n-1] = sourceRow{}
	f.rows = f.rows[:n-1]
	return v
}

func (f *frontier) top() sourceRow {
	return f.rows[0]
}

func (f *frontier) reset() {
	clear(f.rows)
	f.rows = f.rows[:0]
}
