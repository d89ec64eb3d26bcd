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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitQueuePoll(t *testing.T) {
	q := NewSplitQueue()

	splits, future, noMore := q.Poll()
	assert.Empty(t, splits)
	assert.False(t, noMore)
	require.NotNil(t, future)
	assert.False(t, future.IsDone())

	a := NewSplit("task-1")
	require.NoError(t, q.Add(a))
	assert.True(t, future.IsDone(), "Add completes the pending poll future")

	splits, next, noMore := q.Poll()
	require.Len(t, splits, 1)
	assert.Equal(t, a.ID, splits[0].ID)
	assert.Equal(t, "task-1", splits[0].RemoteTaskID)
	assert.False(t, noMore)
	assert.False(t, next.IsDone())

	q.NoMoreSplits()
	assert.True(t, next.IsDone())

	splits, future, noMore = q.Poll()
	assert.Empty(t, splits)
	assert.Nil(t, future)
	assert.True(t, noMore)
	assert.Equal(t, 1, q.Count())
}

func TestSplitQueueReturnsPendingWithNoMore(t *testing.T) {
	q := NewSplitQueue()
	require.NoError(t, q.Add(NewSplit("a")))
	require.NoError(t, q.Add(NewSplit("b")))
	q.NoMoreSplits()

	splits, future, noMore := q.Poll()
	assert.Len(t, splits, 2)
	assert.Nil(t, future)
	assert.True(t, noMore)
}

func TestSplitQueueRejects(t *testing.T) {
	q := NewSplitQueue()
	s := NewSplit("a")
	require.NoError(t, q.Add(s))

	assert.ErrorIs(t, q.Add(s), ErrDuplicateSplit)
	assert.Error(t, q.Add(Split{ID: "", Pages: NewPageBuffer()}))
	assert.Error(t, q.Add(Split{ID: "x"}))

	q.NoMoreSplits()
	assert.ErrorIs(t, q.Add(NewSplit("b")), ErrSplitsClosed)
}

func TestNewSplitIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		s := NewSplit("t")
		assert.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}
