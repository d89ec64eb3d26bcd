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

// Package exchange moves pages of rows from remote tasks to a consuming task.
//
// Each remote task output assigned to the consumer arrives as a Split whose
// PageBuffer receives encoded pages asynchronously. A SplitQueue hands splits
// out as they are assigned and records when assignment has ended.
package exchange

import (
	"errors"
	"time"

	"github.com/cardinalhq/lakemerge/internal/idgen"
)

var (
	// ErrDuplicateSplit means a split with the same id was already added.
	ErrDuplicateSplit = errors.New("duplicate split")

	// ErrSplitsClosed means a split was added after NoMoreSplits.
	ErrSplitsClosed = errors.New("split queue is closed")
)

// Split is one remote task output assigned to this task.
type Split struct {
	ID           string
	RemoteTaskID string
	Pages        *PageBuffer
}

var splitIDs = idgen.NewULIDGenerator()

// NewSplit creates a split with a fresh id and an empty page buffer.
func NewSplit(remoteTaskID string) Split {
	return Split{
		ID:           splitIDs.Make(time.Now()),
		RemoteTaskID: remoteTaskID,
		Pages:        NewPageBuffer(),
	}
}
