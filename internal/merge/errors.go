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

import "errors"

var (
	// ErrNoSortKeys means the operator was configured without any sort key.
	ErrNoSortKeys = errors.New("merge requires at least one sort key")

	// ErrUnknownSortColumn means a sort key names a column the schema does not declare.
	ErrUnknownSortColumn = errors.New("sort key column is not in the schema")

	// ErrDuplicateSortColumn means the same column appears in more than one sort key.
	ErrDuplicateSortColumn = errors.New("sort key column used more than once")

	// ErrSourceCount means a local merge got a different number of sources than it was built for.
	ErrSourceCount = errors.New("unexpected number of merge sources")

	// ErrSourceClosed is returned to producers that enqueue into a closed LocalMergeSource.
	ErrSourceClosed = errors.New("merge source is closed")
)
