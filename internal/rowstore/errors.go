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
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn means a row lacks a column the schema declares.
	ErrMissingColumn = errors.New("row is missing a declared column")

	// ErrSchemaMismatch means a row value does not fit the declared schema.
	ErrSchemaMismatch = errors.New("row does not match schema")

	// ErrMemoryLimitExceeded means storing a batch would exceed the container's byte limit.
	ErrMemoryLimitExceeded = errors.New("row container memory limit exceeded")
)

// RowSchemaError describes why a single row was rejected.
// Use errors.Is against ErrMissingColumn or ErrSchemaMismatch to classify it.
type RowSchemaError struct {
	Column string
	Reason string
	kind   error
}

func (e *RowSchemaError) Error() string {
	return fmt.Sprintf("%s: column %q: %s", e.kind, e.Column, e.Reason)
}

func (e *RowSchemaError) Is(target error) bool {
	return target == e.kind
}

// MemoryLimitError carries the numbers behind ErrMemoryLimitExceeded.
type MemoryLimitError struct {
	Requested int64
	Used      int64
	Limit     int64
}

func (e *MemoryLimitError) Error() string {
	return fmt.Sprintf("%s: storing %d bytes with %d of %d in use",
		ErrMemoryLimitExceeded, e.Requested, e.Used, e.Limit)
}

func (e *MemoryLimitError) Unwrap() error {
	return ErrMemoryLimitExceeded
}
