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

// Package rowcodec encodes rows and pages of rows for transfer between tasks.
//
// A page is the unit an exchange moves: one encoded batch of rows, in order.
// Decoding always yields canonical value types: integers decode as int64,
// floats as float64, text as string and byte strings as []byte.
package rowcodec

import (
	"fmt"

	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// Codec encodes and decodes rows and pages.
type Codec interface {
	// EncodeRow encodes a single row.
	EncodeRow(row pipeline.Row) ([]byte, error)

	// DecodeRow decodes bytes into the supplied Row, clearing it first.
	DecodeRow(data []byte, into pipeline.Row) error

	// EncodePage encodes every row of batch, in order.
	EncodePage(batch *pipeline.Batch) ([]byte, error)

	// DecodePage appends the rows of an encoded page to into.
	DecodePage(data []byte, into *pipeline.Batch) error
}

// Type represents the available codec types.
type Type string

const (
	// default type
	TypeDefault Type = ""
	// TypeCBOR is the CBOR codec.
	TypeCBOR Type = "cbor"
)

// NewCBOR creates a new CBOR codec.
func NewCBOR() (Codec, error) {
	return NewCBORCodec()
}

// New creates a new codec of the specified type.
func New(t Type) (Codec, error) {
	switch t {
	case TypeCBOR, TypeDefault:
		return NewCBOR()
	default:
		return nil, fmt.Errorf("unknown codec type: %s", t)
	}
}
