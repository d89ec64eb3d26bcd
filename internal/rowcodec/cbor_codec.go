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

package rowcodec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// CBORCodec holds the CBOR encoder/decoder configuration.
type CBORCodec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

var _ Codec = (*CBORCodec)(nil)

// NewCBORCodec creates a new CBOR codec.
func NewCBORCodec() (*CBORCodec, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR encoder: %w", err)
	}

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,      // Enforce unique keys
		IndefLength:     cbor.IndefLengthAllowed,        // Allow indefinite length
		MaxNestedLevels: 20,                             // Reasonable nesting limit
		IntDec:          cbor.IntDecConvertSignedOrFail, // Always decode to int64 for consistency
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR decoder: %w", err)
	}

	return &CBORCodec{
		em: em,
		dm: dm,
	}, nil
}

// EncodeRow encodes a Row (map[wkk.RowKey]any) to CBOR bytes.
func (c *CBORCodec) EncodeRow(row pipeline.Row) ([]byte, error) {
	return c.em.Marshal(pipeline.ToStringMap(row))
}

// DecodeRow decodes CBOR bytes into the supplied Row (map[wkk.RowKey]any).
// The supplied Row is cleared before decoding.
func (c *CBORCodec) DecodeRow(data []byte, into pipeline.Row) error {
	clear(into)

	var stringMap map[string]any
	if err := c.dm.Unmarshal(data, &stringMap); err != nil {
		return fmt.Errorf("decode CBOR row: %w", err)
	}
	for k, v := range stringMap {
		into[wkk.NewRowKey(k)] = v
	}
	return nil
}

// EncodePage encodes batch as a CBOR array of maps.
func (c *CBORCodec) EncodePage(batch *pipeline.Batch) ([]byte, error) {
	rows := make([]map[string]any, batch.Len())
	for i := range rows {
		rows[i] = pipeline.ToStringMap(batch.Get(i))
	}
	data, err := c.em.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode CBOR page: %w", err)
	}
	return data, nil
}

// DecodePage decodes a CBOR page and appends its rows to into. Nothing is
// appended if the page is malformed.
func (c *CBORCodec) DecodePage(data []byte, into *pipeline.Batch) error {
	var rows []map[string]any
	if err := c.dm.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode CBOR page: %w", err)
	}
	for _, m := range rows {
		pipeline.FromStringMap(m, into.AddRow())
	}
	return nil
}
