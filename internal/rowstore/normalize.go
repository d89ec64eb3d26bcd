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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// normalizeValue converts v to the canonical Go type for dt: int64, float64,
// string, bool or []byte. Text is parsed for numeric and bool columns, so
// readers without type information can hand over strings. nil is returned
// unchanged.
func normalizeValue(dt DataType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dt {
	case DataTypeInt64:
		return toInt64(v)
	case DataTypeFloat64:
		return toFloat64(v)
	case DataTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case DataTypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return parsed, nil
			}
			return nil, fmt.Errorf("string %q is not a bool", b)
		}
	case DataTypeBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, dt)
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("uint64 %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		// JSON decoders produce float64 for every number.
		// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if n == math.Trunc(n) && n >= math.MinInt64 && n < 0x1p63 {
			return int64(n), nil
		}
		return nil, fmt.Errorf("float64 %v is not an int64", n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("string %q is not an int64", n)
		}
		return i, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("json number %q is not an int64", n)
		}
		return i, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, DataTypeInt64)
}

func toFloat64(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("json number %q is not a float64", n)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("string %q is not a float64", n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, DataTypeFloat64)
}

const (
	rowOverheadBytes   = 48
	fieldOverheadBytes = 16
)

// valueSize estimates the number of bytes v occupies in a row.
func valueSize(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(x))
	case []byte:
		return int64(len(x))
	case bool, int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	case int64, uint64, int, uint, float64:
		return 8
	default:
		return 16
	}
}
