// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package statement

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow/engine"
	"golang.org/x/exp/constraints"
)

const (
	microsPerDay   = int64(24 * time.Hour / time.Microsecond)
	daysPerMonth   = 30
	millisPerHour  = int64(time.Hour / time.Millisecond)
	millisPerMin   = int64(time.Minute / time.Millisecond)
	millisPerSec   = int64(time.Second / time.Millisecond)
	nanosPerMillis = int64(time.Millisecond)
)

// temporalLayouts are tried in order when an engine hands back a
// temporal value as text.
var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999",
}

// recordFromChunk converts one engine chunk into an Arrow record laid out
// according to schema. types carries the engine type of every column.
func recordFromChunk(mem memory.Allocator, schema *arrow.Schema, types []engine.LogicalType, chunk *engine.DataChunk) (arrow.RecordBatch, error) {
	if chunk.NumColumns() != schema.NumFields() {
		return nil, fmt.Errorf("chunk has %d columns, schema has %d", chunk.NumColumns(), schema.NumFields())
	}

	bldr := array.NewRecordBuilder(mem, schema)
	defer bldr.Release()

	rows := chunk.NumRows()
	for i, vec := range chunk.Vectors {
		if len(vec.Values) != rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", schema.Field(i).Name, len(vec.Values), rows)
		}
		fb := bldr.Field(i)
		fb.Reserve(rows)
		for row, v := range vec.Values {
			if v == nil {
				fb.AppendNull()
				continue
			}
			if err := appendValue(fb, types[i], v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", schema.Field(i).Name, row, err)
			}
		}
	}
	return bldr.NewRecord(), nil
}

// appendValue appends one non-NULL engine value to fb, whose type was
// chosen by MapType for t.
func appendValue(fb array.Builder, t engine.LogicalType, v any) error {
	switch b := fb.(type) {
	case *array.NullBuilder:
		// No rendition for this engine type; the value is dropped.
		b.AppendNull()
	case *array.BooleanBuilder:
		val, err := convertToBool(v)
		if err != nil {
			return err
		}
		b.Append(val)
	case *array.Int8Builder:
		return appendNumeric(b.Append, v)
	case *array.Int16Builder:
		return appendNumeric(b.Append, v)
	case *array.Int32Builder:
		return appendNumeric(b.Append, v)
	case *array.Int64Builder:
		return appendNumeric(b.Append, v)
	case *array.Uint8Builder:
		return appendNumeric(b.Append, v)
	case *array.Uint16Builder:
		return appendNumeric(b.Append, v)
	case *array.Uint32Builder:
		return appendNumeric(b.Append, v)
	case *array.Float32Builder:
		return appendNumeric(b.Append, v)
	case *array.Float64Builder:
		return appendNumeric(b.Append, v)
	case *array.StringBuilder:
		switch val := v.(type) {
		case string:
			b.Append(val)
		case []byte:
			b.Append(string(val))
		default:
			b.Append(fmt.Sprint(val))
		}
	case *array.BinaryBuilder:
		switch val := v.(type) {
		case []byte:
			b.Append(val)
		case string:
			b.AppendString(val)
		default:
			return fmt.Errorf("cannot convert %T to binary", v)
		}
	case *array.Date32Builder:
		tm, err := convertToTime(v)
		if err != nil {
			return err
		}
		b.Append(arrow.Date32FromTime(engine.DateOnly(tm)))
	case *array.TimestampBuilder:
		ts, err := convertToTimestamp(t, b.Type().(*arrow.TimestampType).Unit, v)
		if err != nil {
			return err
		}
		b.Append(ts)
	case *array.DurationBuilder:
		d, err := convertToMicros(v)
		if err != nil {
			return err
		}
		b.Append(arrow.Duration(d))
	case *array.Decimal128Builder:
		if t.ID == engine.TypeHugeInt || t.ID == engine.TypeUHugeInt {
			n, err := convertToBigInt(v)
			if err != nil {
				return err
			}
			if n.BitLen() > 127 {
				return fmt.Errorf("value %s overflows decimal128", n)
			}
			b.Append(decimal128.FromBigInt(n))
			return nil
		}
		return appendDecimalString(b, v)
	case array.Builder:
		// Decimal32, Decimal64 and Decimal256 builders parse text at the
		// column's precision and scale.
		return appendDecimalString(b, v)
	}
	return nil
}

func appendNumeric[T constraints.Integer | constraints.Float](appendFn func(T), v any) error {
	val, err := convertToNumericType[T](v)
	if err != nil {
		return err
	}
	appendFn(val)
	return nil
}

func convertToNumericType[T constraints.Integer | constraints.Float](val any) (T, error) {
	switch v := val.(type) {
	case int:
		return T(v), nil
	case uint:
		return T(v), nil
	case int8:
		return T(v), nil
	case uint8:
		return T(v), nil
	case int16:
		return T(v), nil
	case uint16:
		return T(v), nil
	case int32:
		return T(v), nil
	case uint32:
		return T(v), nil
	case int64:
		return T(v), nil
	case uint64:
		return T(v), nil
	case float32:
		return T(v), nil
	case float64:
		return T(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("integer %s out of range", v)
		}
		return T(v.Int64()), nil
	}

	strVal := fmt.Sprint(val)
	if b, ok := val.([]byte); ok {
		strVal = string(b)
	}
	var zero T
	switch any(zero).(type) {
	case int8, int16, int32, int64:
		parsed, err := strconv.ParseInt(strVal, 10, 64)
		if err != nil {
			return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
		}
		return T(parsed), nil
	case uint8, uint16, uint32, uint64:
		parsed, err := strconv.ParseUint(strVal, 10, 64)
		if err != nil {
			return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
		}
		return T(parsed), nil
	default:
		parsed, err := strconv.ParseFloat(strVal, 64)
		if err != nil {
			return zero, fmt.Errorf("cannot convert %q to %T: %w", strVal, zero, err)
		}
		return T(parsed), nil
	}
}

func convertToBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int32:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	}
	return false, fmt.Errorf("cannot convert %T to bool", val)
}

func convertToBigInt(val any) (*big.Int, error) {
	switch v := val.(type) {
	case *big.Int:
		return v, nil
	case big.Int:
		return &v, nil
	case string:
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("cannot convert %q to an integer", v)
		}
		return n, nil
	}
	i, err := convertToNumericType[int64](val)
	if err != nil {
		return nil, err
	}
	return big.NewInt(i), nil
}

// decimalString renders an unscaled integer at scale, e.g. 12345 at
// scale 2 is "123.45".
func decimalString(unscaled *big.Int, scale uint8) string {
	digits := new(big.Int).Abs(unscaled).String()
	sign := ""
	if unscaled.Sign() < 0 {
		sign = "-"
	}
	if scale == 0 {
		return sign + digits
	}
	if pad := int(scale) - len(digits) + 1; pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	cut := len(digits) - int(scale)
	return sign + digits[:cut] + "." + digits[cut:]
}

func appendDecimalString(b array.Builder, v any) error {
	var s string
	switch val := v.(type) {
	case engine.Decimal:
		if val.Value == nil {
			b.AppendNull()
			return nil
		}
		s = decimalString(val.Value, val.Scale)
	case *big.Int:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		s = fmt.Sprint(val)
	}
	return b.AppendValueFromString(s)
}

func convertToTime(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTemporal(v)
	case []byte:
		return parseTemporal(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a temporal value", val)
}

func parseTemporal(s string) (time.Time, error) {
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse temporal value %q", s)
}

// convertToTimestamp renders v in unit. TIME values carry only a clock
// reading and become milliseconds since midnight of 1970-01-01.
func convertToTimestamp(t engine.LogicalType, unit arrow.TimeUnit, v any) (arrow.Timestamp, error) {
	tm, err := convertToTime(v)
	if err != nil {
		return 0, err
	}
	if t.ID == engine.TypeTime {
		ms := int64(tm.Hour())*millisPerHour + int64(tm.Minute())*millisPerMin +
			int64(tm.Second())*millisPerSec + int64(tm.Nanosecond())/nanosPerMillis
		return arrow.Timestamp(ms), nil
	}
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(tm.Unix()), nil
	case arrow.Millisecond:
		return arrow.Timestamp(tm.UnixMilli()), nil
	case arrow.Microsecond:
		return arrow.Timestamp(tm.UnixMicro()), nil
	default:
		return arrow.Timestamp(tm.UnixNano()), nil
	}
}

// convertToMicros flattens an interval into microseconds, counting a
// month as 30 days.
func convertToMicros(val any) (int64, error) {
	switch v := val.(type) {
	case engine.Interval:
		days := int64(v.Months)*daysPerMonth + int64(v.Days)
		return days*microsPerDay + v.Micros, nil
	case time.Duration:
		return v.Microseconds(), nil
	case int64:
		return v, nil
	}
	return 0, fmt.Errorf("cannot convert %T to an interval", val)
}
