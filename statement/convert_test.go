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
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convertOne(t *testing.T, mem memory.Allocator, lt engine.LogicalType, values ...any) arrow.RecordBatch {
	t.Helper()
	types := []engine.LogicalType{lt}
	schema := SchemaFor([]string{"c"}, types, engine.ClientProperties{TimeZone: "UTC"})
	rec, err := recordFromChunk(mem, schema, types, &engine.DataChunk{
		Vectors: []engine.Vector{{Type: lt, Values: values}},
	})
	require.NoError(t, err)
	return rec
}

func TestConvertIntegers(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := convertOne(t, mem, engine.Simple(engine.TypeTinyInt), int8(-5), int64(7), nil)
	defer rec.Release()
	col := rec.Column(0).(*array.Int8)
	assert.Equal(t, int8(-5), col.Value(0))
	assert.Equal(t, int8(7), col.Value(1))
	assert.True(t, col.IsNull(2))

	rec2 := convertOne(t, mem, engine.Simple(engine.TypeUInteger), uint32(math.MaxUint32))
	defer rec2.Release()
	assert.Equal(t, uint32(math.MaxUint32), rec2.Column(0).(*array.Uint32).Value(0))
}

func TestConvertUBigIntReinterpreted(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := convertOne(t, mem, engine.Simple(engine.TypeUBigInt), uint64(42), uint64(math.MaxUint64))
	defer rec.Release()
	col := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(42), col.Value(0))
	assert.Equal(t, int64(-1), col.Value(1))
}

func TestConvertDecimals(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	tests := []struct {
		name     string
		lt       engine.LogicalType
		value    any
		expected string
	}{
		{"decimal32", engine.DecimalType(9, 2), engine.Decimal{Width: 9, Scale: 2, Value: big.NewInt(12345)}, "123.45"},
		{"decimal64 negative", engine.DecimalType(18, 3), engine.Decimal{Width: 18, Scale: 3, Value: big.NewInt(-5)}, "-0.005"},
		{"decimal128 from text", engine.DecimalType(30, 4), "98765432109876543210.1234", "98765432109876543210.1234"},
		{"decimal256", engine.DecimalType(50, 0), engine.Decimal{Width: 50, Scale: 0, Value: new(big.Int).Exp(big.NewInt(10), big.NewInt(45), nil)}, "1" + strings.Repeat("0", 45)},
		{"decimal from float", engine.DecimalType(10, 2), 1.5, "1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := convertOne(t, mem, tt.lt, tt.value)
			defer rec.Release()
			assert.Equal(t, tt.expected, decimalText(rec.Column(0)))
		})
	}
}

func decimalText(arr arrow.Array) string {
	scale := arr.DataType().(arrow.DecimalType).GetScale()
	switch a := arr.(type) {
	case *array.Decimal32:
		return a.Value(0).ToString(scale)
	case *array.Decimal64:
		return a.Value(0).ToString(scale)
	case *array.Decimal128:
		return a.Value(0).ToString(scale)
	case *array.Decimal256:
		return a.Value(0).ToString(scale)
	}
	return ""
}

func TestConvertHugeInt(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	huge, ok := new(big.Int).SetString("-170141183460469231731687303715884105727", 10)
	require.True(t, ok)
	rec := convertOne(t, mem, engine.Simple(engine.TypeHugeInt), huge, big.NewInt(12))
	defer rec.Release()
	col := rec.Column(0).(*array.Decimal128)
	assert.Equal(t, 0, col.Value(0).BigInt().Cmp(huge))
	assert.Equal(t, int64(12), col.Value(1).BigInt().Int64())

	types := []engine.LogicalType{engine.Simple(engine.TypeUHugeInt)}
	schema := SchemaFor([]string{"c"}, types, engine.ClientProperties{})
	tooBig := new(big.Int).Lsh(big.NewInt(1), 127)
	_, err := recordFromChunk(mem, schema, types, &engine.DataChunk{
		Vectors: []engine.Vector{{Type: types[0], Values: []any{tooBig}}},
	})
	assert.ErrorContains(t, err, "overflows decimal128")
}

func TestConvertTemporal(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	ts := time.Date(2024, 3, 15, 10, 30, 45, 123456789, time.UTC)

	date := convertOne(t, mem, engine.Simple(engine.TypeDate), ts, "1970-01-02")
	defer date.Release()
	dates := date.Column(0).(*array.Date32)
	assert.Equal(t, arrow.Date32FromTime(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), dates.Value(0))
	assert.Equal(t, arrow.Date32(1), dates.Value(1))

	clock := convertOne(t, mem, engine.Simple(engine.TypeTime), time.Date(1, 1, 1, 1, 2, 3, 4_000_000, time.UTC))
	defer clock.Release()
	assert.Equal(t, arrow.Timestamp(3_723_004), clock.Column(0).(*array.Timestamp).Value(0))

	units := []struct {
		lt       engine.LogicalType
		expected arrow.Timestamp
	}{
		{engine.Simple(engine.TypeTimestampSec), arrow.Timestamp(ts.Unix())},
		{engine.Simple(engine.TypeTimestampMS), arrow.Timestamp(ts.UnixMilli())},
		{engine.Simple(engine.TypeTimestamp), arrow.Timestamp(ts.UnixMicro())},
		{engine.Simple(engine.TypeTimestampNS), arrow.Timestamp(ts.UnixNano())},
		{engine.Simple(engine.TypeTimestampTZ), arrow.Timestamp(ts.UnixMicro())},
	}
	for _, u := range units {
		rec := convertOne(t, mem, u.lt, ts)
		assert.Equal(t, u.expected, rec.Column(0).(*array.Timestamp).Value(0), u.lt.String())
		rec.Release()
	}
}

func TestConvertInterval(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := convertOne(t, mem, engine.Simple(engine.TypeInterval),
		engine.Interval{Months: 1, Days: 2, Micros: 3},
		90*time.Second,
	)
	defer rec.Release()
	col := rec.Column(0).(*array.Duration)
	day := int64(24 * time.Hour / time.Microsecond)
	assert.Equal(t, arrow.Duration(32*day+3), col.Value(0))
	assert.Equal(t, arrow.Duration(90_000_000), col.Value(1))
}

func TestConvertTextAndBinary(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	text := convertOne(t, mem, engine.Simple(engine.TypeVarchar), "héllo", []byte("raw"), nil)
	defer text.Release()
	strs := text.Column(0).(*array.String)
	assert.Equal(t, "héllo", strs.Value(0))
	assert.Equal(t, "raw", strs.Value(1))
	assert.True(t, strs.IsNull(2))

	blob := convertOne(t, mem, engine.Simple(engine.TypeBlob), []byte{0, 1, 2})
	defer blob.Release()
	assert.Equal(t, []byte{0, 1, 2}, blob.Column(0).(*array.Binary).Value(0))
}

func TestConvertUnrepresentable(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	rec := convertOne(t, mem, engine.Simple(engine.TypeUUID), []byte("0123456789abcdef"), nil)
	defer rec.Release()
	assert.Equal(t, arrow.NULL, rec.Column(0).DataType().ID())
	assert.Equal(t, 2, rec.Column(0).Len())
	assert.Equal(t, 2, rec.Column(0).NullN())
}

func TestConvertShapeMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	types := []engine.LogicalType{engine.Simple(engine.TypeInteger), engine.Simple(engine.TypeInteger)}
	schema := SchemaFor([]string{"a", "b"}, types, engine.ClientProperties{})

	_, err := recordFromChunk(mem, schema, types, &engine.DataChunk{Vectors: []engine.Vector{
		{Type: types[0], Values: []any{int32(1)}},
	}})
	assert.ErrorContains(t, err, "chunk has 1 columns")

	_, err = recordFromChunk(mem, schema, types, &engine.DataChunk{Vectors: []engine.Vector{
		{Type: types[0], Values: []any{int32(1), int32(2)}},
		{Type: types[1], Values: []any{int32(1)}},
	}})
	assert.ErrorContains(t, err, `column "b" has 1 rows`)
}

func TestDecimalString(t *testing.T) {
	assert.Equal(t, "123.45", decimalString(big.NewInt(12345), 2))
	assert.Equal(t, "0.05", decimalString(big.NewInt(5), 2))
	assert.Equal(t, "-0.005", decimalString(big.NewInt(-5), 3))
	assert.Equal(t, "42", decimalString(big.NewInt(42), 0))
	assert.Equal(t, "0.000", decimalString(big.NewInt(0), 3))
}
