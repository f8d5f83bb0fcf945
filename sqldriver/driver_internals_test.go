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

package sqldriver

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectStr(t *testing.T) {
	dsn := strings.Join([]string{
		fmt.Sprintf("%s=%s", duckarrow.OptionKeyEngine, "sqlite"),
		fmt.Sprintf("%s=%s", duckarrow.OptionKeyURI, "file:app.db?mode=ro"),
		fmt.Sprintf("%s=%s", duckarrow.OptionKeyChunkSize, "64"),
	}, " ; ")

	gotOpts, err := parseConnectStr(dsn)
	if assert.NoError(t, err) {
		assert.Equal(t, map[string]string{
			duckarrow.OptionKeyEngine:    "sqlite",
			duckarrow.OptionKeyURI:       "file:app.db?mode=ro",
			duckarrow.OptionKeyChunkSize: "64",
		}, gotOpts)
	}

	gotOpts, err = parseConnectStr("")
	require.NoError(t, err)
	assert.Empty(t, gotOpts)

	_, err = parseConnectStr("uri")
	assert.Equal(t, duckarrow.StatusInvalidArgument, duckarrow.StatusOf(err))
}

func TestColumnTypeDatabaseTypeName(t *testing.T) {
	tests := []struct {
		field  arrow.Field
		dtName string
	}{
		{
			field:  arrow.Field{Type: arrow.BinaryTypes.String},
			dtName: "utf8",
		},
		{
			field:  arrow.Field{Type: &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}},
			dtName: "timestamp[us, tz=UTC]",
		},
		{
			field: arrow.Field{
				Type:     arrow.PrimitiveTypes.Int64,
				Metadata: arrow.NewMetadata([]string{statement.MetaKeyDatabaseTypeName}, []string{"BIGINT"}),
			},
			dtName: "BIGINT",
		},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("%d-%s", i, test.dtName), func(t *testing.T) {
			schema := arrow.NewSchema([]arrow.Field{test.field}, nil)
			reader, err := array.NewRecordReader(schema, nil)
			require.NoError(t, err)
			r := &rows{rdr: reader}
			assert.Equal(t, test.dtName, r.ColumnTypeDatabaseTypeName(0))
		})
	}
}

func TestColumnTypePrecisionScale(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "d", Type: &arrow.Decimal128Type{Precision: 18, Scale: 3}},
		{Name: "i", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	reader, err := array.NewRecordReader(schema, nil)
	require.NoError(t, err)
	r := &rows{rdr: reader}

	p, s, ok := r.ColumnTypePrecisionScale(0)
	assert.True(t, ok)
	assert.EqualValues(t, 18, p)
	assert.EqualValues(t, 3, s)

	_, _, ok = r.ColumnTypePrecisionScale(1)
	assert.False(t, ok)
}

func TestCreateBoundRecord(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	rec, err := createBoundRecord([]driver.NamedValue{
		{Ordinal: 2, Value: "two"},
		{Ordinal: 1, Value: int64(1)},
		{Ordinal: 3, Value: nil},
		{Ordinal: 4, Value: ts},
		{Ordinal: 5, Value: []byte{0xca, 0xfe}},
	})
	require.NoError(t, err)
	defer rec.Release()

	require.EqualValues(t, 1, rec.NumRows())
	assert.Equal(t, "0", rec.Schema().Field(0).Name)
	assert.Equal(t, int64(1), rec.Column(0).(*array.Int64).Value(0))
	assert.Equal(t, "two", rec.Column(1).(*array.String).Value(0))
	assert.True(t, rec.Column(2).IsNull(0))
	assert.Equal(t, ts, rec.Column(3).(*array.Timestamp).Value(0).ToTime(arrow.Microsecond))
	assert.Equal(t, []byte{0xca, 0xfe}, rec.Column(4).(*array.Binary).Value(0))

	_, err = createBoundRecord([]driver.NamedValue{{Ordinal: 1, Value: struct{}{}}})
	assert.ErrorContains(t, err, "unsupported parameter type")
}

func TestCheckNamedValue(t *testing.T) {
	s := &stmt{paramSchema: arrow.NewSchema([]arrow.Field{{Name: "0", Type: arrow.Null}}, nil)}

	v := &driver.NamedValue{Ordinal: 1, Value: 42}
	require.NoError(t, s.CheckNamedValue(v))
	assert.Equal(t, int64(42), v.Value)

	err := s.CheckNamedValue(&driver.NamedValue{Ordinal: 2, Value: 1})
	assert.Equal(t, duckarrow.StatusInvalidArgument, duckarrow.StatusOf(err))

	err = s.CheckNamedValue(&driver.NamedValue{Name: "id", Ordinal: 1, Value: 1})
	assert.ErrorContains(t, err, "named parameter")
}

func TestDriverValue(t *testing.T) {
	assert.Equal(t, int64(7), driverValue(int32(7)))
	assert.Equal(t, int64(200), driverValue(uint8(200)))
	assert.Equal(t, float64(1.5), driverValue(float32(1.5)))
	assert.Equal(t, uint64(9), driverValue(uint64(9)))
	assert.Equal(t, "x", driverValue("x"))
}
