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
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/gizmodata/duckarrow/engine"
)

// Field metadata keys attached to every exported column.
const (
	MetaKeyDatabaseTypeName = "sql.database_type_name"
	MetaKeyPrecision        = "sql.precision"
	MetaKeyScale            = "sql.scale"
)

// placeholderTimeZone is carried by TIMESTAMP WITH TIME ZONE until a
// schema is built against a concrete set of client properties.
const placeholderTimeZone = engine.DefaultTimeZone

// hugeIntType holds HUGEINT and UHUGEINT values. UHUGEINT values above
// the signed 128-bit range are rejected when the chunk is converted.
var hugeIntType = &arrow.Decimal128Type{Precision: 38, Scale: 0}

// MapType maps an engine logical type to its Arrow interchange type. It
// never fails: types that have no Arrow rendition map to arrow.Null.
//
// UBIGINT maps to int64 and its values are reinterpreted, so values
// above math.MaxInt64 come out negative. INTERVAL maps to a microsecond
// duration with months counted as 30 days.
func MapType(t engine.LogicalType) arrow.DataType {
	switch t.ID {
	case engine.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case engine.TypeTinyInt:
		return arrow.PrimitiveTypes.Int8
	case engine.TypeSmallInt:
		return arrow.PrimitiveTypes.Int16
	case engine.TypeInteger:
		return arrow.PrimitiveTypes.Int32
	case engine.TypeBigInt, engine.TypeUBigInt:
		return arrow.PrimitiveTypes.Int64
	case engine.TypeUTinyInt:
		return arrow.PrimitiveTypes.Uint8
	case engine.TypeUSmallInt:
		return arrow.PrimitiveTypes.Uint16
	case engine.TypeUInteger:
		return arrow.PrimitiveTypes.Uint32
	case engine.TypeFloat:
		return arrow.PrimitiveTypes.Float32
	case engine.TypeDouble:
		return arrow.PrimitiveTypes.Float64
	case engine.TypeDecimal:
		dt, err := arrow.NarrowestDecimalType(int32(t.Width), int32(t.Scale))
		if err != nil {
			return arrow.Null
		}
		return dt
	case engine.TypeChar, engine.TypeVarchar:
		return arrow.BinaryTypes.String
	case engine.TypeBlob:
		return arrow.BinaryTypes.Binary
	case engine.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case engine.TypeTime, engine.TypeTimestampMS:
		return &arrow.TimestampType{Unit: arrow.Millisecond}
	case engine.TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case engine.TypeTimestampSec:
		return &arrow.TimestampType{Unit: arrow.Second}
	case engine.TypeTimestampNS:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}
	case engine.TypeTimestampTZ:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: placeholderTimeZone}
	case engine.TypeInterval:
		return arrow.FixedWidthTypes.Duration_us
	case engine.TypeHugeInt, engine.TypeUHugeInt:
		return hugeIntType
	default:
		// SQLNULL, TIME WITH TIME ZONE, UUID, ENUM, nested types and the
		// internal engine types have no direct rendition.
		return arrow.Null
	}
}

// MapTypeWithProperties is MapType with the session time zone applied to
// timezone-aware timestamps.
func MapTypeWithProperties(t engine.LogicalType, props engine.ClientProperties) arrow.DataType {
	dt := MapType(t)
	if t.ID == engine.TypeTimestampTZ && props.TimeZone != "" {
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: props.TimeZone}
	}
	return dt
}

// SchemaFor builds the Arrow schema of a result with the given column
// names and types. Every field is nullable and records the engine type
// name in its metadata.
func SchemaFor(names []string, types []engine.LogicalType, props engine.ClientProperties) *arrow.Schema {
	fields := make([]arrow.Field, len(types))
	for i, t := range types {
		var name string
		if i < len(names) {
			name = names[i]
		}
		fields[i] = arrow.Field{
			Name:     name,
			Type:     MapTypeWithProperties(t, props),
			Nullable: true,
			Metadata: fieldMetadata(t),
		}
	}
	return arrow.NewSchema(fields, nil)
}

func fieldMetadata(t engine.LogicalType) arrow.Metadata {
	if t.ID == engine.TypeDecimal {
		return arrow.NewMetadata(
			[]string{MetaKeyDatabaseTypeName, MetaKeyPrecision, MetaKeyScale},
			[]string{t.String(), strconv.Itoa(int(t.Width)), strconv.Itoa(int(t.Scale))},
		)
	}
	return arrow.NewMetadata([]string{MetaKeyDatabaseTypeName}, []string{t.String()})
}
