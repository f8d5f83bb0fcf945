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

package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeID identifies an engine logical type.
type TypeID uint8

const (
	TypeInvalid TypeID = iota
	TypeSQLNull
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeHugeInt
	TypeUTinyInt
	TypeUSmallInt
	TypeUInteger
	TypeUBigInt
	TypeUHugeInt
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeBlob
	TypeDate
	TypeTime
	TypeTimeTZ
	TypeTimestampSec
	TypeTimestampMS
	TypeTimestamp
	TypeTimestampNS
	TypeTimestampTZ
	TypeInterval
	TypeUUID
	TypeEnum
	TypeList
	TypeArray
	TypeStruct
	TypeMap
	TypeUnion
	TypeBit
	TypeVarInt
	TypePointer
	TypeValidity
	TypeTable
	TypeAny
	TypeUser
	TypeUnknown
)

var typeNames = [...]string{
	TypeInvalid:      "INVALID",
	TypeSQLNull:      "NULL",
	TypeBoolean:      "BOOLEAN",
	TypeTinyInt:      "TINYINT",
	TypeSmallInt:     "SMALLINT",
	TypeInteger:      "INTEGER",
	TypeBigInt:       "BIGINT",
	TypeHugeInt:      "HUGEINT",
	TypeUTinyInt:     "UTINYINT",
	TypeUSmallInt:    "USMALLINT",
	TypeUInteger:     "UINTEGER",
	TypeUBigInt:      "UBIGINT",
	TypeUHugeInt:     "UHUGEINT",
	TypeFloat:        "FLOAT",
	TypeDouble:       "DOUBLE",
	TypeDecimal:      "DECIMAL",
	TypeChar:         "CHAR",
	TypeVarchar:      "VARCHAR",
	TypeBlob:         "BLOB",
	TypeDate:         "DATE",
	TypeTime:         "TIME",
	TypeTimeTZ:       "TIME WITH TIME ZONE",
	TypeTimestampSec: "TIMESTAMP_S",
	TypeTimestampMS:  "TIMESTAMP_MS",
	TypeTimestamp:    "TIMESTAMP",
	TypeTimestampNS:  "TIMESTAMP_NS",
	TypeTimestampTZ:  "TIMESTAMP WITH TIME ZONE",
	TypeInterval:     "INTERVAL",
	TypeUUID:         "UUID",
	TypeEnum:         "ENUM",
	TypeList:         "LIST",
	TypeArray:        "ARRAY",
	TypeStruct:       "STRUCT",
	TypeMap:          "MAP",
	TypeUnion:        "UNION",
	TypeBit:          "BIT",
	TypeVarInt:       "VARINT",
	TypePointer:      "POINTER",
	TypeValidity:     "VALIDITY",
	TypeTable:        "TABLE",
	TypeAny:          "ANY",
	TypeUser:         "USER",
	TypeUnknown:      "UNKNOWN",
}

func (id TypeID) String() string {
	if int(id) < len(typeNames) {
		return typeNames[id]
	}
	return "TypeID(" + strconv.Itoa(int(id)) + ")"
}

// LogicalType is an engine column type. Width and Scale are only
// meaningful for TypeDecimal.
type LogicalType struct {
	ID    TypeID
	Width uint8
	Scale uint8
}

// Simple returns the parameterless LogicalType for id.
func Simple(id TypeID) LogicalType { return LogicalType{ID: id} }

// DecimalType returns DECIMAL(width, scale).
func DecimalType(width, scale uint8) LogicalType {
	return LogicalType{ID: TypeDecimal, Width: width, Scale: scale}
}

func (t LogicalType) String() string {
	if t.ID == TypeDecimal {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	}
	return t.ID.String()
}

// MaxDecimalWidth is the widest decimal the engines produce.
const MaxDecimalWidth = 76

// aliases maps engine type spellings (upper case, parameters stripped) to
// their TypeID.
var aliases = map[string]TypeID{
	"NULL":                     TypeSQLNull,
	"\"NULL\"":                 TypeSQLNull,
	"BOOLEAN":                  TypeBoolean,
	"BOOL":                     TypeBoolean,
	"LOGICAL":                  TypeBoolean,
	"TINYINT":                  TypeTinyInt,
	"INT1":                     TypeTinyInt,
	"SMALLINT":                 TypeSmallInt,
	"INT2":                     TypeSmallInt,
	"SHORT":                    TypeSmallInt,
	"INTEGER":                  TypeInteger,
	"INT":                      TypeInteger,
	"INT4":                     TypeInteger,
	"SIGNED":                   TypeInteger,
	"BIGINT":                   TypeBigInt,
	"INT8":                     TypeBigInt,
	"LONG":                     TypeBigInt,
	"HUGEINT":                  TypeHugeInt,
	"INT128":                   TypeHugeInt,
	"UTINYINT":                 TypeUTinyInt,
	"USMALLINT":                TypeUSmallInt,
	"UINTEGER":                 TypeUInteger,
	"UBIGINT":                  TypeUBigInt,
	"UHUGEINT":                 TypeUHugeInt,
	"FLOAT":                    TypeFloat,
	"FLOAT4":                   TypeFloat,
	"REAL":                     TypeFloat,
	"DOUBLE":                   TypeDouble,
	"DOUBLE PRECISION":         TypeDouble,
	"FLOAT8":                   TypeDouble,
	"DECIMAL":                  TypeDecimal,
	"NUMERIC":                  TypeDecimal,
	"CHAR":                     TypeChar,
	"BPCHAR":                   TypeChar,
	"VARCHAR":                  TypeVarchar,
	"TEXT":                     TypeVarchar,
	"STRING":                   TypeVarchar,
	"BLOB":                     TypeBlob,
	"BYTEA":                    TypeBlob,
	"BINARY":                   TypeBlob,
	"VARBINARY":                TypeBlob,
	"DATE":                     TypeDate,
	"TIME":                     TypeTime,
	"TIMETZ":                   TypeTimeTZ,
	"TIME WITH TIME ZONE":      TypeTimeTZ,
	"TIMESTAMP_S":              TypeTimestampSec,
	"TIMESTAMP_MS":             TypeTimestampMS,
	"TIMESTAMP":                TypeTimestamp,
	"DATETIME":                 TypeTimestamp,
	"TIMESTAMP_US":             TypeTimestamp,
	"TIMESTAMP_NS":             TypeTimestampNS,
	"TIMESTAMPTZ":              TypeTimestampTZ,
	"TIMESTAMP WITH TIME ZONE": TypeTimestampTZ,
	"INTERVAL":                 TypeInterval,
	"UUID":                     TypeUUID,
	"ENUM":                     TypeEnum,
	"STRUCT":                   TypeStruct,
	"MAP":                      TypeMap,
	"UNION":                    TypeUnion,
	"BIT":                      TypeBit,
	"BITSTRING":                TypeBit,
	"VARINT":                   TypeVarInt,
	"BIGNUM":                   TypeVarInt,
	"POINTER":                  TypePointer,
	"VALIDITY":                 TypeValidity,
	"TABLE":                    TypeTable,
	"ANY":                      TypeAny,
	"UNKNOWN":                  TypeUnknown,
}

// Default DECIMAL parameters when a name carries none.
const (
	defaultDecimalWidth = 18
	defaultDecimalScale = 3
)

// ParseTypeName parses an engine type name such as "INTEGER",
// "DECIMAL(10,2)", "VARCHAR[]" or "TIMESTAMP WITH TIME ZONE". Names it
// does not recognize come back as TypeUser so that they map to the
// interchange null type rather than failing.
func ParseTypeName(name string) (LogicalType, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return LogicalType{}, fmt.Errorf("empty type name")
	}

	switch {
	case strings.HasSuffix(n, "]"):
		// VARCHAR[] is a list, INTEGER[3] a fixed size array
		if strings.HasSuffix(n, "[]") {
			return Simple(TypeList), nil
		}
		return Simple(TypeArray), nil
	case strings.HasPrefix(n, "STRUCT(") || strings.HasPrefix(n, "ROW("):
		return Simple(TypeStruct), nil
	case strings.HasPrefix(n, "MAP("):
		return Simple(TypeMap), nil
	case strings.HasPrefix(n, "UNION("):
		return Simple(TypeUnion), nil
	case strings.HasPrefix(n, "ENUM("):
		return Simple(TypeEnum), nil
	}

	base, params, hasParams := strings.Cut(n, "(")
	base = strings.TrimSpace(base)
	id, ok := aliases[base]
	if !ok {
		return Simple(TypeUser), nil
	}
	if id != TypeDecimal {
		// VARCHAR(20), CHAR(4) and friends carry a length we do not keep.
		return Simple(id), nil
	}

	if !hasParams {
		return DecimalType(defaultDecimalWidth, defaultDecimalScale), nil
	}
	params = strings.TrimSuffix(strings.TrimSpace(params), ")")
	ws, ss, hasScale := strings.Cut(params, ",")
	width, err := strconv.ParseUint(strings.TrimSpace(ws), 10, 8)
	if err != nil {
		return LogicalType{}, fmt.Errorf("invalid decimal width in %q: %w", name, err)
	}
	var scale uint64
	if hasScale {
		if scale, err = strconv.ParseUint(strings.TrimSpace(ss), 10, 8); err != nil {
			return LogicalType{}, fmt.Errorf("invalid decimal scale in %q: %w", name, err)
		}
	}
	if width == 0 || width > MaxDecimalWidth || scale > width {
		return LogicalType{}, fmt.Errorf("invalid decimal parameters in %q", name)
	}
	return DecimalType(uint8(width), uint8(scale)), nil
}
