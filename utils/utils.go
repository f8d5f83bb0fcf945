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

// Package utils holds Arrow helpers shared by the driver and the CLI.
package utils

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// RemoveSchemaMetadata returns schema without schema or field metadata.
func RemoveSchemaMetadata(schema *arrow.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Fields()))
	for i, field := range schema.Fields() {
		fields[i] = removeFieldMetadata(field)
	}
	return arrow.NewSchema(fields, nil)
}

func removeFieldMetadata(field arrow.Field) arrow.Field {
	fieldType := field.Type

	switch ty := field.Type.(type) {
	case *arrow.ListType:
		fieldType = arrow.ListOfField(removeFieldMetadata(ty.ElemField()))
	case *arrow.FixedSizeListType:
		fieldType = arrow.FixedSizeListOfField(ty.Len(), removeFieldMetadata(ty.ElemField()))
	case *arrow.StructType:
		children := make([]arrow.Field, ty.NumFields())
		for i, child := range ty.Fields() {
			children[i] = removeFieldMetadata(child)
		}
		fieldType = arrow.StructOf(children...)
	}

	return arrow.Field{
		Name:     field.Name,
		Type:     fieldType,
		Nullable: field.Nullable,
	}
}

// RowValues returns the values of row i of rec as Go values suitable for
// binding as statement parameters. NULL becomes nil.
func RowValues(rec arrow.RecordBatch, i int) ([]any, error) {
	if i < 0 || int64(i) >= rec.NumRows() {
		return nil, fmt.Errorf("row %d out of range [0, %d)", i, rec.NumRows())
	}
	values := make([]any, rec.NumCols())
	for c, col := range rec.Columns() {
		v, err := Value(col, i)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", c+1, rec.ColumnName(c), err)
		}
		values[c] = v
	}
	return values, nil
}

// Value returns element i of arr as a Go value.
func Value(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return a.Value(i), nil
	case *array.Int16:
		return a.Value(i), nil
	case *array.Int32:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return a.Value(i), nil
	case *array.Uint16:
		return a.Value(i), nil
	case *array.Uint32:
		return a.Value(i), nil
	case *array.Uint64:
		return a.Value(i), nil
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...), nil
	case *array.LargeBinary:
		return append([]byte(nil), a.Value(i)...), nil
	case *array.Date32:
		return a.Value(i).ToTime(), nil
	case *array.Date64:
		return a.Value(i).ToTime(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit), nil
	case *array.Decimal32, *array.Decimal64, *array.Decimal128, *array.Decimal256:
		// decimals are bound as text to keep their scale
		return a.ValueStr(i), nil
	case *array.Null:
		return nil, nil
	}
	return nil, fmt.Errorf("cannot bind values of type %s", arr.DataType())
}
