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

// Package cdata hands statement output to native consumers through the
// Arrow C Data Interface.
package cdata

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcdata "github.com/apache/arrow-go/v18/arrow/cdata"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/statement"
)

type (
	CArrowSchema      = arrowcdata.CArrowSchema
	CArrowArray       = arrowcdata.CArrowArray
	CArrowArrayStream = arrowcdata.CArrowArrayStream
)

var errorHelper statement.ErrorHelper

// ExportBatch moves b into the C structs. The consumer owns outSchema
// and outArray afterwards and must call their release callbacks; b is
// released on success.
func ExportBatch(b *statement.Batch, outSchema *CArrowSchema, outArray *CArrowArray) (err error) {
	if b == nil || b.Released() {
		return errorHelper.InvalidState(duckarrow.KindSchemaExport, "cannot export a released batch")
	}
	if outSchema == nil || outArray == nil {
		return errorHelper.SchemaExport(fmt.Errorf("nil output structure"))
	}

	defer func() {
		if r := recover(); r != nil {
			err = errorHelper.SchemaExport(fmt.Errorf("%v", r))
		}
	}()

	rec := b.Detach()
	if rec == nil {
		return errorHelper.InvalidState(duckarrow.KindSchemaExport, "cannot export a released batch")
	}
	defer rec.Release()
	arrowcdata.ExportArrowRecordBatch(rec, outArray, outSchema)
	return nil
}

// ExportSchema writes schema into out. The consumer owns out afterwards.
func ExportSchema(schema *arrow.Schema, out *CArrowSchema) (err error) {
	if schema == nil || out == nil {
		return errorHelper.SchemaExport(fmt.Errorf("nil schema"))
	}
	defer func() {
		if r := recover(); r != nil {
			err = errorHelper.SchemaExport(fmt.Errorf("%v", r))
		}
	}()
	arrowcdata.ExportArrowSchema(schema, out)
	return nil
}

// ExportReader exposes rdr as an ArrowArrayStream. The stream takes its
// own reference to rdr.
func ExportReader(rdr array.RecordReader, out *CArrowArrayStream) error {
	if rdr == nil || out == nil {
		return errorHelper.SchemaExport(fmt.Errorf("nil reader"))
	}
	arrowcdata.ExportRecordReader(rdr, out)
	return nil
}

// ReleaseSchema and ReleaseArray call the release callbacks of
// structures that were exported but never handed to a consumer.
func ReleaseSchema(s *CArrowSchema) { arrowcdata.ReleaseCArrowSchema(s) }

func ReleaseArray(a *CArrowArray) { arrowcdata.ReleaseCArrowArray(a) }
