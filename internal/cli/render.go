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

package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/gizmodata/duckarrow/utils"
	"github.com/jedib0t/go-pretty/v6/table"
)

const nullText = "NULL"

func renderTable(w io.Writer, res *queryResult) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, res.schema.NumFields())
	for i, f := range res.schema.Fields() {
		header[i] = f.Name
	}
	t.AppendHeader(header)

	for _, b := range res.batches {
		for i := 0; i < int(b.NumRows()); i++ {
			row := make(table.Row, b.NumCols())
			for j, col := range b.Columns() {
				row[j] = cellText(col, i)
			}
			t.AppendRow(row)
		}
	}
	t.Render()

	n := res.numRows()
	if n == 1 {
		_, _ = fmt.Fprintln(w, "(1 row)")
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", n)
	}
	return nil
}

func cellText(arr arrow.Array, i int) string {
	if arr.IsNull(i) {
		return nullText
	}
	v, err := utils.Value(arr, i)
	if err != nil {
		// nested and interval columns have no Go value form
		return arr.ValueStr(i)
	}
	switch v := v.(type) {
	case time.Time:
		if arr.DataType().ID() == arrow.DATE32 || arr.DataType().ID() == arrow.DATE64 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339Nano)
	case []byte:
		return "\\x" + hex.EncodeToString(v)
	default:
		return fmt.Sprint(v)
	}
}
