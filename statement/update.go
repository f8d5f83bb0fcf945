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
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// ExecuteUpdate runs a DML statement and reduces its outcome to an
// affected-row count.
//
// Engines report DML results as a single row holding one BIGINT count.
// When the first batch has exactly that shape and the value is not NULL
// it is the answer; otherwise the number of rows in the first batch is.
// A statement that yields no batch at all affected zero rows.
func (h *Handle) ExecuteUpdate(ctx context.Context, params ...any) (int64, error) {
	if err := h.Execute(ctx, params...); err != nil {
		return 0, err
	}

	batch, err := h.FetchResult(ctx)
	if err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, nil
	}
	defer batch.Release()

	// The count is all an update yields; release the cursor now rather
	// than holding it until the next Execute.
	if h.state == StateExecuted {
		h.state = StateExhausted
		if err := h.closeResult(); err != nil {
			h.logger.WarnContext(ctx, "closing update result", "id", h.ID, "error", err)
		}
	}
	return affectedRows(batch), nil
}

func affectedRows(batch *Batch) int64 {
	rec := batch.Record()
	if rec.NumRows() == 1 && rec.NumCols() == 1 {
		if counts, ok := rec.Column(0).(*array.Int64); ok && counts.IsValid(0) {
			return counts.Value(0)
		}
	}
	return rec.NumRows()
}
