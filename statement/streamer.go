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

	"github.com/gizmodata/duckarrow"
	"go.opentelemetry.io/otel/attribute"
)

// FetchResult returns the next batch of the current result.
//
// When no rows remain it returns (nil, nil): the stream is exhausted and
// every further call returns the same. This is distinct from a batch with
// zero rows, which some statements legitimately produce. Engine faults
// are FetchErrors; conversion faults are SchemaExportErrors. Either one
// fails the stream: later calls return the same error, never (nil, nil).
func (h *Handle) FetchResult(ctx context.Context) (*Batch, error) {
	switch h.state {
	case StateClosed:
		return nil, h.errs.InvalidState(duckarrow.KindFetch, "cannot fetch from a closed statement")
	case StateCreated:
		return nil, h.errs.InvalidState(duckarrow.KindFetch, "statement must be executed before fetching results")
	case StateExhausted:
		return nil, nil
	case StateFailed:
		return nil, h.failed
	}

	ctx, span := h.startSpan(ctx, "statement.FetchResult")
	defer span.End()

	chunk, err := h.result.Fetch(ctx)
	if err != nil {
		err = h.errs.Fetch(err)
		h.logger.DebugContext(ctx, "fetch failed", "id", h.ID, "error", err)
		return nil, endSpan(span, h.fail(ctx, err))
	}
	if chunk == nil {
		h.state = StateExhausted
		if err := h.closeResult(); err != nil {
			h.logger.WarnContext(ctx, "closing exhausted result", "id", h.ID, "error", err)
		}
		h.logger.DebugContext(ctx, "result exhausted", "id", h.ID)
		return nil, nil
	}

	rec, err := recordFromChunk(h.alloc, h.shape.schema, h.shape.types, chunk)
	if err != nil {
		return nil, endSpan(span, h.fail(ctx, h.errs.SchemaExport(err)))
	}
	span.SetAttributes(attribute.Int64("duckarrow.batch.rows", rec.NumRows()))
	return newBatch(rec), nil
}

// fail parks the handle in StateFailed with err and drops the cursor.
func (h *Handle) fail(ctx context.Context, err error) error {
	h.state = StateFailed
	h.failed = err
	if cerr := h.closeResult(); cerr != nil {
		h.logger.WarnContext(ctx, "closing failed result", "id", h.ID, "error", cerr)
	}
	return err
}
