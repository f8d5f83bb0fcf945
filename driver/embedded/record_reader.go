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

package embedded

import (
	"context"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/gizmodata/duckarrow/statement"
)

// reader streams the batches of one execution. It is valid until the
// statement executes again or is closed.
type reader struct {
	refCount int64
	ctx      context.Context
	h        *statement.Handle
	schema   *arrow.Schema

	cur  *statement.Batch
	err  error
	done bool
}

func newRecordReader(ctx context.Context, h *statement.Handle, schema *arrow.Schema) *reader {
	return &reader{refCount: 1, ctx: ctx, h: h, schema: schema}
}

func (r *reader) Retain() {
	atomic.AddInt64(&r.refCount, 1)
}

func (r *reader) Release() {
	if atomic.AddInt64(&r.refCount, -1) == 0 {
		if r.cur != nil {
			r.cur.Release()
			r.cur = nil
		}
		r.done = true
	}
}

func (r *reader) Err() error {
	return r.err
}

func (r *reader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.done {
		return false
	}

	b, err := r.h.FetchResult(r.ctx)
	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	if b == nil {
		r.done = true
		return false
	}
	r.cur = b
	return true
}

func (r *reader) Schema() *arrow.Schema {
	return r.schema
}

func (r *reader) RecordBatch() arrow.RecordBatch {
	if r.cur == nil {
		return nil
	}
	return r.cur.Record()
}

// Deprecated: use RecordBatch.
func (r *reader) Record() arrow.RecordBatch {
	return r.RecordBatch()
}

var _ array.RecordReader = (*reader)(nil)
