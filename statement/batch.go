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
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
)

// Batch is one exported chunk of a result. It owns exactly one reference
// to its record, dropped by Release.
type Batch struct {
	rec      arrow.RecordBatch
	released atomic.Bool
}

func newBatch(rec arrow.RecordBatch) *Batch {
	return &Batch{rec: rec}
}

// Record returns the batch's record. It is valid until Release; callers
// that keep it longer must Retain it.
func (b *Batch) Record() arrow.RecordBatch { return b.rec }

// Schema returns the schema of the batch.
func (b *Batch) Schema() *arrow.Schema { return b.rec.Schema() }

// NumRows returns the number of rows in the batch.
func (b *Batch) NumRows() int64 { return b.rec.NumRows() }

// Released reports whether Release has been called.
func (b *Batch) Released() bool { return b.released.Load() }

// Release drops the batch's reference to its record. Only the first call
// has an effect.
func (b *Batch) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.rec.Release()
	}
}

// Detach hands the record over to the caller, who becomes responsible
// for releasing it. The batch is released afterwards.
func (b *Batch) Detach() arrow.RecordBatch {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	return b.rec
}
