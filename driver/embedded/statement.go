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
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/gizmodata/duckarrow/utils"
)

const (
	StatementMessageOptionUnknown = "Unknown statement option"
	StatementMessageNoQuery       = "No query was set"
	StatementMessageClosed        = "Statement is closed"
)

type stmt struct {
	cnxn *connection

	query       string
	handle      *statement.Handle
	bound       arrow.RecordBatch
	chunkSize   int
	traceParent string
	closed      bool
}

func (s *stmt) SetOption(key, val string) error {
	if s.closed {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageClosed)
	}
	switch strings.ToLower(key) {
	case duckarrow.OptionKeyChunkSize:
		n, err := parseChunkSize(val)
		if err != nil {
			return err
		}
		s.chunkSize = n
		return s.reset()
	case duckarrow.OptionKeyTelemetryTraceParent:
		s.traceParent = strings.TrimSpace(val)
		return nil
	}
	return errorHelper.Errorf(duckarrow.StatusNotImplemented, "%s '%s'", StatementMessageOptionUnknown, key)
}

func (s *stmt) SetSqlQuery(query string) error {
	if s.closed {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageClosed)
	}
	if err := s.reset(); err != nil {
		return err
	}
	s.query = query
	return nil
}

// reset drops the prepared handle so that the next execution prepares
// again with the current settings.
func (s *stmt) reset() error {
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}

func (s *stmt) Prepare(ctx context.Context) error {
	_, err := s.prepared(ctx)
	return err
}

func (s *stmt) prepared(ctx context.Context) (*statement.Handle, error) {
	if s.closed {
		return nil, errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageClosed)
	}
	if s.handle != nil {
		return s.handle, nil
	}
	if s.query == "" {
		return nil, errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageNoQuery)
	}

	db := s.cnxn.db
	h, err := statement.Create(ctx, s.cnxn.conn, s.query,
		statement.WithAllocator(db.alloc),
		statement.WithLogger(db.logger),
		statement.WithTracer(db.tracer()),
		statement.WithTraceParent(s.traceParent),
		statement.WithChunkSize(s.chunkSize))
	if err != nil {
		return nil, err
	}
	s.handle = h
	return h, nil
}

func (s *stmt) Bind(_ context.Context, values arrow.RecordBatch) error {
	if s.closed {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageClosed)
	}
	if s.bound != nil {
		s.bound.Release()
		s.bound = nil
	}
	if values != nil {
		values.Retain()
		s.bound = values
	}
	return nil
}

// boundRow returns the values of bound row i, or no parameters when
// nothing is bound.
func (s *stmt) boundRow(i int) ([]any, error) {
	if s.bound == nil {
		return nil, nil
	}
	row, err := utils.RowValues(s.bound, i)
	if err != nil {
		return nil, errorHelper.Errorf(duckarrow.StatusInvalidArgument, "Cannot bind parameters: %s", err)
	}
	return row, nil
}

func (s *stmt) ExecuteQuery(ctx context.Context) (array.RecordReader, int64, error) {
	h, err := s.prepared(ctx)
	if err != nil {
		return nil, -1, err
	}
	params, err := s.boundRow(0)
	if err != nil {
		return nil, -1, err
	}
	if err := h.Execute(ctx, params...); err != nil {
		return nil, -1, err
	}
	schema, err := h.ResultSchema()
	if err != nil {
		return nil, -1, err
	}
	return newRecordReader(ctx, h, schema), -1, nil
}

// ExecuteUpdate runs the statement once per bound row and sums the
// affected counts.
func (s *stmt) ExecuteUpdate(ctx context.Context) (int64, error) {
	h, err := s.prepared(ctx)
	if err != nil {
		return -1, err
	}
	if s.bound == nil {
		return h.ExecuteUpdate(ctx)
	}

	var total int64
	for i := 0; i < int(s.bound.NumRows()); i++ {
		params, err := s.boundRow(i)
		if err != nil {
			return -1, err
		}
		n, err := h.ExecuteUpdate(ctx, params...)
		if err != nil {
			return -1, err
		}
		total += n
	}
	return total, nil
}

func (s *stmt) ExecuteSchema(ctx context.Context) (*arrow.Schema, error) {
	h, err := s.prepared(ctx)
	if err != nil {
		return nil, err
	}
	return h.GetSchema()
}

// GetParameterSchema describes the placeholders of the prepared query.
// The engine does not report parameter types, so every field is NA.
func (s *stmt) GetParameterSchema() (*arrow.Schema, error) {
	if s.handle == nil {
		return nil, errorHelper.Errorf(duckarrow.StatusInvalidState, "Statement must be prepared before GetParameterSchema")
	}
	n := s.handle.ParameterCount()
	if n < 0 {
		return nil, errorHelper.Errorf(duckarrow.StatusNotImplemented, "The engine cannot report the parameters of this statement")
	}
	fields := make([]arrow.Field, n)
	for i := range fields {
		fields[i] = arrow.Field{Name: fmt.Sprintf("%d", i), Type: arrow.Null, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func (s *stmt) Close() error {
	if s.closed {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, StatementMessageClosed)
	}
	s.closed = true
	s.cnxn.forget(s)

	if s.bound != nil {
		s.bound.Release()
		s.bound = nil
	}
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}

var _ duckarrow.StatementExecuteSchema = (*stmt)(nil)
