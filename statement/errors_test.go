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

package statement_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStatus(t *testing.T) {
	var errs statement.ErrorHelper

	tests := []struct {
		name     string
		cause    error
		expected duckarrow.Status
	}{
		{"unique violation", &engine.Error{Msg: "Constraint Error: duplicate key", SQLState: "23505"}, duckarrow.StatusIntegrity},
		{"generic constraint", &engine.Error{Msg: "constraint failed", SQLState: "23000"}, duckarrow.StatusIntegrity},
		{"wrapped constraint", fmt.Errorf("insert: %w", &engine.Error{Msg: "NOT NULL", SQLState: "23502"}), duckarrow.StatusIntegrity},
		{"division by zero", &engine.Error{Msg: "division by zero", SQLState: "22012"}, duckarrow.StatusInvalidData},
		{"no sqlstate", &engine.Error{Msg: "Conversion Error"}, duckarrow.StatusInvalidData},
		{"foreign error", errors.New("boom"), duckarrow.StatusInvalidData},
		{"cancelled", fmt.Errorf("%w: %w", context.Canceled, &engine.Error{SQLState: "23000"}), duckarrow.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errs.Execution(tt.cause)
			assert.Equal(t, tt.expected, duckarrow.StatusOf(err))
			assert.Equal(t, duckarrow.KindExecution, duckarrow.KindOf(err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	var errs statement.ErrorHelper
	cause := &engine.Error{Msg: "unable to open database file", VendorCode: 14, SQLState: "58030"}

	err := errs.Wrap(duckarrow.StatusIO, fmt.Errorf("open: %w", cause), "Failed to open %s database: %s", "sqlite", cause)

	var e duckarrow.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, duckarrow.StatusIO, e.Code)
	assert.Equal(t, duckarrow.KindNone, e.Kind)
	assert.EqualValues(t, 14, e.VendorCode)
	assert.Equal(t, "58030", string(e.SqlState[:]))
	assert.Contains(t, e.Msg, "unable to open database file")

	native, ok := e.Detail(duckarrow.ErrorDetailNative)
	require.True(t, ok)
	assert.IsType(t, (*duckarrow.ProtobufErrorDetail)(nil), native)

	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Same(t, cause, ee)
}
