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
	"errors"
	"fmt"
	"strings"

	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ErrorHelper builds duckarrow.Error values for a statement handle.
type ErrorHelper struct{}

// Errorf returns a duckarrow.Error with no statement kind attached.
func (ErrorHelper) Errorf(code duckarrow.Status, message string, format ...any) error {
	return duckarrow.Error{
		Code: code,
		Msg:  fmt.Sprintf(message, format...),
	}
}

// Wrap returns a duckarrow.Error with no statement kind attached that
// carries cause, its SQLSTATE and its native diagnostic.
func (h ErrorHelper) Wrap(code duckarrow.Status, cause error, message string, format ...any) error {
	return h.wrap(duckarrow.KindNone, code, cause, message, format...)
}

// Prepare reports that the engine rejected query.
func (h ErrorHelper) Prepare(query string, cause error) error {
	e := h.wrap(duckarrow.KindPrepare, duckarrow.StatusInvalidArgument, cause,
		"Can't prepare statement: '%s' - Error: %s", query, cause)
	e.Details = append(e.Details, &duckarrow.TextErrorDetail{
		Name:   duckarrow.ErrorDetailSQL,
		Detail: query,
	})
	return e
}

// Execution reports that running a prepared statement failed.
func (h ErrorHelper) Execution(cause error) error {
	return h.wrap(duckarrow.KindExecution, duckarrow.StatusInvalidData, cause,
		"An execution error has occurred: %s", cause)
}

// Fetch reports that the engine failed to produce the next chunk.
func (h ErrorHelper) Fetch(cause error) error {
	return h.wrap(duckarrow.KindFetch, duckarrow.StatusIO, cause,
		"An error occurred while fetching a result chunk: %s", cause)
}

// SchemaExport reports that a chunk or schema could not be rendered as Arrow.
func (h ErrorHelper) SchemaExport(cause error) error {
	return h.wrap(duckarrow.KindSchemaExport, duckarrow.StatusInternal, cause,
		"Unable to convert result to Arrow: %s", cause)
}

func (ErrorHelper) wrap(kind duckarrow.ErrorKind, code duckarrow.Status, cause error, message string, format ...any) duckarrow.Error {
	e := duckarrow.Error{
		Msg:   fmt.Sprintf(message, format...),
		Code:  statusFor(cause, code),
		Kind:  kind,
		Cause: cause,
	}

	var native *engine.Error
	if errors.As(cause, &native) {
		e.VendorCode = native.VendorCode
		copy(e.SqlState[:], native.SQLState)
		if isIntegrityViolation(native.SQLState) && e.Code == code {
			e.Code = duckarrow.StatusIntegrity
		}
	}
	if cause != nil {
		e.Details = append(e.Details, &duckarrow.ProtobufErrorDetail{
			Name:    duckarrow.ErrorDetailNative,
			Message: wrapperspb.String(cause.Error()),
		})
	}
	return e
}

// statusFor keeps cancellation visible through the statement error kinds.
func statusFor(cause error, fallback duckarrow.Status) duckarrow.Status {
	switch {
	case errors.Is(cause, context.Canceled):
		return duckarrow.StatusCancelled
	case errors.Is(cause, context.DeadlineExceeded):
		return duckarrow.StatusTimeout
	}
	var e duckarrow.Error
	if errors.As(cause, &e) && e.Code != duckarrow.StatusOK {
		return e.Code
	}
	return fallback
}

// isIntegrityViolation reports whether state is in SQLSTATE class 23.
func isIntegrityViolation(state string) bool {
	return strings.HasPrefix(state, "23")
}

// ParamCount reports a mismatch between bound and expected parameters.
func (h ErrorHelper) ParamCount(expected, got int) error {
	e := h.wrap(duckarrow.KindExecution, duckarrow.StatusInvalidArgument, nil,
		"An execution error has occurred: expected %d parameters, got %d", expected, got)
	return e
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func (h ErrorHelper) InvalidState(kind duckarrow.ErrorKind, message string, format ...any) error {
	return h.wrap(kind, duckarrow.StatusInvalidState, nil, message, format...)
}
