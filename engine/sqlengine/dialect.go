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

package sqlengine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/gizmodata/duckarrow/engine"
)

// Dialect adapts one database/sql driver to the engine contract.
type Dialect interface {
	// Name is the registry name of the backend.
	Name() string
	// ParseType maps a column type name reported by the driver to a
	// logical type. sample is the first non-NULL value of the column, or
	// nil when typeName alone must decide.
	ParseType(typeName string, sample any) (engine.LogicalType, error)
	// NormalizeValue converts a scanned driver value to the engine value
	// representation of t.
	NormalizeValue(t engine.LogicalType, v any) (any, error)
	// Validate compiles query without running it, for drivers that
	// defer compilation to the first execution.
	Validate(ctx context.Context, conn *sql.Conn, query string) error
	// Describe reports the result columns of query without running it.
	// ok is false when the dialect cannot describe the statement.
	Describe(ctx context.Context, conn *sql.Conn, query string, numParams int) (names []string, types []engine.LogicalType, ok bool)
	// NumParams counts the placeholders of query, or returns -1.
	NumParams(ctx context.Context, conn *sql.Conn, query string) int
	// ClientProperties evaluates the session settings.
	ClientProperties(ctx context.Context, conn *sql.Conn) (engine.ClientProperties, error)
	// TotalChanges reads a session-wide counter of modified rows. A
	// statement that returns no columns reports the difference of the
	// counter across its execution as a single BIGINT "Count" row. ok is
	// false when the driver reports DML outcomes itself.
	TotalChanges(ctx context.Context, conn *sql.Conn) (n int64, ok bool, err error)
	// ConvertError maps a driver error to an *engine.Error.
	ConvertError(err error) error
}

// BaseDialect provides defaults for every Dialect method except Name.
// Dialects embed it and override what their driver supports.
type BaseDialect struct{}

func (BaseDialect) ParseType(typeName string, _ any) (engine.LogicalType, error) {
	return engine.ParseTypeName(typeName)
}

func (BaseDialect) NormalizeValue(t engine.LogicalType, v any) (any, error) {
	return NormalizeCommon(t, v), nil
}

func (BaseDialect) Validate(context.Context, *sql.Conn, string) error { return nil }

func (BaseDialect) Describe(context.Context, *sql.Conn, string, int) ([]string, []engine.LogicalType, bool) {
	return nil, nil, false
}

func (BaseDialect) NumParams(context.Context, *sql.Conn, string) int { return -1 }

func (BaseDialect) ClientProperties(context.Context, *sql.Conn) (engine.ClientProperties, error) {
	return engine.ClientProperties{TimeZone: engine.DefaultTimeZone}, nil
}

func (BaseDialect) TotalChanges(context.Context, *sql.Conn) (int64, bool, error) {
	return 0, false, nil
}

func (BaseDialect) ConvertError(err error) error {
	if err == nil {
		return nil
	}
	var ee *engine.Error
	if errors.As(err, &ee) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &engine.Error{Msg: err.Error()}
}

// NormalizeCommon applies the conversions every driver needs: text
// columns scanned as bytes become strings.
func NormalizeCommon(t engine.LogicalType, v any) any {
	if b, ok := v.([]byte); ok {
		switch t.ID {
		case engine.TypeChar, engine.TypeVarchar:
			return string(b)
		}
	}
	return v
}

// RawNumInput prepares query directly on the driver connection to learn
// its placeholder count. It returns -1 when the driver cannot tell.
func RawNumInput(ctx context.Context, conn *sql.Conn, query string) int {
	n := -1
	_ = conn.Raw(func(dc any) error {
		prep, ok := dc.(driver.ConnPrepareContext)
		if !ok {
			return nil
		}
		st, err := prep.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		n = st.NumInput()
		return st.Close()
	})
	return n
}
