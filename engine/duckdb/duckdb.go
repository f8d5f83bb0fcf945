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

// Package duckdb registers the "duckdb" engine backed by the embedded
// DuckDB database through its database/sql driver.
//
// To use it, import the package for its side effects:
//
//	import _ "github.com/gizmodata/duckarrow/engine/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goduckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/gizmodata/duckarrow/engine/sqlengine"
)

// Name is the registry name of the backend.
const Name = "duckdb"

func init() {
	engine.Register(Name, Open)
}

// Open opens a DuckDB database at cfg.Path, in memory when the path is
// empty or ":memory:".
func Open(ctx context.Context, cfg engine.Config) (engine.Database, error) {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", Dialect{}.ConvertError(err))
	}
	return sqlengine.New(db, Dialect{}, cfg), nil
}

// Dialect adapts the DuckDB driver to the engine contract.
type Dialect struct {
	sqlengine.BaseDialect
}

func (Dialect) Name() string { return Name }

func (Dialect) NormalizeValue(t engine.LogicalType, v any) (any, error) {
	switch v := v.(type) {
	case goduckdb.Decimal:
		return engine.Decimal{Width: v.Width, Scale: v.Scale, Value: v.Value}, nil
	case *goduckdb.Decimal:
		return engine.Decimal{Width: v.Width, Scale: v.Scale, Value: v.Value}, nil
	case goduckdb.Interval:
		return engine.Interval{Months: v.Months, Days: v.Days, Micros: v.Micros}, nil
	}
	return sqlengine.NormalizeCommon(t, v), nil
}

// Describe asks DuckDB for the result columns of query. Statements with
// parameters or without a result (DML, DDL) cannot be described.
func (Dialect) Describe(ctx context.Context, conn *sql.Conn, query string, numParams int) ([]string, []engine.LogicalType, bool) {
	if numParams != 0 {
		return nil, nil, false
	}
	q := strings.TrimSuffix(strings.TrimSpace(query), ";")
	rows, err := conn.QueryContext(ctx, "DESCRIBE "+q)
	if err != nil {
		return nil, nil, false
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil || len(cols) < 2 {
		return nil, nil, false
	}

	var (
		names []string
		types []engine.LogicalType
	)
	for rows.Next() {
		dest := make([]any, len(cols))
		var name, typeName string
		dest[0], dest[1] = &name, &typeName
		for i := 2; i < len(dest); i++ {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, false
		}
		t, err := engine.ParseTypeName(typeName)
		if err != nil {
			return nil, nil, false
		}
		names = append(names, name)
		types = append(types, t)
	}
	if rows.Err() != nil || len(names) == 0 {
		return nil, nil, false
	}
	return names, types, true
}

func (Dialect) NumParams(ctx context.Context, conn *sql.Conn, query string) int {
	return sqlengine.RawNumInput(ctx, conn, query)
}

// ClientProperties reads the session time zone. Builds without the ICU
// extension have no TimeZone setting and report UTC.
func (Dialect) ClientProperties(ctx context.Context, conn *sql.Conn) (engine.ClientProperties, error) {
	var tz string
	if err := conn.QueryRowContext(ctx, "SELECT current_setting('TimeZone')").Scan(&tz); err != nil || tz == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return engine.ClientProperties{}, ctxErr
		}
		tz = engine.DefaultTimeZone
	}
	return engine.ClientProperties{TimeZone: tz}, nil
}

func (d Dialect) ConvertError(err error) error {
	var de *goduckdb.Error
	if !errors.As(err, &de) {
		return d.BaseDialect.ConvertError(err)
	}
	ee := &engine.Error{Msg: de.Msg, VendorCode: int32(de.Type)}
	switch de.Type {
	case goduckdb.ErrorTypeParser:
		ee.SQLState = "42601"
	case goduckdb.ErrorTypeCatalog:
		ee.SQLState = "42P01"
	case goduckdb.ErrorTypeConstraint:
		ee.SQLState = "23000"
	case goduckdb.ErrorTypeDivideByZero:
		ee.SQLState = "22012"
	case goduckdb.ErrorTypeConversion:
		ee.SQLState = "22018"
	}
	return ee
}
