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

// Package sqlite registers the "sqlite" engine backed by the pure Go
// SQLite driver. SQLite has no static column types, so result types come
// from declared column affinities or, for expressions, from the values.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gizmodata/duckarrow/engine"
	"github.com/gizmodata/duckarrow/engine/sqlengine"
	"github.com/google/uuid"
	"modernc.org/sqlite"
)

// Name is the registry name of the backend.
const Name = "sqlite"

// sqliteConstraint is the primary result code SQLITE_CONSTRAINT.
const sqliteConstraint = 19

func init() {
	engine.Register(Name, Open)
}

// Open opens the SQLite database file at cfg.Path. An empty path or
// ":memory:" opens a private in-memory database shared by every session
// of the returned Database.
func Open(ctx context.Context, cfg engine.Config) (engine.Database, error) {
	dsn := cfg.Path
	if dsn == "" || dsn == ":memory:" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", Dialect{}.ConvertError(err))
	}
	return sqlengine.New(db, Dialect{}, cfg), nil
}

// Dialect adapts the SQLite driver to the engine contract.
type Dialect struct {
	sqlengine.BaseDialect
}

func (Dialect) Name() string { return Name }

// ParseType applies SQLite's type affinity rules to a declared type.
// Columns without a declared type take the type of their first value.
func (Dialect) ParseType(typeName string, sample any) (engine.LogicalType, error) {
	n := strings.ToUpper(strings.TrimSpace(typeName))
	if n == "" {
		return typeOfValue(sample), nil
	}

	base, _, _ := strings.Cut(n, "(")
	switch strings.TrimSpace(base) {
	case "DECIMAL", "NUMERIC":
		return engine.ParseTypeName(n)
	case "BOOLEAN", "BOOL":
		return engine.Simple(engine.TypeBoolean), nil
	case "DATE":
		return engine.Simple(engine.TypeDate), nil
	case "TIME":
		return engine.Simple(engine.TypeTime), nil
	case "DATETIME", "TIMESTAMP":
		return engine.Simple(engine.TypeTimestamp), nil
	}

	switch {
	case strings.Contains(n, "INT"):
		return engine.Simple(engine.TypeBigInt), nil
	case strings.Contains(n, "CHAR"), strings.Contains(n, "CLOB"), strings.Contains(n, "TEXT"):
		return engine.Simple(engine.TypeVarchar), nil
	case strings.Contains(n, "BLOB"):
		return engine.Simple(engine.TypeBlob), nil
	default:
		// REAL affinity and NUMERIC affinity without parameters.
		return engine.Simple(engine.TypeDouble), nil
	}
}

func typeOfValue(v any) engine.LogicalType {
	switch v.(type) {
	case int64, int32, int:
		return engine.Simple(engine.TypeBigInt)
	case float64, float32:
		return engine.Simple(engine.TypeDouble)
	case []byte:
		return engine.Simple(engine.TypeBlob)
	case bool:
		return engine.Simple(engine.TypeBoolean)
	case time.Time:
		return engine.Simple(engine.TypeTimestamp)
	default:
		return engine.Simple(engine.TypeVarchar)
	}
}

func (Dialect) NormalizeValue(t engine.LogicalType, v any) (any, error) {
	switch t.ID {
	case engine.TypeBoolean:
		switch b := v.(type) {
		case int64:
			return b != 0, nil
		case float64:
			return b != 0, nil
		}
	case engine.TypeBigInt:
		// INTEGER affinity stores non-integral values as they are.
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			return int64(f), nil
		}
	case engine.TypeDouble:
		if i, ok := v.(int64); ok {
			return float64(i), nil
		}
	}
	return sqlengine.NormalizeCommon(t, v), nil
}

// Validate compiles query through EXPLAIN. The driver only compiles a
// statement when it first runs. Arguments are bound after compilation,
// so a missing argument means the statement compiled.
func (Dialect) Validate(ctx context.Context, conn *sql.Conn, query string) error {
	rows, err := conn.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		var se *sqlite.Error
		if !errors.As(err, &se) && strings.Contains(err.Error(), "missing argument") {
			return nil
		}
		return err
	}
	return rows.Close()
}

func (Dialect) NumParams(ctx context.Context, conn *sql.Conn, query string) int {
	return sqlengine.RawNumInput(ctx, conn, query)
}

// TotalChanges reads the number of rows modified by the session.
func (Dialect) TotalChanges(ctx context.Context, conn *sql.Conn) (int64, bool, error) {
	var n int64
	if err := conn.QueryRowContext(ctx, "SELECT total_changes()").Scan(&n); err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (d Dialect) ConvertError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return d.BaseDialect.ConvertError(err)
	}
	ee := &engine.Error{Msg: se.Error(), VendorCode: int32(se.Code())}
	if se.Code()&0xff == sqliteConstraint {
		ee.SQLState = "23000"
	}
	return ee
}
