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

// Package engine defines the contract between the Arrow bridge and a SQL
// engine: prepared statements, result cursors that hand out columnar
// chunks, the engine's logical types and the session properties that
// influence how values are interpreted.
//
// Backends live in sub-packages (duckdb, sqlite) and register themselves
// by name; the statement package only ever talks to these interfaces.
package engine

import (
	"context"
	"math/big"
	"time"
)

// ClientProperties are the session settings that affect how values are
// interpreted. A snapshot is taken when a statement is prepared and again
// when it is executed.
type ClientProperties struct {
	// TimeZone is the IANA name used for timezone-aware timestamps.
	TimeZone string
}

// DefaultTimeZone is used when the engine reports no session time zone.
const DefaultTimeZone = "UTC"

// Interval is a calendar interval as stored by the engine.
type Interval struct {
	Months int32
	Days   int32
	Micros int64
}

// Decimal is a fixed point number: Value scaled down by 10^Scale.
type Decimal struct {
	Width uint8
	Scale uint8
	Value *big.Int
}

// Vector is one column of a DataChunk. A nil entry in Values is NULL.
//
// Value representations by type:
//
//	BOOLEAN                       bool
//	TINYINT .. BIGINT             int8 .. int64 (any Go integer is accepted)
//	UTINYINT .. UBIGINT           uint8 .. uint64
//	HUGEINT, UHUGEINT             *big.Int
//	FLOAT, DOUBLE                 float32, float64
//	DECIMAL                       Decimal, *big.Int (unscaled) or float64
//	CHAR, VARCHAR                 string
//	BLOB                          []byte
//	DATE, TIME, TIMESTAMP*        time.Time
//	INTERVAL                      Interval or time.Duration
type Vector struct {
	Type   LogicalType
	Values []any
}

// DataChunk is a bounded batch of rows in columnar form. All vectors
// have the same length.
type DataChunk struct {
	Vectors []Vector
}

// NumRows reports the number of rows in the chunk.
func (c *DataChunk) NumRows() int {
	if c == nil || len(c.Vectors) == 0 {
		return 0
	}
	return len(c.Vectors[0].Values)
}

// NumColumns reports the number of columns in the chunk.
func (c *DataChunk) NumColumns() int {
	if c == nil {
		return 0
	}
	return len(c.Vectors)
}

// Conn is an open engine session. It is used by one goroutine at a time.
type Conn interface {
	// Prepare compiles query. The returned statement is independent of
	// any other statement on the connection.
	Prepare(ctx context.Context, query string) (PreparedStatement, error)
	// ClientProperties evaluates the current session settings.
	ClientProperties(ctx context.Context) (ClientProperties, error)
	Close() error
}

// PreparedStatement is a compiled statement that can be executed any
// number of times.
type PreparedStatement interface {
	// ColumnNames and ColumnTypes describe the result. Both are nil when
	// the engine can only describe the result after execution.
	ColumnNames() []string
	ColumnTypes() []LogicalType
	// NumParams is the number of parameter placeholders, or -1 when the
	// engine cannot tell.
	NumParams() int
	// ClientProperties is the session snapshot taken at prepare time.
	ClientProperties() ClientProperties
	// Execute runs the statement with params bound positionally. Only one
	// result of a statement is open at a time; executing again
	// invalidates the previous one.
	Execute(ctx context.Context, params []any) (QueryResult, error)
	Close() error
}

// ChunkSizer is implemented by prepared statements whose chunk size can
// be changed for subsequent executions.
type ChunkSizer interface {
	SetChunkSize(rows int)
}

// QueryResult is a cursor over the chunks produced by one execution.
type QueryResult interface {
	ColumnNames() []string
	ColumnTypes() []LogicalType
	// ClientProperties is the session snapshot taken at execution time.
	ClientProperties() ClientProperties
	// Fetch returns the next chunk, or nil when the result is exhausted.
	Fetch(ctx context.Context) (*DataChunk, error)
	Close() error
}

// Error is a diagnostic raised by an engine backend.
type Error struct {
	Msg        string
	VendorCode int32
	SQLState   string
}

func (e *Error) Error() string { return e.Msg }

// DateOnly truncates t to midnight of its calendar day in UTC, which is
// how DATE values are normalized before conversion.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
