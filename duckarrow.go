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

// Package duckarrow bridges a SQL engine's prepared statements and
// columnar result chunks into Apache Arrow record batches.
//
// The root package holds the pieces shared by every layer: the error
// taxonomy, status codes, option keys and the ADBC-style interfaces
// implemented by driver/embedded. The engine-facing core lives in the
// statement package.
//
// Handles are single-writer: callers serialize access to a statement,
// while distinct statements on distinct connections may be used from
// different goroutines.
package duckarrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// ErrorDetail is additional engine-specific error metadata.
//
// This allows the bridge to return structured information (the failing
// SQL text, the engine's native diagnostic) without encoding it in the
// error message.
type ErrorDetail interface {
	// Key identifies the detail, e.g. ErrorDetailSQL.
	Key() string
	// Serialize the detail value to a byte array for interoperability with C/C++.
	Serialize() ([]byte, error)
}

// Well known detail keys.
const (
	// ErrorDetailSQL carries the statement text a PrepareError refers to.
	ErrorDetailSQL = "duckarrow.sql"
	// ErrorDetailNative carries the engine's own diagnostic message.
	ErrorDetailNative = "duckarrow.native_error"
)

// ProtobufErrorDetail is an ErrorDetail backed by a Protobuf message.
type ProtobufErrorDetail struct {
	Name    string
	Message proto.Message
}

func (d *ProtobufErrorDetail) Key() string {
	return d.Name
}

// Serialize serializes the Protobuf message (wrapped in Any).
func (d *ProtobufErrorDetail) Serialize() ([]byte, error) {
	any, err := anypb.New(d.Message)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(any)
}

// TextErrorDetail is an ErrorDetail backed by a human-readable string.
type TextErrorDetail struct {
	Name   string
	Detail string
}

func (d *TextErrorDetail) Key() string {
	return d.Name
}

func (d *TextErrorDetail) Serialize() ([]byte, error) {
	return []byte(d.Detail), nil
}

// Error is the detailed error for an operation
type Error struct {
	// Msg is a string representing a human readable error message
	Msg string
	// Code is the status representing this error
	Code Status
	// Kind says which stage of the statement lifecycle failed. It is
	// KindNone for errors raised outside of a statement operation.
	Kind ErrorKind
	// VendorCode is an engine-specific error code, if applicable
	VendorCode int32
	// SqlState is a SQLSTATE error code, if provided, as defined
	// by the SQL:2003 standard. If not set, it will be "\0\0\0\0\0"
	SqlState [5]byte
	// Details is an array of additional engine-specific error details.
	Details []ErrorDetail
	// Cause is the underlying error, if any. It is not part of Error().
	Cause error
}

func (e Error) Error() string {
	// Don't include a NUL in the string since C Data Interface uses char* (and
	// don't include the extra cruft if not needed in the first place)
	if e.SqlState[0] != 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Msg, string(e.SqlState[:]))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the cause so that errors.Is and errors.As reach the
// engine error.
func (e Error) Unwrap() error {
	return e.Cause
}

// Detail returns the detail registered under key, if any.
func (e Error) Detail(key string) (ErrorDetail, bool) {
	for _, d := range e.Details {
		if d.Key() == key {
			return d, true
		}
	}
	return nil, false
}

// KindOf returns the ErrorKind of err, or KindNone if err is not an Error.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// StatusOf returns the Status of err. A nil error is StatusOK and a
// foreign error is StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return StatusUnknown
}

// ErrorKind classifies statement failures by lifecycle stage.
type ErrorKind uint8

const (
	// Not raised by a statement operation.
	KindNone ErrorKind = iota // None
	// The engine rejected the statement text.
	KindPrepare // PrepareError
	// The engine failed while executing a prepared statement.
	KindExecution // ExecutionError
	// The engine failed while producing the next result chunk.
	KindFetch // FetchError
	// A result chunk or schema could not be converted to Arrow.
	KindSchemaExport // SchemaExportError
)

var errorKindNames = [...]string{
	KindNone:         "None",
	KindPrepare:      "PrepareError",
	KindExecution:    "ExecutionError",
	KindFetch:        "FetchError",
	KindSchemaExport: "SchemaExportError",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Status represents an error code for operations that may fail
type Status uint8

const (
	// No Error
	StatusOK Status = iota // OK
	// An unknown error occurred.
	StatusUnknown // Unknown
	// The operation is not implemented or supported.
	StatusNotImplemented // Not Implemented
	// A requested resource was not found.
	StatusNotFound // Not Found
	// A requested resource already exists
	StatusAlreadyExists // Already Exists
	// The arguments are invalid, likely a programming error.
	//
	// For instance, the statement text may not parse, or the number of
	// bound parameters may not match the statement.
	StatusInvalidArgument // Invalid Argument
	// The preconditions for the operation are not met, likely a
	// programming error.
	//
	// For instance, fetching from a statement that was never executed.
	StatusInvalidState // Invalid State
	// Invalid data was processed (not a programming error)
	//
	// For instance, a division by zero may have occurred during query
	// execution.
	StatusInvalidData // Invalid Data
	// The database's integrity was affected.
	//
	// For instance, a uniqueness constraint may have been violated.
	StatusIntegrity // Integrity Issue
	// An error internal to the bridge or engine occurred.
	StatusInternal // Internal
	// An I/O error occurred while reading results.
	StatusIO // I/O
	// The operation was cancelled, not due to a timeout.
	StatusCancelled // Cancelled
	// The operation was cancelled due to a timeout.
	StatusTimeout // Timeout
	// Authentication failed.
	StatusUnauthenticated // Unauthenticated
	// The client is not authorized to perform the given operation.
	StatusUnauthorized // Unauthorized
)

var statusNames = [...]string{
	StatusOK:              "OK",
	StatusUnknown:         "Unknown",
	StatusNotImplemented:  "Not Implemented",
	StatusNotFound:        "Not Found",
	StatusAlreadyExists:   "Already Exists",
	StatusInvalidArgument: "Invalid Argument",
	StatusInvalidState:    "Invalid State",
	StatusInvalidData:     "Invalid Data",
	StatusIntegrity:       "Integrity Issue",
	StatusInternal:        "Internal",
	StatusIO:              "I/O",
	StatusCancelled:       "Cancelled",
	StatusTimeout:         "Timeout",
	StatusUnauthenticated: "Unauthenticated",
	StatusUnauthorized:    "Unauthorized",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// Canonical option values
const (
	// OptionKeyURI is the database location. Empty or ":memory:" opens an
	// in-memory database.
	OptionKeyURI = "uri"
	// OptionKeyEngine selects the registered engine backend (duckdb, sqlite).
	OptionKeyEngine = "duckarrow.engine"
	// OptionKeyChunkSize bounds the number of rows per fetched chunk for
	// engines that let the caller choose.
	OptionKeyChunkSize = "duckarrow.statement.chunk_size"
	// EXPERIMENTAL. Sets/Gets the trace parent on OpenTelemetry traces
	OptionKeyTelemetryTraceParent = "duckarrow.telemetry.trace_parent"
)

// EXPERIMENTAL. Traces Telemetry exporter option type
type OptionTelemetryExporter string

// EXPERIMENTAL. Traces Telemetry exporter options
const (
	TelemetryExporterNone    OptionTelemetryExporter = "none"
	TelemetryExporterOtlp    OptionTelemetryExporter = "otlp"
	TelemetryExporterConsole OptionTelemetryExporter = "console"
	// TelemetryExporterFile writes spans as JSON lines to rotating files
	// under the user configuration directory.
	TelemetryExporterFile OptionTelemetryExporter = "duckarrow_file"
)

// Driver is the entry point for the interface. It is similar to
// [database/sql.Driver] taking a map of keys and values as options
// to initialize a [Connection] to the database.
type Driver interface {
	NewDatabase(opts map[string]string) (Database, error)
}

type Database interface {
	SetOptions(map[string]string) error
	Open(ctx context.Context) (Connection, error)

	// Close closes this database and releases any associated resources.
	Close() error
}

// Connection is an established session with the engine. Statements
// created from it share it but never close it.
type Connection interface {
	// NewStatement initializes a new statement object tied to this
	// connection.
	NewStatement() (Statement, error)

	// Close closes this connection and releases any associated resources.
	Close() error
}

// Statement is a container for all state needed to execute a database
// query, such as the query itself, parameters for prepared statements,
// driver parameters, etc.
//
// Statements may represent a single query or a prepared statement.
//
// Statements are not thread-safe.
type Statement interface {
	// Close releases any relevant resources associated with this statement
	// and closes it (particularly if it is a prepared statement).
	//
	// A statement instance should not be used after Close is called.
	Close() error

	// SetOption sets a string option on this statement
	SetOption(key, val string) error

	// SetSqlQuery sets the query string to be executed.
	//
	// The query can then be executed with any of the Execute methods.
	// For queries expected to be executed repeatedly, Prepare should be
	// called before execution.
	SetSqlQuery(query string) error

	// ExecuteQuery executes the current query or prepared statement
	// and returns a RecordReader for the results along with the number
	// of rows affected if known, otherwise it will be -1.
	//
	// This invalidates any prior result sets on this statement.
	ExecuteQuery(context.Context) (array.RecordReader, int64, error)

	// ExecuteUpdate executes a statement that does not generate a result
	// set. It returns the number of rows affected.
	ExecuteUpdate(context.Context) (int64, error)

	// Prepare turns this statement into a prepared statement to be executed
	// multiple times. This invalidates any prior result sets.
	Prepare(context.Context) error

	// Bind uses an arrow record batch to bind parameters to the query.
	//
	// ExecuteQuery binds the first row; ExecuteUpdate executes once per
	// row and sums the affected counts. The statement retains values and
	// releases it when another record is bound or the statement is closed.
	Bind(ctx context.Context, values arrow.RecordBatch) error

	// GetParameterSchema returns an Arrow schema representation of
	// the expected parameters to be bound. Parameter types are not
	// known to the engine ahead of binding so every field is NA.
	GetParameterSchema() (*arrow.Schema, error)
}

// StatementExecuteSchema is a Statement that also supports ExecuteSchema.
type StatementExecuteSchema interface {
	// ExecuteSchema gets the schema of the result set of a query without executing it.
	ExecuteSchema(context.Context) (*arrow.Schema, error)
}
