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

// Package statement implements the bridge between engine prepared
// statements and Arrow: a Handle owns one prepared statement on a shared
// connection, executes it, describes its result and streams the result
// out as Arrow record batches.
//
// A Handle is single-writer. Concurrency comes from using independent
// handles on independent connections.
package statement

import (
	"context"
	"log/slog"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gizmodata/duckarrow/statement"

// State is the lifecycle position of a Handle.
type State uint8

const (
	// StateCreated: prepared, not executed (or the last execution failed).
	StateCreated State = iota
	// StateExecuted: a result cursor is open.
	StateExecuted
	// StateExhausted: the last result has been fully fetched.
	StateExhausted
	// StateFailed: fetching the last result failed; every further fetch
	// reports the same error until the next Execute.
	StateFailed
	// StateClosed: all engine resources have been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateExecuted:
		return "executed"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAllocator sets the allocator used for exported record batches.
func WithAllocator(alloc memory.Allocator) Option {
	return func(h *Handle) {
		if alloc != nil {
			h.alloc = alloc
		}
	}
}

// WithTracer sets the tracer used for statement spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(h *Handle) {
		if tracer != nil {
			h.tracer = tracer
		}
	}
}

// WithTraceParent links statement spans to an external W3C traceparent.
func WithTraceParent(traceParent string) Option {
	return func(h *Handle) { h.traceParent = traceParent }
}

// WithChunkSize asks the engine for at most rows rows per chunk. Engines
// that choose their own chunk size ignore it.
func WithChunkSize(rows int) Option {
	return func(h *Handle) { h.chunkSize = rows }
}

// resultShape is the column layout of one execution.
type resultShape struct {
	names  []string
	types  []engine.LogicalType
	props  engine.ClientProperties
	schema *arrow.Schema
}

// Handle owns one prepared statement and its current result cursor. The
// connection is shared with the caller, who keeps ownership of it.
type Handle struct {
	ID    string
	query string

	conn   engine.Conn
	stmt   engine.PreparedStatement
	result engine.QueryResult
	shape  *resultShape
	params []any
	state  State
	failed error

	alloc       memory.Allocator
	logger      *slog.Logger
	tracer      trace.Tracer
	traceParent string
	chunkSize   int
	errs        ErrorHelper
}

// Create prepares query on conn. When the engine rejects the text a
// PrepareError is returned and no handle is produced.
func Create(ctx context.Context, conn engine.Conn, query string, opts ...Option) (*Handle, error) {
	h := &Handle{
		ID:     uuid.NewString(),
		query:  query,
		conn:   conn,
		alloc:  memory.DefaultAllocator,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx, span := h.startSpan(ctx, "statement.Create")
	defer span.End()

	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		err = h.errs.Prepare(query, err)
		h.logger.DebugContext(ctx, "prepare failed", "id", h.ID, "error", err)
		return nil, endSpan(span, err)
	}
	h.stmt = stmt
	if cs, ok := stmt.(engine.ChunkSizer); ok && h.chunkSize > 0 {
		cs.SetChunkSize(h.chunkSize)
	}
	h.logger.DebugContext(ctx, "statement prepared", "id", h.ID, "params", stmt.NumParams())
	return h, nil
}

// Query returns the statement text the handle was created with.
func (h *Handle) Query() string { return h.query }

// State reports the lifecycle state of the handle.
func (h *Handle) State() State { return h.state }

// ParameterCount is the number of placeholders in the statement, or -1
// if the engine cannot tell before binding.
func (h *Handle) ParameterCount() int {
	if h.stmt == nil {
		return -1
	}
	return h.stmt.NumParams()
}

// Execute binds params positionally and runs the statement. Any result
// of a previous execution is discarded first. On failure the handle stays
// usable: GetSchema still works and Execute may be retried.
func (h *Handle) Execute(ctx context.Context, params ...any) error {
	if h.state == StateClosed {
		return h.errs.InvalidState(duckarrow.KindExecution, "cannot execute a closed statement")
	}

	ctx, span := h.startSpan(ctx, "statement.Execute")
	defer span.End()
	span.SetAttributes(attribute.Int("duckarrow.statement.params", len(params)))

	if n := h.stmt.NumParams(); n >= 0 && n != len(params) {
		return endSpan(span, h.errs.ParamCount(n, len(params)))
	}

	if err := h.closeResult(); err != nil {
		h.logger.WarnContext(ctx, "closing previous result", "id", h.ID, "error", err)
	}
	h.params = slices.Clone(params)
	h.state = StateCreated
	h.failed = nil

	res, err := h.stmt.Execute(ctx, h.params)
	if err != nil {
		err = h.errs.Execution(err)
		h.logger.DebugContext(ctx, "execution failed", "id", h.ID, "error", err)
		return endSpan(span, err)
	}

	names, types, props := res.ColumnNames(), res.ColumnTypes(), res.ClientProperties()
	h.result = res
	h.shape = &resultShape{
		names:  names,
		types:  types,
		props:  props,
		schema: SchemaFor(names, types, props),
	}
	h.state = StateExecuted
	h.logger.DebugContext(ctx, "statement executed", "id", h.ID, "columns", len(types), "time_zone", props.TimeZone)
	return nil
}

// GetSchema describes the result of the statement. Before the first
// execution it is derived from the prepared statement and the session
// properties captured at prepare time. Each call returns a new schema.
func (h *Handle) GetSchema() (*arrow.Schema, error) {
	if h.state == StateClosed {
		return nil, h.errs.InvalidState(duckarrow.KindSchemaExport, "cannot describe a closed statement")
	}
	if types := h.stmt.ColumnTypes(); types != nil {
		return SchemaFor(h.stmt.ColumnNames(), types, h.stmt.ClientProperties()), nil
	}
	if h.shape != nil {
		return SchemaFor(h.shape.names, h.shape.types, h.shape.props), nil
	}
	return nil, h.errs.InvalidState(duckarrow.KindSchemaExport,
		"the result of '%s' cannot be described before it is executed", h.query)
}

// ResultSchema is the schema of the batches produced by the current
// execution. It reflects the session properties in force when Execute ran,
// which may differ from those GetSchema reports for the prepared statement.
func (h *Handle) ResultSchema() (*arrow.Schema, error) {
	if h.state == StateClosed {
		return nil, h.errs.InvalidState(duckarrow.KindSchemaExport, "cannot describe a closed statement")
	}
	if h.shape == nil || h.state == StateCreated {
		return nil, h.errs.InvalidState(duckarrow.KindSchemaExport, "statement must be executed before its result is described")
	}
	return h.shape.schema, nil
}

// Close releases the prepared statement and any open result. The
// connection is left open.
func (h *Handle) Close() error {
	if h.state == StateClosed {
		return h.errs.InvalidState(duckarrow.KindNone, "statement already closed")
	}
	h.state = StateClosed
	h.params = nil
	h.shape = nil
	h.failed = nil

	var err error
	if cerr := h.closeResult(); cerr != nil {
		err = cerr
	}
	if cerr := h.stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	h.logger.Debug("statement closed", "id", h.ID)
	if err != nil {
		return h.errs.Wrap(duckarrow.StatusIO, err, "closing statement: %s", err)
	}
	return nil
}

func (h *Handle) closeResult() error {
	if h.result == nil {
		return nil
	}
	res := h.result
	h.result = nil
	return res.Close()
}

func (h *Handle) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if h.traceParent != "" {
		carrier := propagation.MapCarrier{"traceparent": h.traceParent}
		ctx = propagation.TraceContext{}.Extract(ctx, carrier)
	}
	return h.tracer.Start(ctx, name, trace.WithAttributes(
		semconv.DBQueryText(h.query),
		attribute.String("duckarrow.statement.id", h.ID),
	))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
