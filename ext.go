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

package duckarrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DatabaseLogging is a Database that also supports logging information to an
// application-supplied log sink.
type DatabaseLogging interface {
	SetLogger(*slog.Logger)
}

// OTelTracingInit is a Database that also supports OpenTelemetry tracing.
type OTelTracingInit interface {
	InitTracing(ctx context.Context, driverName string, driverVersion string) error
}

// DriverWithContext is an extension interface to allow the creation of a database
// by providing an existing [context.Context] to initialize OpenTelemetry tracing.
type DriverWithContext interface {
	NewDatabaseWithContext(ctx context.Context, opts map[string]string) (Database, error)
}

// OTelTracing is an interface that supports instrumentation of [OpenTelemetry tracing].
//
// [OpenTelemetry tracing]: https://opentelemetry.io/docs/concepts/signals/traces/
type OTelTracing interface {
	// Sets the trace parent from an external trace span. A blank value, removes the parent relationship.
	SetTraceParent(string)
	// Gets the trace parent from an external trace span. A blank value, indicates no parent relationship.
	GetTraceParent() string
	// Starts a new span. Implementers should enhance the [context.Context]
	// with the provided trace parent value, if it exists.
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)

	// Gets the initial span attributes for any newly started span.
	GetInitialSpanAttributes() []attribute.KeyValue
}

// ExecuteUpdateAll prepares query on cnxn, executes it once per row of
// params (or once with no parameters when params is nil) and returns the
// summed affected-row count. params is retained for the duration of the
// call; the caller keeps its own reference.
//
// This is a convenience wrapper around NewStatement, SetSqlQuery, Bind,
// ExecuteUpdate and Close.
func ExecuteUpdateAll(ctx context.Context, cnxn Connection, query string, params arrow.RecordBatch) (n int64, err error) {
	stmt, err := cnxn.NewStatement()
	if err != nil {
		return -1, fmt.Errorf("ExecuteUpdateAll: NewStatement: %w", err)
	}
	defer func() {
		err = errors.Join(err, stmt.Close())
	}()

	if err = stmt.SetSqlQuery(query); err != nil {
		return -1, fmt.Errorf("ExecuteUpdateAll: SetSqlQuery: %w", err)
	}
	if params != nil {
		if err = stmt.Bind(ctx, params); err != nil {
			return -1, fmt.Errorf("ExecuteUpdateAll: Bind: %w", err)
		}
	}

	n, err = stmt.ExecuteUpdate(ctx)
	if err != nil {
		return -1, fmt.Errorf("ExecuteUpdateAll: ExecuteUpdate: %w", err)
	}
	return n, nil
}
