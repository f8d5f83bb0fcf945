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

// Package telemetry configures OpenTelemetry tracing for the driver from
// the OTEL_TRACES_EXPORTER environment variable.
package telemetry

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gizmodata/duckarrow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Namespace prefixes tracer and service names.
	Namespace = "duckarrow"

	EnvTracesExporter = "OTEL_TRACES_EXPORTER"
)

// Tracing is a configured tracer and the shutdown hook of its provider.
// Shutdown is nil when no provider was created.
type Tracing struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

// Close flushes and stops the provider, if any.
func (t *Tracing) Close(ctx context.Context) error {
	if t.Shutdown == nil {
		return nil
	}
	err := t.Shutdown(ctx)
	t.Shutdown = nil
	return err
}

// Init builds a tracer for component according to OTEL_TRACES_EXPORTER.
// Without the variable it returns the global tracer.
func Init(ctx context.Context, component, version string) (*Tracing, error) {
	return InitWithExporter(ctx, os.Getenv(EnvTracesExporter), component, version)
}

// InitWithExporter is Init with an explicit exporter name.
func InitWithExporter(ctx context.Context, exporterName, component, version string) (*Tracing, error) {
	name := Namespace + "." + component
	if exporterName == "" {
		return &Tracing{Tracer: otel.Tracer(name)}, nil
	}

	exporters, err := newExporters(ctx, exporterName, name)
	if err != nil {
		return nil, err
	}
	if len(exporters) == 0 {
		return &Tracing{Tracer: otel.Tracer(name)}, nil
	}

	provider, err := newTracerProvider(exporters...)
	if err != nil {
		return nil, err
	}
	return &Tracing{
		Tracer: provider.Tracer(name,
			trace.WithInstrumentationVersion(version),
			trace.WithSchemaURL(semconv.SchemaURL)),
		Shutdown: provider.Shutdown,
	}, nil
}

func newExporters(ctx context.Context, exporterName, name string) ([]sdktrace.SpanExporter, error) {
	switch duckarrow.OptionTelemetryExporter(exporterName) {
	case duckarrow.TelemetryExporterNone:
		return nil, nil
	case duckarrow.TelemetryExporterConsole:
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, err
		}
		return []sdktrace.SpanExporter{exp}, nil
	case duckarrow.TelemetryExporterOtlp:
		return newOtlpExporters(ctx)
	case duckarrow.TelemetryExporterFile:
		w, err := NewRotatingFileWriter(WithNamePrefix(strings.ToLower(name)))
		if err != nil {
			return nil, err
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, err
		}
		return []sdktrace.SpanExporter{exp}, nil
	}
	return nil, duckarrow.Error{
		Msg:  "Unknown " + EnvTracesExporter + " option '" + exporterName + "'",
		Code: duckarrow.StatusInvalidArgument,
	}
}

// newOtlpExporters sends spans over both OTLP transports. Endpoints and
// headers come from the standard OTEL_EXPORTER_OTLP_* variables.
func newOtlpExporters(ctx context.Context) ([]sdktrace.SpanExporter, error) {
	grpcExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}))
	if err != nil {
		return nil, err
	}
	httpExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}))
	if err != nil {
		return nil, err
	}
	return []sdktrace.SpanExporter{grpcExporter, httpExporter}, nil
}

func newTracerProvider(exporters ...sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	own := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(Namespace))
	res, err := resource.Merge(resource.Default(), own)
	if err != nil {
		if !errors.Is(err, resource.ErrSchemaURLConflict) {
			return nil, err
		}
		res = own
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
