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

// Package embedded is a duckarrow driver that runs statements on an
// engine embedded in the calling process and streams results as Arrow.
//
// The engine is chosen with the "duckarrow.engine" option ("duckdb" by
// default, or "sqlite") and opened at "uri", in memory when unset.
package embedded

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	_ "github.com/gizmodata/duckarrow/engine/duckdb"
	_ "github.com/gizmodata/duckarrow/engine/sqlite"
	"github.com/gizmodata/duckarrow/internal/telemetry"
	"github.com/gizmodata/duckarrow/statement"
	"go.opentelemetry.io/otel/trace"
)

const (
	DriverName    = "embedded"
	DefaultEngine = "duckdb"

	DatabaseMessageOptionUnknown = "Unknown database option"
	DatabaseMessageAlreadyOpen   = "Options cannot change once the database is open"
)

var infoDriverVersion = "(unknown or development build)"

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "github.com/gizmodata/duckarrow" {
				infoDriverVersion = dep.Version
			}
		}
	}
}

var errorHelper statement.ErrorHelper

type driverImpl struct {
	alloc memory.Allocator
}

// NewDriver creates a driver. alloc backs every record the driver
// produces; nil means memory.DefaultAllocator.
func NewDriver(alloc memory.Allocator) duckarrow.Driver {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &driverImpl{alloc: alloc}
}

func (d *driverImpl) NewDatabase(opts map[string]string) (duckarrow.Database, error) {
	return d.NewDatabaseWithContext(context.Background(), opts)
}

func (d *driverImpl) NewDatabaseWithContext(ctx context.Context, opts map[string]string) (duckarrow.Database, error) {
	db := &database{
		alloc:  d.alloc,
		logger: slog.New(slog.DiscardHandler),
		engine: DefaultEngine,
	}
	if err := db.InitTracing(ctx, DriverName, infoDriverVersion); err != nil {
		return nil, err
	}
	if err := db.SetOptions(opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type database struct {
	alloc  memory.Allocator
	logger *slog.Logger

	engine      string
	uri         string
	chunkSize   int
	traceParent string

	tracing *telemetry.Tracing

	mu sync.Mutex
	db engine.Database
}

func (db *database) SetLogger(logger *slog.Logger) {
	if logger != nil {
		db.logger = logger
	} else {
		db.logger = slog.New(slog.DiscardHandler)
	}
}

func (db *database) InitTracing(ctx context.Context, driverName string, driverVersion string) error {
	if db.tracing != nil {
		if err := db.tracing.Close(ctx); err != nil {
			return err
		}
	}
	t, err := telemetry.Init(ctx, driverName, driverVersion)
	if err != nil {
		return err
	}
	db.tracing = t
	return nil
}

func (db *database) tracer() trace.Tracer {
	return db.tracing.Tracer
}

func (db *database) SetOptions(opts map[string]string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.db != nil && len(opts) > 0 {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, DatabaseMessageAlreadyOpen)
	}

	for key, val := range opts {
		switch key {
		case duckarrow.OptionKeyEngine:
			if _, ok := engine.Lookup(val); !ok {
				return errorHelper.Errorf(duckarrow.StatusInvalidArgument,
					"Unknown engine '%s' (available: %s)", val, strings.Join(engine.Names(), ", "))
			}
			db.engine = val
		case duckarrow.OptionKeyURI:
			db.uri = val
		case duckarrow.OptionKeyChunkSize:
			n, err := parseChunkSize(val)
			if err != nil {
				return err
			}
			db.chunkSize = n
		case duckarrow.OptionKeyTelemetryTraceParent:
			db.traceParent = strings.TrimSpace(val)
		default:
			return errorHelper.Errorf(duckarrow.StatusNotImplemented, "%s '%s'", DatabaseMessageOptionUnknown, key)
		}
	}
	return nil
}

func parseChunkSize(val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return 0, errorHelper.Errorf(duckarrow.StatusInvalidArgument,
			"Invalid value for '%s': '%s' is not a positive integer", duckarrow.OptionKeyChunkSize, val)
	}
	return n, nil
}

// Open opens the engine on first use and starts a session on it.
func (db *database) Open(ctx context.Context) (duckarrow.Connection, error) {
	db.mu.Lock()
	if db.db == nil {
		edb, err := engine.Open(ctx, db.engine, engine.Config{
			Path:      db.uri,
			ChunkSize: db.chunkSize,
			Logger:    db.logger,
		})
		if err != nil {
			db.mu.Unlock()
			return nil, errorHelper.Wrap(duckarrow.StatusIO, err, "Failed to open %s database: %s", db.engine, err)
		}
		db.db = edb
		db.logger.DebugContext(ctx, "database opened", "engine", db.engine, "uri", db.uri)
	}
	edb := db.db
	db.mu.Unlock()

	conn, err := edb.Connect(ctx)
	if err != nil {
		return nil, errorHelper.Wrap(duckarrow.StatusIO, err, "Failed to connect: %s", err)
	}
	return &connection{db: db, conn: conn}, nil
}

func (db *database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var err error
	if db.db != nil {
		err = db.db.Close()
		db.db = nil
	}
	if db.tracing != nil {
		if terr := db.tracing.Close(context.Background()); err == nil {
			err = terr
		}
	}
	return err
}

var (
	_ duckarrow.DriverWithContext = (*driverImpl)(nil)
	_ duckarrow.DatabaseLogging   = (*database)(nil)
	_ duckarrow.OTelTracingInit   = (*database)(nil)
)
