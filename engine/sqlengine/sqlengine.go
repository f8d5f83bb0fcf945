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

// Package sqlengine implements the engine contract on top of
// database/sql. A Dialect supplies what database/sql does not expose:
// type names, session settings, statement description and DML counts.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bluele/gcache"
	"github.com/gizmodata/duckarrow/engine"
)

// DefaultChunkSize is the number of rows per chunk unless configured.
const DefaultChunkSize = 2048

// typeCacheSize bounds the number of distinct type names remembered.
const typeCacheSize = 256

// countColumn names the synthetic result of statements without columns.
const countColumn = "Count"

// Database is an engine.Database backed by a *sql.DB.
type Database struct {
	db        *sql.DB
	dialect   Dialect
	chunkSize int
	logger    *slog.Logger
	types     gcache.Cache
}

// New wraps db. The Database owns db and closes it on Close.
func New(db *sql.DB, dialect Dialect, cfg engine.Config) *Database {
	d := &Database{
		db:        db,
		dialect:   dialect,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
	}
	if d.chunkSize <= 0 {
		d.chunkSize = DefaultChunkSize
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	d.types = gcache.New(typeCacheSize).LRU().
		LoaderFunc(func(key any) (any, error) {
			return dialect.ParseType(key.(string), nil)
		}).Build()
	return d
}

// DB exposes the underlying pool.
func (d *Database) DB() *sql.DB { return d.db }

// Connect pins one connection of the pool as an engine session.
func (d *Database) Connect(ctx context.Context) (engine.Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, d.dialect.ConvertError(err)
	}
	return &Conn{conn: c, db: d}, nil
}

func (d *Database) Close() error {
	d.types.Purge()
	return d.db.Close()
}

// resolveType maps a driver type name to a logical type. Names are
// cached; an empty name is decided from the sample value every time.
func (d *Database) resolveType(typeName string, sample any) (engine.LogicalType, error) {
	if typeName == "" {
		return d.dialect.ParseType(typeName, sample)
	}
	v, err := d.types.Get(typeName)
	if err != nil {
		return engine.LogicalType{}, err
	}
	return v.(engine.LogicalType), nil
}

// Conn is an engine session pinned to a single pooled connection.
type Conn struct {
	conn *sql.Conn
	db   *Database
}

func (c *Conn) ClientProperties(ctx context.Context) (engine.ClientProperties, error) {
	props, err := c.db.dialect.ClientProperties(ctx, c.conn)
	if err != nil {
		return engine.ClientProperties{}, c.db.dialect.ConvertError(err)
	}
	if props.TimeZone == "" {
		props.TimeZone = engine.DefaultTimeZone
	}
	return props, nil
}

func (c *Conn) Prepare(ctx context.Context, query string) (engine.PreparedStatement, error) {
	props, err := c.ClientProperties(ctx)
	if err != nil {
		return nil, err
	}

	st, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, c.db.dialect.ConvertError(err)
	}
	if err := c.db.dialect.Validate(ctx, c.conn, query); err != nil {
		_ = st.Close()
		return nil, c.db.dialect.ConvertError(err)
	}

	s := &stmt{
		conn:      c,
		st:        st,
		props:     props,
		chunkSize: c.db.chunkSize,
		numParams: c.db.dialect.NumParams(ctx, c.conn, query),
	}
	if names, types, ok := c.db.dialect.Describe(ctx, c.conn, query, s.numParams); ok {
		s.names, s.types = names, types
	}
	c.db.logger.DebugContext(ctx, "prepared", "engine", c.db.dialect.Name(), "params", s.numParams, "described", s.types != nil)
	return s, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

type stmt struct {
	conn      *Conn
	st        *sql.Stmt
	props     engine.ClientProperties
	chunkSize int
	numParams int
	names     []string
	types     []engine.LogicalType
	current   *result
}

func (s *stmt) ColumnNames() []string                     { return s.names }
func (s *stmt) ColumnTypes() []engine.LogicalType         { return s.types }
func (s *stmt) NumParams() int                            { return s.numParams }
func (s *stmt) ClientProperties() engine.ClientProperties { return s.props }

func (s *stmt) SetChunkSize(rows int) {
	if rows > 0 {
		s.chunkSize = rows
	}
}

func (s *stmt) Execute(ctx context.Context, params []any) (engine.QueryResult, error) {
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}

	db := s.conn.db
	props, err := s.conn.ClientProperties(ctx)
	if err != nil {
		return nil, err
	}
	before, counted, err := db.dialect.TotalChanges(ctx, s.conn.conn)
	if err != nil {
		return nil, db.dialect.ConvertError(err)
	}

	rows, err := s.st.QueryContext(ctx, params...)
	if err != nil {
		return nil, db.dialect.ConvertError(err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, db.dialect.ConvertError(err)
	}

	if len(colTypes) == 0 {
		return s.executeNoColumns(ctx, rows, props, before, counted)
	}

	r := &result{
		db:        db,
		rows:      rows,
		names:     make([]string, len(colTypes)),
		props:     props,
		chunkSize: s.chunkSize,
	}
	for i, ct := range colTypes {
		r.names[i] = ct.Name()
	}

	// The first chunk is read eagerly: it supplies samples for columns the
	// driver reports without a type name, and surfaces runtime faults of
	// the statement as execution errors.
	values, err := r.scan(ctx, r.chunkSize)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	r.types = make([]engine.LogicalType, len(colTypes))
	for i, ct := range colTypes {
		if r.types[i], err = db.resolveType(ct.DatabaseTypeName(), firstNonNull(values, i)); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("column %q: %w", ct.Name(), err)
		}
	}
	if len(values) > 0 {
		if r.pending, err = r.chunk(values); err != nil {
			_ = rows.Close()
			return nil, err
		}
	}

	s.current = r
	return r, nil
}

// executeNoColumns finishes a statement that produced no result columns,
// such as DML on drivers that report counts out of band.
func (s *stmt) executeNoColumns(ctx context.Context, rows *sql.Rows, props engine.ClientProperties, before int64, counted bool) (engine.QueryResult, error) {
	db := s.conn.db
	// Some drivers step the statement lazily.
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, db.dialect.ConvertError(err)
	}
	if err := rows.Close(); err != nil {
		return nil, db.dialect.ConvertError(err)
	}

	r := &result{db: db, props: props, done: true}
	if !counted {
		return r, nil
	}

	after, _, err := db.dialect.TotalChanges(ctx, s.conn.conn)
	if err != nil {
		return nil, db.dialect.ConvertError(err)
	}
	count := engine.Simple(engine.TypeBigInt)
	r.names = []string{countColumn}
	r.types = []engine.LogicalType{count}
	r.pending = &engine.DataChunk{Vectors: []engine.Vector{
		{Type: count, Values: []any{after - before}},
	}}
	return r, nil
}

func (s *stmt) Close() error {
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
	return s.st.Close()
}

type result struct {
	db        *Database
	rows      *sql.Rows
	names     []string
	types     []engine.LogicalType
	props     engine.ClientProperties
	chunkSize int
	pending   *engine.DataChunk
	done      bool
}

func (r *result) ColumnNames() []string                     { return r.names }
func (r *result) ColumnTypes() []engine.LogicalType         { return r.types }
func (r *result) ClientProperties() engine.ClientProperties { return r.props }

func (r *result) Fetch(ctx context.Context) (*engine.DataChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pending != nil {
		c := r.pending
		r.pending = nil
		return c, nil
	}
	if r.done {
		return nil, nil
	}

	values, err := r.scan(ctx, r.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return r.chunk(values)
}

// scan reads up to limit rows. It marks the result done once the
// driver runs out of rows.
func (r *result) scan(ctx context.Context, limit int) ([][]any, error) {
	if r.done {
		return nil, nil
	}
	ncols := len(r.names)
	var out [][]any
	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.rows.Next() {
			r.done = true
			if err := r.rows.Err(); err != nil {
				return nil, r.db.dialect.ConvertError(err)
			}
			if err := r.rows.Close(); err != nil {
				return nil, r.db.dialect.ConvertError(err)
			}
			break
		}
		row := make([]any, ncols)
		ptrs := make([]any, ncols)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := r.rows.Scan(ptrs...); err != nil {
			return nil, r.db.dialect.ConvertError(err)
		}
		out = append(out, row)
	}
	return out, nil
}

// chunk transposes scanned rows into a columnar chunk.
func (r *result) chunk(rows [][]any) (*engine.DataChunk, error) {
	c := &engine.DataChunk{Vectors: make([]engine.Vector, len(r.types))}
	for col, t := range r.types {
		vals := make([]any, len(rows))
		for i, row := range rows {
			if row[col] == nil {
				continue
			}
			v, err := r.db.dialect.NormalizeValue(t, row[col])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", r.names[col], err)
			}
			vals[i] = v
		}
		c.Vectors[col] = engine.Vector{Type: t, Values: vals}
	}
	return c, nil
}

func (r *result) Close() error {
	r.pending = nil
	if r.rows == nil {
		return nil
	}
	rows := r.rows
	r.rows = nil
	r.done = true
	return rows.Close()
}

func firstNonNull(rows [][]any, col int) any {
	i := slices.IndexFunc(rows, func(row []any) bool { return row[col] != nil })
	if i < 0 {
		return nil
	}
	return rows[i][col]
}
