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

// Package mockengine is a scriptable in-memory engine.Conn used to test
// the statement bridge without a real database.
package mockengine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/gizmodata/duckarrow/engine"
)

// Script describes how the engine responds to one statement text.
type Script struct {
	Names []string
	Types []engine.LogicalType
	// Undescribed hides Names and Types until the statement is executed.
	Undescribed bool
	// NumParams is reported by the prepared statement; 0 unless set, -1
	// for unknown.
	NumParams int

	PrepareErr error
	ExecErr    error
	// Chunks are handed out one per Fetch. OnExecute, when set, replaces
	// them per execution.
	Chunks    []*engine.DataChunk
	OnExecute func(params []any) ([]*engine.DataChunk, error)
	// FetchErr is returned by the Fetch call with index FetchErrAt.
	FetchErr   error
	FetchErrAt int
	// ResultProps overrides the connection properties seen by results.
	ResultProps *engine.ClientProperties
}

// Conn is a scripted engine.Conn. It records what the bridge did with it
// so tests can assert on resource handling.
type Conn struct {
	mu      sync.Mutex
	scripts map[string]*Script
	props   engine.ClientProperties

	Closed       bool
	OpenStmts    int
	OpenResults  int
	Executions   int
	LastParams   []any
	PrepareCalls int
}

// New returns a Conn with the given session properties.
func New(props engine.ClientProperties) *Conn {
	return &Conn{scripts: make(map[string]*Script), props: props}
}

// On registers the script for query.
func (c *Conn) On(query string, s *Script) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[query] = s
	return c
}

// SetProperties changes the session properties seen from now on.
func (c *Conn) SetProperties(props engine.ClientProperties) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props = props
}

func (c *Conn) ClientProperties(context.Context) (engine.ClientProperties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props, nil
}

func (c *Conn) Prepare(ctx context.Context, query string) (engine.PreparedStatement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PrepareCalls++
	if c.Closed {
		return nil, &engine.Error{Msg: "Connection Error: connection closed"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := c.scripts[query]
	if !ok {
		return nil, &engine.Error{Msg: fmt.Sprintf("Parser Error: syntax error at or near %q", query), SQLState: "42601"}
	}
	if s.PrepareErr != nil {
		return nil, s.PrepareErr
	}
	c.OpenStmts++
	return &stmt{conn: c, script: s, props: c.props}, nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

type stmt struct {
	conn   *Conn
	script *Script
	props  engine.ClientProperties
	closed bool
}

func (s *stmt) ColumnNames() []string {
	if s.script.Undescribed {
		return nil
	}
	return s.script.Names
}

func (s *stmt) ColumnTypes() []engine.LogicalType {
	if s.script.Undescribed {
		return nil
	}
	return s.script.Types
}

func (s *stmt) NumParams() int                            { return s.script.NumParams }
func (s *stmt) ClientProperties() engine.ClientProperties { return s.props }

func (s *stmt) Execute(ctx context.Context, params []any) (engine.QueryResult, error) {
	if s.closed {
		return nil, &engine.Error{Msg: "statement closed"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.Executions++
	s.conn.LastParams = slices.Clone(params)
	if s.script.ExecErr != nil {
		return nil, s.script.ExecErr
	}

	chunks := s.script.Chunks
	if s.script.OnExecute != nil {
		var err error
		if chunks, err = s.script.OnExecute(params); err != nil {
			return nil, err
		}
	}
	props := s.conn.props
	if s.script.ResultProps != nil {
		props = *s.script.ResultProps
	}
	s.conn.OpenResults++
	return &result{conn: s.conn, script: s.script, chunks: chunks, props: props}, nil
}

func (s *stmt) Close() error {
	if s.closed {
		return fmt.Errorf("statement closed twice")
	}
	s.closed = true
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.OpenStmts--
	return nil
}

type result struct {
	conn    *Conn
	script  *Script
	chunks  []*engine.DataChunk
	props   engine.ClientProperties
	fetches int
	closed  bool
}

func (r *result) ColumnNames() []string                     { return r.script.Names }
func (r *result) ColumnTypes() []engine.LogicalType         { return r.script.Types }
func (r *result) ClientProperties() engine.ClientProperties { return r.props }

func (r *result) Fetch(ctx context.Context) (*engine.DataChunk, error) {
	if r.closed {
		return nil, fmt.Errorf("result closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := r.fetches
	r.fetches++
	if r.script.FetchErr != nil && idx == r.script.FetchErrAt {
		return nil, r.script.FetchErr
	}
	if idx >= len(r.chunks) {
		return nil, nil
	}
	return r.chunks[idx], nil
}

func (r *result) Close() error {
	if r.closed {
		return fmt.Errorf("result closed twice")
	}
	r.closed = true
	r.conn.mu.Lock()
	defer r.conn.mu.Unlock()
	r.conn.OpenResults--
	return nil
}

// Column builds a Vector of type t from values.
func Column(t engine.LogicalType, values ...any) engine.Vector {
	return engine.Vector{Type: t, Values: values}
}

// Chunk builds a DataChunk from columns.
func Chunk(cols ...engine.Vector) *engine.DataChunk {
	return &engine.DataChunk{Vectors: cols}
}
