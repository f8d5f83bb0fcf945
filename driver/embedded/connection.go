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

package embedded

import (
	"errors"

	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
)

const ConnectionMessageClosed = "Connection is closed"

type connection struct {
	db   *database
	conn engine.Conn

	stmts  map[*stmt]struct{}
	closed bool
}

func (c *connection) NewStatement() (duckarrow.Statement, error) {
	if c.closed {
		return nil, errorHelper.Errorf(duckarrow.StatusInvalidState, ConnectionMessageClosed)
	}
	st := &stmt{
		cnxn:        c,
		chunkSize:   c.db.chunkSize,
		traceParent: c.db.traceParent,
	}
	if c.stmts == nil {
		c.stmts = make(map[*stmt]struct{})
	}
	c.stmts[st] = struct{}{}
	return st, nil
}

// Close closes the statements still open on the connection, then the
// engine session.
func (c *connection) Close() error {
	if c.closed {
		return errorHelper.Errorf(duckarrow.StatusInvalidState, ConnectionMessageClosed)
	}
	c.closed = true

	var errs []error
	for st := range c.stmts {
		errs = append(errs, st.Close())
	}
	c.stmts = nil
	errs = append(errs, c.conn.Close())
	return errors.Join(errs...)
}

func (c *connection) forget(st *stmt) {
	delete(c.stmts, st)
}
