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

// Package validation is a driver-agnostic test suite for duckarrow
// drivers. It provides a series of utilities and defined tests that can
// be used to validate a driver follows the expected lifecycle, error
// and streaming behavior.
package validation

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/stretchr/testify/suite"
)

type DriverQuirks interface {
	// Called in SetupTest to initialize anything needed for testing
	SetupDriver(*testing.T) duckarrow.Driver
	// Called in TearDownTest to clean up anything necessary in between tests
	TearDownDriver(*testing.T, duckarrow.Driver)
	// Return the list of key/value pairs of options to pass when
	// calling NewDatabase
	DatabaseOptions() map[string]string
	// Return the SQL to reference the bind parameter for a given index
	BindParameter(index int) string
	// Whether retrieving the schema of prepared statement params is supported
	SupportsGetParameterSchema() bool
	// Whether ExecuteSchema describes a query before it runs
	SupportsExecuteSchema() bool
}

func statusOf(s *suite.Suite, err error) duckarrow.Status {
	var de duckarrow.Error
	s.ErrorAs(err, &de)
	return de.Code
}

type DatabaseTests struct {
	suite.Suite

	Driver duckarrow.Driver
	Quirks DriverQuirks
}

func (d *DatabaseTests) SetupTest() {
	d.Driver = d.Quirks.SetupDriver(d.T())
}

func (d *DatabaseTests) TearDownTest() {
	d.Quirks.TearDownDriver(d.T(), d.Driver)
	d.Driver = nil
}

func (d *DatabaseTests) TestNewDatabase() {
	db, err := d.Driver.NewDatabase(d.Quirks.DatabaseOptions())
	d.NoError(err)
	d.NotNil(db)
	d.Implements((*duckarrow.Database)(nil), db)
	d.NoError(db.Close())
}

func (d *DatabaseTests) TestOptionsFrozenAfterOpen() {
	db, err := d.Driver.NewDatabase(d.Quirks.DatabaseOptions())
	d.Require().NoError(err)
	defer db.Close()

	cnxn, err := db.Open(context.Background())
	d.Require().NoError(err)
	defer cnxn.Close()

	err = db.SetOptions(map[string]string{duckarrow.OptionKeyURI: "elsewhere"})
	d.Equal(duckarrow.StatusInvalidState, statusOf(&d.Suite, err))
}

type ConnectionTests struct {
	suite.Suite

	Driver duckarrow.Driver
	Quirks DriverQuirks

	DB duckarrow.Database
}

func (c *ConnectionTests) SetupTest() {
	c.Driver = c.Quirks.SetupDriver(c.T())
	var err error
	c.DB, err = c.Driver.NewDatabase(c.Quirks.DatabaseOptions())
	c.Require().NoError(err)
}

func (c *ConnectionTests) TearDownTest() {
	c.NoError(c.DB.Close())
	c.Quirks.TearDownDriver(c.T(), c.Driver)
	c.Driver = nil
	c.DB = nil
}

func (c *ConnectionTests) TestNewConn() {
	cnxn, err := c.DB.Open(context.Background())
	c.NoError(err)
	c.NotNil(cnxn)

	c.NoError(cnxn.Close())
}

func (c *ConnectionTests) TestCloseConnTwice() {
	cnxn, err := c.DB.Open(context.Background())
	c.NoError(err)
	c.NotNil(cnxn)

	c.NoError(cnxn.Close())
	c.Equal(duckarrow.StatusInvalidState, statusOf(&c.Suite, cnxn.Close()))

	_, err = cnxn.NewStatement()
	c.Equal(duckarrow.StatusInvalidState, statusOf(&c.Suite, err))
}

func (c *ConnectionTests) TestConcurrent() {
	cnxn, _ := c.DB.Open(context.Background())
	cnxn2, err := c.DB.Open(context.Background())
	c.Require().NoError(err)

	c.NoError(cnxn.Close())
	c.NoError(cnxn2.Close())
}

type StatementTests struct {
	suite.Suite

	Driver duckarrow.Driver
	Quirks DriverQuirks

	DB   duckarrow.Database
	Cnxn duckarrow.Connection
	ctx  context.Context
}

func (s *StatementTests) SetupTest() {
	s.Driver = s.Quirks.SetupDriver(s.T())
	var err error
	s.DB, err = s.Driver.NewDatabase(s.Quirks.DatabaseOptions())
	s.Require().NoError(err)
	s.ctx = context.Background()
	s.Cnxn, err = s.DB.Open(s.ctx)
	s.Require().NoError(err)
}

func (s *StatementTests) TearDownTest() {
	s.Require().NoError(s.Cnxn.Close())
	s.Require().NoError(s.DB.Close())
	s.Quirks.TearDownDriver(s.T(), s.Driver)
	s.Cnxn = nil
	s.DB = nil
	s.Driver = nil
}

func (s *StatementTests) TestNewStatement() {
	stmt, err := s.Cnxn.NewStatement()
	s.NoError(err)
	s.NotNil(stmt)
	s.NoError(stmt.Close())
	s.Equal(duckarrow.StatusInvalidState, statusOf(&s.Suite, stmt.Close()))

	stmt, err = s.Cnxn.NewStatement()
	s.NoError(err)
	defer stmt.Close()
	_, _, err = stmt.ExecuteQuery(s.ctx)
	s.Equal(duckarrow.StatusInvalidState, statusOf(&s.Suite, err))
}

func (s *StatementTests) TestSQLPrepareGetParameterSchema() {
	stmt, err := s.Cnxn.NewStatement()
	s.NoError(err)
	defer stmt.Close()

	query := "SELECT CAST(" + s.Quirks.BindParameter(0) + " AS INTEGER), CAST(" +
		s.Quirks.BindParameter(1) + " AS VARCHAR)"
	s.NoError(stmt.SetSqlQuery(query))
	s.NoError(stmt.Prepare(s.ctx))

	sc, err := stmt.GetParameterSchema()
	if !s.Quirks.SupportsGetParameterSchema() {
		if err != nil {
			s.Equal(duckarrow.StatusNotImplemented, statusOf(&s.Suite, err))
		}
		return
	}
	s.Require().NoError(err)
	s.Len(sc.Fields(), 2)
}

func (s *StatementTests) TestSQLPrepareSelectNoParams() {
	stmt, err := s.Cnxn.NewStatement()
	s.NoError(err)
	defer stmt.Close()

	s.NoError(stmt.SetSqlQuery("SELECT 1"))
	s.NoError(stmt.Prepare(s.ctx))

	rdr, n, err := stmt.ExecuteQuery(s.ctx)
	s.Require().NoError(err)
	s.True(n == 1 || n == -1)
	defer rdr.Release()

	sc := rdr.Schema()
	s.Require().NotNil(sc)
	s.Len(sc.Fields(), 1)

	s.True(rdr.Next())
	rec := rdr.RecordBatch()
	s.EqualValues(1, rec.NumCols())
	s.EqualValues(1, rec.NumRows())
	s.Equal(int64(1), intValue(rec.Column(0), 0))

	s.False(rdr.Next())
	s.NoError(rdr.Err())
}

func (s *StatementTests) TestSQLBindParameter() {
	stmt, err := s.Cnxn.NewStatement()
	s.Require().NoError(err)
	defer stmt.Close()

	s.NoError(stmt.SetSqlQuery("SELECT CAST(" + s.Quirks.BindParameter(0) + " AS BIGINT) AS v"))

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema([]arrow.Field{
		{Name: "0", Type: arrow.PrimitiveTypes.Int64},
	}, nil))
	defer bldr.Release()
	bldr.Field(0).(*array.Int64Builder).Append(42)
	params := bldr.NewRecord()
	defer params.Release()
	s.Require().NoError(stmt.Bind(s.ctx, params))

	rdr, _, err := stmt.ExecuteQuery(s.ctx)
	s.Require().NoError(err)
	defer rdr.Release()

	s.Require().True(rdr.Next())
	s.Equal(int64(42), intValue(rdr.RecordBatch().Column(0), 0))
	s.False(rdr.Next())
}

func (s *StatementTests) TestSQLExecuteUpdate() {
	n, err := duckarrow.ExecuteUpdateAll(s.ctx, s.Cnxn, "CREATE TABLE validation_counts (v INTEGER)", nil)
	s.Require().NoError(err)
	s.LessOrEqual(n, int64(0))

	n, err = duckarrow.ExecuteUpdateAll(s.ctx, s.Cnxn, "INSERT INTO validation_counts VALUES (1), (2), (3)", nil)
	s.Require().NoError(err)
	s.EqualValues(3, n)

	n, err = duckarrow.ExecuteUpdateAll(s.ctx, s.Cnxn, "DELETE FROM validation_counts WHERE v >= 2", nil)
	s.Require().NoError(err)
	s.EqualValues(2, n)
}

func (s *StatementTests) TestSQLExecuteSchema() {
	stmt, err := s.Cnxn.NewStatement()
	s.Require().NoError(err)
	defer stmt.Close()

	es, ok := stmt.(duckarrow.StatementExecuteSchema)
	if !ok {
		s.T().Skip("driver does not implement ExecuteSchema")
	}
	s.NoError(stmt.SetSqlQuery("SELECT 1 AS one, 'two' AS two"))

	sc, err := es.ExecuteSchema(s.ctx)
	if !s.Quirks.SupportsExecuteSchema() {
		s.Equal(duckarrow.StatusInvalidState, statusOf(&s.Suite, err))
		return
	}
	s.Require().NoError(err)
	s.Equal("one", sc.Field(0).Name)
	s.Equal("two", sc.Field(1).Name)
	s.True(arrow.TypeEqual(arrow.BinaryTypes.String, sc.Field(1).Type))
}

func (s *StatementTests) TestSQLPrepareError() {
	stmt, err := s.Cnxn.NewStatement()
	s.Require().NoError(err)
	defer stmt.Close()

	s.NoError(stmt.SetSqlQuery("SELECT FROM WHERE"))
	err = stmt.Prepare(s.ctx)
	s.Require().Error(err)
	s.Equal(duckarrow.KindPrepare, duckarrow.KindOf(err))
}

func intValue(arr arrow.Array, i int) int64 {
	switch arr := arr.(type) {
	case *array.Int32:
		return int64(arr.Value(i))
	case *array.Int64:
		return arr.Value(i)
	}
	return -1
}
