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

package duckdb_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/gizmodata/duckarrow/engine/duckdb"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/stretchr/testify/suite"
)

type DuckDBSuite struct {
	suite.Suite

	ctx  context.Context
	db   engine.Database
	conn engine.Conn
	mem  *memory.CheckedAllocator

	handles []*statement.Handle
}

func (s *DuckDBSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)

	var err error
	s.db, err = engine.Open(s.ctx, duckdb.Name, engine.Config{ChunkSize: 2})
	s.Require().NoError(err)
	s.conn, err = s.db.Connect(s.ctx)
	s.Require().NoError(err)
}

func (s *DuckDBSuite) TearDownTest() {
	for _, h := range s.handles {
		if h.State() != statement.StateClosed {
			s.NoError(h.Close())
		}
	}
	s.handles = nil
	s.NoError(s.conn.Close())
	s.NoError(s.db.Close())
	s.mem.AssertSize(s.T(), 0)
}

func (s *DuckDBSuite) exec(query string) {
	st, err := s.conn.Prepare(s.ctx, query)
	s.Require().NoError(err)
	defer st.Close()
	res, err := st.Execute(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(res.Close())
}

func (s *DuckDBSuite) create(query string) *statement.Handle {
	h, err := statement.Create(s.ctx, s.conn, query, statement.WithAllocator(s.mem))
	s.Require().NoError(err)
	s.handles = append(s.handles, h)
	return h
}

func (s *DuckDBSuite) TestRegistered() {
	s.Contains(engine.Names(), duckdb.Name)
}

func (s *DuckDBSuite) TestDescribeBeforeExecute() {
	st, err := s.conn.Prepare(s.ctx, "SELECT 42::INTEGER AS answer, 'x' AS s, 1.5::DECIMAL(10,2) AS d")
	s.Require().NoError(err)
	defer st.Close()

	s.Equal(0, st.NumParams())
	s.Equal([]string{"answer", "s", "d"}, st.ColumnNames())
	s.Equal([]engine.LogicalType{
		engine.Simple(engine.TypeInteger),
		engine.Simple(engine.TypeVarchar),
		engine.DecimalType(10, 2),
	}, st.ColumnTypes())
}

func (s *DuckDBSuite) TestParameterizedIsUndescribed() {
	st, err := s.conn.Prepare(s.ctx, "SELECT ?::INTEGER + 1 AS v")
	s.Require().NoError(err)
	defer st.Close()

	s.Equal(1, st.NumParams())
	s.Nil(st.ColumnTypes())

	res, err := st.Execute(s.ctx, []any{int32(41)})
	s.Require().NoError(err)
	defer res.Close()
	chunk, err := res.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal([]any{int32(42)}, chunk.Vectors[0].Values)
}

func (s *DuckDBSuite) TestPrepareError() {
	_, err := s.conn.Prepare(s.ctx, "SELEC 1")
	var ee *engine.Error
	s.Require().ErrorAs(err, &ee)
	s.Equal("42601", ee.SQLState)
	s.Contains(ee.Msg, "syntax error")
}

func (s *DuckDBSuite) TestNormalizedValues() {
	st, err := s.conn.Prepare(s.ctx, "SELECT 1.25::DECIMAL(10,2) AS d, INTERVAL 1 MONTH + INTERVAL 2 DAY AS i")
	s.Require().NoError(err)
	defer st.Close()

	res, err := st.Execute(s.ctx, nil)
	s.Require().NoError(err)
	defer res.Close()

	chunk, err := res.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal(engine.Decimal{Width: 10, Scale: 2, Value: big.NewInt(125)}, chunk.Vectors[0].Values[0])
	s.Equal(engine.Interval{Months: 1, Days: 2}, chunk.Vectors[1].Values[0])
}

func (s *DuckDBSuite) TestStreamInChunks() {
	h := s.create("SELECT i::BIGINT AS i FROM range(5) t(i)")
	s.Require().NoError(h.Execute(s.ctx))

	var total int64
	batches := 0
	for {
		b, err := h.FetchResult(s.ctx)
		s.Require().NoError(err)
		if b == nil {
			break
		}
		s.True(arrow.TypeEqual(arrow.PrimitiveTypes.Int64, b.Schema().Field(0).Type))
		total += b.NumRows()
		batches++
		b.Release()
	}
	s.EqualValues(5, total)
	s.Equal(3, batches)
	s.Equal(statement.StateExhausted, h.State())
}

func (s *DuckDBSuite) TestExecuteUpdate() {
	s.exec("CREATE TABLE items (id INTEGER, label VARCHAR)")

	n, err := s.create("INSERT INTO items VALUES (1, 'a'), (2, 'b'), (3, NULL)").ExecuteUpdate(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, n)

	n, err = s.create("UPDATE items SET label = 'z' WHERE id > 1").ExecuteUpdate(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, n)

	// A query that is not DML reports its row count.
	n, err = s.create("SELECT id FROM items WHERE id > 1").ExecuteUpdate(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, n)
}

func (s *DuckDBSuite) TestConstraintViolation() {
	s.exec("CREATE TABLE keyed (id INTEGER PRIMARY KEY)")
	s.exec("INSERT INTO keyed VALUES (1)")

	_, err := s.create("INSERT INTO keyed VALUES (1)").ExecuteUpdate(s.ctx)
	s.Require().Error(err)
	s.Equal(duckarrow.KindExecution, duckarrow.KindOf(err))

	var de duckarrow.Error
	s.Require().ErrorAs(err, &de)
	s.Equal([5]byte{'2', '3', '0', '0', '0'}, de.SqlState)
	s.Equal(duckarrow.StatusIntegrity, de.Code)

	var native *engine.Error
	s.Require().ErrorAs(err, &native)
	s.Equal("23000", native.SQLState)
}

func (s *DuckDBSuite) TestSchemaAndNulls() {
	h := s.create("SELECT * FROM (VALUES (1::UBIGINT, DATE '2024-01-02', NULL::VARCHAR)) t(u, d, v)")
	s.Require().NoError(h.Execute(s.ctx))

	schema, err := h.GetSchema()
	s.Require().NoError(err)
	s.True(arrow.TypeEqual(arrow.PrimitiveTypes.Int64, schema.Field(0).Type))
	s.True(arrow.TypeEqual(arrow.FixedWidthTypes.Date32, schema.Field(1).Type))
	s.True(arrow.TypeEqual(arrow.BinaryTypes.String, schema.Field(2).Type))

	b, err := h.FetchResult(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(b)
	defer b.Release()

	rec := b.Record()
	s.EqualValues(1, rec.Column(0).(*array.Int64).Value(0))
	s.Equal("2024-01-02", rec.Column(1).(*array.Date32).Value(0).ToTime().Format("2006-01-02"))
	s.True(rec.Column(2).IsNull(0))
}

func TestDuckDB(t *testing.T) {
	suite.Run(t, new(DuckDBSuite))
}
