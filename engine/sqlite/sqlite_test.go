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

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/engine"
	"github.com/gizmodata/duckarrow/engine/sqlite"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		sample   any
		want     engine.LogicalType
	}{
		{"integer", "INTEGER", nil, engine.Simple(engine.TypeBigInt)},
		{"int affinity", "MEDIUMINT", nil, engine.Simple(engine.TypeBigInt)},
		{"varchar", "VARCHAR(20)", nil, engine.Simple(engine.TypeVarchar)},
		{"text", "TEXT", nil, engine.Simple(engine.TypeVarchar)},
		{"clob", "CLOB", nil, engine.Simple(engine.TypeVarchar)},
		{"blob", "BLOB", nil, engine.Simple(engine.TypeBlob)},
		{"real", "REAL", nil, engine.Simple(engine.TypeDouble)},
		{"double", "DOUBLE PRECISION", nil, engine.Simple(engine.TypeDouble)},
		{"boolean", "BOOLEAN", nil, engine.Simple(engine.TypeBoolean)},
		{"decimal", "DECIMAL(10,2)", nil, engine.DecimalType(10, 2)},
		{"date", "DATE", nil, engine.Simple(engine.TypeDate)},
		{"datetime", "DATETIME", nil, engine.Simple(engine.TypeTimestamp)},
		{"expression int", "", int64(1), engine.Simple(engine.TypeBigInt)},
		{"expression float", "", 1.5, engine.Simple(engine.TypeDouble)},
		{"expression blob", "", []byte{1}, engine.Simple(engine.TypeBlob)},
		{"expression null", "", nil, engine.Simple(engine.TypeVarchar)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sqlite.Dialect{}.ParseType(tt.typeName, tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	d := sqlite.Dialect{}

	v, err := d.NormalizeValue(engine.Simple(engine.TypeBoolean), int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = d.NormalizeValue(engine.Simple(engine.TypeDouble), int64(2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = d.NormalizeValue(engine.Simple(engine.TypeVarchar), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

type SQLiteSuite struct {
	suite.Suite

	ctx  context.Context
	db   engine.Database
	conn engine.Conn
	mem  *memory.CheckedAllocator

	handles []*statement.Handle
}

func (s *SQLiteSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)

	var err error
	s.db, err = engine.Open(s.ctx, sqlite.Name, engine.Config{
		Path:      filepath.Join(s.T().TempDir(), "test.db"),
		ChunkSize: 2,
	})
	s.Require().NoError(err)
	s.conn, err = s.db.Connect(s.ctx)
	s.Require().NoError(err)
}

func (s *SQLiteSuite) TearDownTest() {
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

func (s *SQLiteSuite) create(query string) *statement.Handle {
	h, err := statement.Create(s.ctx, s.conn, query, statement.WithAllocator(s.mem))
	s.Require().NoError(err)
	s.handles = append(s.handles, h)
	return h
}

func (s *SQLiteSuite) update(query string, params ...any) int64 {
	n, err := s.create(query).ExecuteUpdate(s.ctx, params...)
	s.Require().NoError(err)
	return n
}

func (s *SQLiteSuite) TestPrepareError() {
	_, err := statement.Create(s.ctx, s.conn, "SELECT FROM")
	s.Require().Error(err)
	s.Equal(duckarrow.KindPrepare, duckarrow.KindOf(err))
	s.Contains(err.Error(), "Can't prepare statement: 'SELECT FROM'")
}

func (s *SQLiteSuite) TestDMLCounts() {
	s.EqualValues(0, s.update("CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT, price REAL)"))
	s.EqualValues(3, s.update("INSERT INTO items (id, label, price) VALUES (1, 'a', 1.5), (2, 'b', 2.5), (3, NULL, NULL)"))
	s.EqualValues(2, s.update("UPDATE items SET price = ? WHERE id > ?", 9.75, int64(1)))
	s.EqualValues(1, s.update("DELETE FROM items WHERE id = ?", int64(3)))
}

// The counter includes rows written by triggers, not only the statement's
// own table.
func (s *SQLiteSuite) TestTotalChangesCountsTriggerRows() {
	s.update("CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)")
	s.update("CREATE TABLE audit (item_id INTEGER)")
	s.update("CREATE TRIGGER items_audit AFTER INSERT ON items BEGIN INSERT INTO audit VALUES (NEW.id); END")

	s.EqualValues(4, s.update("INSERT INTO items (id, label) VALUES (1, 'a'), (2, 'b')"))
	s.EqualValues(1, s.update("UPDATE items SET label = 'c' WHERE id = 1"))
}

func (s *SQLiteSuite) TestConstraintViolation() {
	s.update("CREATE TABLE keyed (id INTEGER PRIMARY KEY)")
	s.update("INSERT INTO keyed VALUES (1)")

	_, err := s.create("INSERT INTO keyed VALUES (1)").ExecuteUpdate(s.ctx)
	s.Require().Error(err)
	s.Equal(duckarrow.KindExecution, duckarrow.KindOf(err))
	s.Contains(err.Error(), "An execution error has occurred: ")

	var de duckarrow.Error
	s.Require().ErrorAs(err, &de)
	s.Equal([5]byte{'2', '3', '0', '0', '0'}, de.SqlState)
	s.Equal(duckarrow.StatusIntegrity, de.Code)

	var native *engine.Error
	s.Require().ErrorAs(err, &native)
	s.Equal("23000", native.SQLState)
}

func (s *SQLiteSuite) TestFetchAcrossChunks() {
	s.update("CREATE TABLE items (id INTEGER, label TEXT)")
	s.update("INSERT INTO items VALUES (1, 'a'), (2, NULL), (3, 'c'), (4, 'd'), (5, 'e')")

	h := s.create("SELECT id, label FROM items ORDER BY id")
	s.Require().NoError(h.Execute(s.ctx))

	schema, err := h.GetSchema()
	s.Require().NoError(err)
	s.True(arrow.TypeEqual(arrow.PrimitiveTypes.Int64, schema.Field(0).Type))
	s.True(arrow.TypeEqual(arrow.BinaryTypes.String, schema.Field(1).Type))

	var ids []int64
	for {
		b, err := h.FetchResult(s.ctx)
		s.Require().NoError(err)
		if b == nil {
			break
		}
		s.LessOrEqual(b.NumRows(), int64(2))
		rec := b.Record()
		col := rec.Column(0).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			ids = append(ids, col.Value(i))
		}
		if ids[0] == 1 && len(ids) == 2 {
			s.True(rec.Column(1).IsNull(1))
		}
		b.Release()
	}
	s.Equal([]int64{1, 2, 3, 4, 5}, ids)

	b, err := h.FetchResult(s.ctx)
	s.NoError(err)
	s.Nil(b)
}

func (s *SQLiteSuite) TestExpressionTypesFromValues() {
	h := s.create("SELECT 1 + 1 AS two, 0.5 AS half, 'x' || 'y' AS xy")
	s.Require().NoError(h.Execute(s.ctx))

	b, err := h.FetchResult(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(b)
	defer b.Release()

	rec := b.Record()
	s.EqualValues(2, rec.Column(0).(*array.Int64).Value(0))
	s.Equal(0.5, rec.Column(1).(*array.Float64).Value(0))
	s.Equal("xy", rec.Column(2).(*array.String).Value(0))
}

func (s *SQLiteSuite) TestSessionsShareMemoryDatabase() {
	db, err := engine.Open(s.ctx, sqlite.Name, engine.Config{})
	s.Require().NoError(err)
	defer db.Close()

	c1, err := db.Connect(s.ctx)
	s.Require().NoError(err)
	defer c1.Close()
	c2, err := db.Connect(s.ctx)
	s.Require().NoError(err)
	defer c2.Close()

	h1, err := statement.Create(s.ctx, c1, "CREATE TABLE shared (v INTEGER)")
	s.Require().NoError(err)
	_, err = h1.ExecuteUpdate(s.ctx)
	s.Require().NoError(err)
	s.NoError(h1.Close())

	h2, err := statement.Create(s.ctx, c2, "SELECT count(*) FROM shared")
	s.Require().NoError(err)
	n, err := h2.ExecuteUpdate(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(0, n)
	s.NoError(h2.Close())
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}
