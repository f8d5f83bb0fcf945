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

package embedded_test

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/driver/embedded"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EmbeddedSuite struct {
	suite.Suite

	engine string

	ctx  context.Context
	mem  *memory.CheckedAllocator
	db   duckarrow.Database
	cnxn duckarrow.Connection
}

func (s *EmbeddedSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memory.NewCheckedAllocator(memory.DefaultAllocator)

	var err error
	s.db, err = embedded.NewDriver(s.mem).NewDatabase(map[string]string{
		duckarrow.OptionKeyEngine:    s.engine,
		duckarrow.OptionKeyChunkSize: "2",
	})
	s.Require().NoError(err)
	s.cnxn, err = s.db.Open(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.update("CREATE TABLE items (id INTEGER, label VARCHAR)"))
}

func (s *EmbeddedSuite) TearDownTest() {
	s.NoError(s.cnxn.Close())
	s.NoError(s.db.Close())
	s.mem.AssertSize(s.T(), 0)
}

func (s *EmbeddedSuite) update(query string) error {
	_, err := duckarrow.ExecuteUpdateAll(s.ctx, s.cnxn, query, nil)
	return err
}

func (s *EmbeddedSuite) newStatement(query string) duckarrow.Statement {
	st, err := s.cnxn.NewStatement()
	s.Require().NoError(err)
	s.Require().NoError(st.SetSqlQuery(query))
	return st
}

func (s *EmbeddedSuite) params(ids []int32, labels []string) arrow.RecordBatch {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "label", Type: arrow.BinaryTypes.String},
	}, nil)
	bldr := array.NewRecordBuilder(s.mem, schema)
	defer bldr.Release()
	bldr.Field(0).(*array.Int32Builder).AppendValues(ids, nil)
	bldr.Field(1).(*array.StringBuilder).AppendValues(labels, nil)
	return bldr.NewRecord()
}

func (s *EmbeddedSuite) TestBindUpdateEveryRow() {
	params := s.params([]int32{1, 2, 3}, []string{"a", "b", "c"})
	defer params.Release()

	n, err := duckarrow.ExecuteUpdateAll(s.ctx, s.cnxn, "INSERT INTO items VALUES (?, ?)", params)
	s.Require().NoError(err)
	s.EqualValues(3, n)

	st := s.newStatement("SELECT id, label FROM items ORDER BY id")
	defer st.Close()
	rdr, _, err := st.ExecuteQuery(s.ctx)
	s.Require().NoError(err)
	defer rdr.Release()

	var labels []string
	batches := 0
	for rdr.Next() {
		batches++
		col := rdr.RecordBatch().Column(1).(*array.String)
		for i := 0; i < col.Len(); i++ {
			labels = append(labels, col.Value(i))
		}
	}
	s.Require().NoError(rdr.Err())
	s.Equal([]string{"a", "b", "c"}, labels)
	s.Equal(2, batches)
}

func (s *EmbeddedSuite) TestBindQueryFirstRow() {
	s.Require().NoError(s.update("INSERT INTO items VALUES (1, 'a'), (2, 'b')"))

	st := s.newStatement("SELECT label FROM items WHERE id = ?")
	defer st.Close()

	bldr := array.NewRecordBuilder(s.mem, arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int32}}, nil))
	defer bldr.Release()
	bldr.Field(0).(*array.Int32Builder).AppendValues([]int32{2, 1}, nil)
	idOnly := bldr.NewRecord()
	defer idOnly.Release()

	s.Require().NoError(st.Bind(s.ctx, idOnly))
	rdr, _, err := st.ExecuteQuery(s.ctx)
	s.Require().NoError(err)
	defer rdr.Release()

	s.Require().True(rdr.Next())
	s.Equal("b", rdr.RecordBatch().Column(0).(*array.String).Value(0))
	s.False(rdr.Next())
	s.NoError(rdr.Err())
}

func (s *EmbeddedSuite) TestExecuteSchema() {
	st := s.newStatement("SELECT id, label FROM items")
	defer st.Close()

	schema, err := st.(duckarrow.StatementExecuteSchema).ExecuteSchema(s.ctx)
	if s.engine == "sqlite" {
		// SQLite describes results only once they are produced.
		s.Require().Error(err)
		s.Equal(duckarrow.StatusInvalidState, duckarrow.StatusOf(err))
		return
	}
	s.Require().NoError(err)
	s.Equal([]string{"id", "label"}, []string{schema.Field(0).Name, schema.Field(1).Name})
	s.True(arrow.TypeEqual(arrow.PrimitiveTypes.Int32, schema.Field(0).Type))
	s.Equal("INTEGER", schema.Field(0).Metadata.Values()[schema.Field(0).Metadata.FindKey("sql.database_type_name")])
}

func (s *EmbeddedSuite) TestPrepareError() {
	st := s.newStatement("SELECT FROM WHERE")
	defer st.Close()

	err := st.Prepare(s.ctx)
	s.Require().Error(err)
	s.Equal(duckarrow.KindPrepare, duckarrow.KindOf(err))
	s.Equal(duckarrow.StatusInvalidArgument, duckarrow.StatusOf(err))

	var de duckarrow.Error
	s.Require().ErrorAs(err, &de)
	detail, ok := de.Detail(duckarrow.ErrorDetailSQL)
	s.Require().True(ok)
	text, err := detail.Serialize()
	s.Require().NoError(err)
	s.Equal("SELECT FROM WHERE", string(text))
}

func (s *EmbeddedSuite) TestParameterSchema() {
	st := s.newStatement("SELECT label FROM items WHERE id = ? AND label = ?")
	defer st.Close()

	_, err := st.GetParameterSchema()
	s.Require().Error(err)

	s.Require().NoError(st.Prepare(s.ctx))
	schema, err := st.GetParameterSchema()
	if err != nil {
		s.Equal(duckarrow.StatusNotImplemented, duckarrow.StatusOf(err))
		return
	}
	s.Equal(2, schema.NumFields())
	s.True(arrow.TypeEqual(arrow.Null, schema.Field(0).Type))
}

func (s *EmbeddedSuite) TestOptions() {
	st := s.newStatement("SELECT 1")
	defer st.Close()

	s.NoError(st.SetOption(duckarrow.OptionKeyChunkSize, "10"))
	err := st.SetOption(duckarrow.OptionKeyChunkSize, "zero")
	s.Equal(duckarrow.StatusInvalidArgument, duckarrow.StatusOf(err))
	err = st.SetOption("duckarrow.unknown", "x")
	s.Equal(duckarrow.StatusNotImplemented, duckarrow.StatusOf(err))

	err = s.db.SetOptions(map[string]string{duckarrow.OptionKeyURI: "other"})
	s.Equal(duckarrow.StatusInvalidState, duckarrow.StatusOf(err))
}

func (s *EmbeddedSuite) TestLifecycle() {
	st, err := s.cnxn.NewStatement()
	s.Require().NoError(err)

	err = st.Prepare(s.ctx)
	s.Equal(duckarrow.StatusInvalidState, duckarrow.StatusOf(err))

	s.Require().NoError(st.SetSqlQuery("SELECT 1"))
	s.Require().NoError(st.Prepare(s.ctx))
	s.NoError(st.Close())
	s.Error(st.Close())

	_, _, err = st.ExecuteQuery(s.ctx)
	s.Equal(duckarrow.StatusInvalidState, duckarrow.StatusOf(err))
}

func (s *EmbeddedSuite) TestConnectionClosesStatements() {
	cnxn, err := s.db.Open(s.ctx)
	s.Require().NoError(err)

	st, err := cnxn.NewStatement()
	s.Require().NoError(err)
	s.Require().NoError(st.SetSqlQuery("SELECT id FROM items"))
	rdr, _, err := st.ExecuteQuery(s.ctx)
	s.Require().NoError(err)
	rdr.Release()

	s.NoError(cnxn.Close())
	s.Error(cnxn.Close())
	s.Error(st.Close())

	_, err = cnxn.NewStatement()
	s.Equal(duckarrow.StatusInvalidState, duckarrow.StatusOf(err))
}

func TestEmbedded(t *testing.T) {
	for _, name := range []string{"duckdb", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			suite.Run(t, &EmbeddedSuite{engine: name})
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := embedded.NewDriver(nil).NewDatabase(map[string]string{duckarrow.OptionKeyEngine: "oracle"})
	require.Error(t, err)
	assert.Equal(t, duckarrow.StatusInvalidArgument, duckarrow.StatusOf(err))
	assert.Contains(t, err.Error(), "Unknown engine 'oracle'")
}
