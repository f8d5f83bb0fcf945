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

package sqldriver

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/statement"
	"github.com/gizmodata/duckarrow/utils"
)

func parseConnectStr(str string) (map[string]string, error) {
	ret := make(map[string]string)
	if strings.TrimSpace(str) == "" {
		return ret, nil
	}
	for _, kv := range strings.Split(str, ";") {
		if strings.TrimSpace(kv) == "" {
			continue
		}
		parsed := strings.SplitN(kv, "=", 2)
		if len(parsed) != 2 {
			return nil, duckarrow.Error{
				Msg:  "invalid format for connection string",
				Code: duckarrow.StatusInvalidArgument,
			}
		}
		ret[strings.TrimSpace(parsed[0])] = strings.TrimSpace(parsed[1])
	}
	return ret, nil
}

type connector struct {
	db  duckarrow.Database
	drv duckarrow.Driver
}

// Connect opens a new engine session. The sql package pools the
// returned connections.
func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	cnxn, err := c.db.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: cnxn}, nil
}

func (c *connector) Driver() driver.Driver { return Driver{c.drv} }

// Close closes the database when sql.DB.Close is called.
func (c *connector) Close() error {
	return c.db.Close()
}

type Driver struct {
	Driver duckarrow.Driver
}

// Open returns a new connection to the database. The name should be
// semicolon separated key-value pairs of the form key=value;key2=value2.
// Every call opens a separate database; use OpenConnector through
// sql.Open to share one.
func (d Driver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector expects the same format as Open.
func (d Driver) OpenConnector(name string) (driver.Connector, error) {
	opts, err := parseConnectStr(name)
	if err != nil {
		return nil, err
	}
	db, err := d.Driver.NewDatabase(opts)
	if err != nil {
		return nil, err
	}
	return &connector{db: db, drv: d.Driver}, nil
}

// conn is not used concurrently by multiple goroutines.
type conn struct {
	Conn duckarrow.Connection
}

func (c *conn) Close() error {
	return c.Conn.Close()
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	s, err := c.Conn.NewStatement()
	if err != nil {
		return nil, err
	}
	if err = s.SetSqlQuery(query); err != nil {
		return nil, errors.Join(err, s.Close())
	}

	r, err := (&stmt{stmt: s}).query(ctx, args)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	r.ownsStmt = true
	return r, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	s, err := c.Conn.NewStatement()
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	if err = s.SetSqlQuery(query); err != nil {
		return nil, err
	}
	return (&stmt{stmt: s}).ExecContext(ctx, args)
}

// Begin is not supported: the engine session runs in autocommit mode.
//
// Deprecated: use BeginTx.
func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nil, duckarrow.Error{
		Msg:  "transactions are not supported; run BEGIN and COMMIT as statements",
		Code: duckarrow.StatusNotImplemented,
	}
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext returns a prepared statement bound to this connection.
func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.Conn.NewStatement()
	if err != nil {
		return nil, err
	}
	if err := s.SetSqlQuery(query); err != nil {
		return nil, errors.Join(err, s.Close())
	}
	if err := s.Prepare(ctx); err != nil {
		return nil, errors.Join(err, s.Close())
	}

	paramSchema, err := s.GetParameterSchema()
	if err != nil && duckarrow.StatusOf(err) != duckarrow.StatusNotImplemented {
		return nil, errors.Join(err, s.Close())
	}
	return &stmt{stmt: s, paramSchema: paramSchema}, nil
}

type stmt struct {
	stmt        duckarrow.Statement
	paramSchema *arrow.Schema
}

func (s *stmt) Close() error {
	return s.stmt.Close()
}

// NumInput is -1 when the engine cannot count the placeholders.
func (s *stmt) NumInput() int {
	if s.paramSchema == nil {
		return -1
	}
	return s.paramSchema.NumFields()
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, driver.ErrSkip
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, driver.ErrSkip
}

// CheckNamedValue converts arguments to the default driver value types
// and rejects positions beyond the parameter count. Named parameters
// are not supported.
func (s *stmt) CheckNamedValue(val *driver.NamedValue) error {
	if val.Name != "" {
		return duckarrow.Error{
			Msg:  "named parameter '" + val.Name + "' is not supported",
			Code: duckarrow.StatusInvalidArgument,
		}
	}
	if s.paramSchema != nil && val.Ordinal > s.paramSchema.NumFields() {
		return duckarrow.Error{
			Msg:  "too many parameters passed for query",
			Code: duckarrow.StatusInvalidArgument,
		}
	}

	v, err := driver.DefaultParameterConverter.ConvertValue(val.Value)
	if err != nil {
		return err
	}
	val.Value = v
	return nil
}

func (c *conn) CheckNamedValue(val *driver.NamedValue) error {
	return (&stmt{}).CheckNamedValue(val)
}

func fieldFor(ordinal int, v driver.Value) (arrow.Field, error) {
	f := arrow.Field{Name: strconv.Itoa(ordinal - 1), Nullable: true}
	switch v.(type) {
	case nil:
		f.Type = arrow.Null
	case bool:
		f.Type = arrow.FixedWidthTypes.Boolean
	case int64:
		f.Type = arrow.PrimitiveTypes.Int64
	case float64:
		f.Type = arrow.PrimitiveTypes.Float64
	case string:
		f.Type = arrow.BinaryTypes.String
	case []byte:
		f.Type = arrow.BinaryTypes.Binary
	case time.Time:
		f.Type = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return f, fmt.Errorf("unsupported parameter type %T", v)
	}
	return f, nil
}

// createBoundRecord builds a one-row record holding args in ordinal
// order.
func createBoundRecord(args []driver.NamedValue) (arrow.RecordBatch, error) {
	fields := make([]arrow.Field, len(args))
	values := make([]driver.Value, len(args))
	for _, a := range args {
		if a.Ordinal < 1 || a.Ordinal > len(args) {
			return nil, fmt.Errorf("parameter ordinal %d out of range", a.Ordinal)
		}
		f, err := fieldFor(a.Ordinal, a.Value)
		if err != nil {
			return nil, err
		}
		fields[a.Ordinal-1] = f
		values[a.Ordinal-1] = a.Value
	}

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil))
	defer bldr.Release()
	for i, v := range values {
		switch b := bldr.Field(i).(type) {
		case *array.NullBuilder:
			b.AppendNull()
		case *array.BooleanBuilder:
			b.Append(v.(bool))
		case *array.Int64Builder:
			b.Append(v.(int64))
		case *array.Float64Builder:
			b.Append(v.(float64))
		case *array.StringBuilder:
			b.Append(v.(string))
		case *array.BinaryBuilder:
			b.Append(v.([]byte))
		case *array.TimestampBuilder:
			b.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
		}
	}
	return bldr.NewRecord(), nil
}

func (s *stmt) bind(ctx context.Context, args []driver.NamedValue) error {
	if len(args) == 0 {
		return s.stmt.Bind(ctx, nil)
	}
	rec, err := createBoundRecord(args)
	if err != nil {
		return duckarrow.Error{Msg: err.Error(), Code: duckarrow.StatusInvalidArgument}
	}
	defer rec.Release()
	return s.stmt.Bind(ctx, rec)
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.bind(ctx, args); err != nil {
		return nil, err
	}
	affected, err := s.stmt.ExecuteUpdate(ctx)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(affected), nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.query(ctx, args)
}

func (s *stmt) query(ctx context.Context, args []driver.NamedValue) (*rows, error) {
	if err := s.bind(ctx, args); err != nil {
		return nil, err
	}
	rdr, affected, err := s.stmt.ExecuteQuery(ctx)
	if err != nil {
		return nil, err
	}
	return &rows{rdr: rdr, rowsAffected: affected, stmt: s}, nil
}

type rows struct {
	rdr          array.RecordReader
	curRow       int64
	curRecord    arrow.RecordBatch
	rowsAffected int64
	stmt         *stmt

	// ownsStmt is set for ad hoc queries whose statement closes with
	// the rows.
	ownsStmt bool
}

func (r *rows) Columns() []string {
	out := make([]string, r.rdr.Schema().NumFields())
	for i, f := range r.rdr.Schema().Fields() {
		out[i] = f.Name
	}
	return out
}

func (r *rows) Close() error {
	if r.rdr == nil {
		return nil
	}
	r.curRecord = nil
	r.rdr.Release()
	r.rdr = nil

	if r.ownsStmt {
		return r.stmt.Close()
	}
	return nil
}

func (r *rows) Next(dest []driver.Value) error {
	if r.curRecord != nil && r.curRow == r.curRecord.NumRows() {
		r.curRecord = nil
	}

	for r.curRecord == nil {
		if !r.rdr.Next() {
			if err := r.rdr.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		r.curRecord = r.rdr.RecordBatch()
		r.curRow = 0
		if r.curRecord.NumRows() == 0 {
			r.curRecord = nil
		}
	}

	for i, col := range r.curRecord.Columns() {
		v, err := utils.Value(col, int(r.curRow))
		if err != nil {
			return duckarrow.Error{
				Code: duckarrow.StatusNotImplemented,
				Msg:  "not yet implemented populating from columns of type " + col.DataType().String(),
			}
		}
		dest[i] = driverValue(v)
	}

	r.curRow++
	return nil
}

// driverValue widens integers to the types database/sql expects.
func driverValue(v any) driver.Value {
	switch v := v.(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	}
	return v
}

// ColumnTypeDatabaseTypeName reports the engine's name for the column
// type, falling back to the Arrow type name.
func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	f := r.rdr.Schema().Field(index)
	if name, ok := f.Metadata.GetValue(statement.MetaKeyDatabaseTypeName); ok {
		return name
	}
	return f.Type.String()
}

func (r *rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.rdr.Schema().Field(index).Nullable, true
}

func (r *rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if dt, ok := r.rdr.Schema().Field(index).Type.(arrow.DecimalType); ok {
		return int64(dt.GetPrecision()), int64(dt.GetScale()), true
	}
	return 0, 0, false
}

func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	switch r.rdr.Schema().Field(index).Type.ID() {
	case arrow.BOOL:
		return reflect.TypeOf(false)
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return reflect.TypeOf(int64(0))
	case arrow.UINT64:
		return reflect.TypeOf(uint64(0))
	case arrow.FLOAT32, arrow.FLOAT64:
		return reflect.TypeOf(float64(0))
	case arrow.DECIMAL32, arrow.DECIMAL64, arrow.DECIMAL128, arrow.DECIMAL256:
		return reflect.TypeOf("")
	case arrow.BINARY, arrow.LARGE_BINARY:
		return reflect.TypeOf([]byte{})
	case arrow.STRING, arrow.LARGE_STRING:
		return reflect.TypeOf("")
	case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
		return reflect.TypeOf(time.Time{})
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

var (
	_ driver.QueryerContext               = (*conn)(nil)
	_ driver.ExecerContext                = (*conn)(nil)
	_ driver.ConnBeginTx                  = (*conn)(nil)
	_ driver.NamedValueChecker            = (*conn)(nil)
	_ driver.NamedValueChecker            = (*stmt)(nil)
	_ driver.StmtQueryContext             = (*stmt)(nil)
	_ driver.StmtExecContext              = (*stmt)(nil)
	_ driver.RowsColumnTypeScanType       = (*rows)(nil)
	_ driver.RowsColumnTypeNullable       = (*rows)(nil)
	_ driver.RowsColumnTypePrecisionScale = (*rows)(nil)
)
