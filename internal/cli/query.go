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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/gizmodata/duckarrow"
	"github.com/gizmodata/duckarrow/driver/embedded"
	"github.com/gizmodata/duckarrow/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql> [sql...]",
		Short: "Run queries and print their results",
		Long: `Run one or more queries. Each query runs on its own connection and
multiple queries run concurrently; results are printed in argument order.`,
		Example: `  duckarrow query "SELECT 42 AS answer"
  duckarrow --engine sqlite --database app.db query "SELECT * FROM users"
  duckarrow -o arrow query "SELECT * FROM range(10)" > out.arrows`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			if cfg.Output == OutputArrow && len(args) > 1 {
				return errors.New("arrow output takes a single query")
			}
			return runQueries(cmd, cfg, args)
		},
	}
}

func newExecCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql> [sql...]",
		Short: "Run statements in order and print affected row counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			ctx := cmd.Context()

			db, err := openDatabase(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			cnxn, err := db.Open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cnxn.Close() }()

			for _, query := range args {
				n, err := duckarrow.ExecuteUpdateAll(ctx, cnxn, query, nil)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
			}
			return nil
		},
	}
}

func openDatabase(ctx context.Context, cmd *cobra.Command, cfg *Config) (duckarrow.Database, error) {
	drv := embedded.NewDriver(memory.DefaultAllocator)
	db, err := drv.(duckarrow.DriverWithContext).NewDatabaseWithContext(ctx, cfg.DatabaseOptions())
	if err != nil {
		return nil, err
	}
	if l, ok := db.(duckarrow.DatabaseLogging); ok {
		l.SetLogger(newLogger(cmd, cfg))
	}
	return db, nil
}

// queryResult holds every batch of one query.
type queryResult struct {
	schema  *arrow.Schema
	batches []arrow.RecordBatch
}

func (r *queryResult) numRows() int64 {
	var n int64
	for _, b := range r.batches {
		n += b.NumRows()
	}
	return n
}

func (r *queryResult) release() {
	for _, b := range r.batches {
		b.Release()
	}
	r.batches = nil
}

func runQueries(cmd *cobra.Command, cfg *Config, queries []string) error {
	db, err := openDatabase(cmd.Context(), cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	results := make([]*queryResult, len(queries))
	defer func() {
		for _, r := range results {
			if r != nil {
				r.release()
			}
		}
	}()

	g, ctx := errgroup.WithContext(cmd.Context())
	for i, query := range queries {
		g.Go(func() error {
			res, err := runQuery(ctx, db, query)
			if err != nil {
				return fmt.Errorf("query %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, res := range results {
		if cfg.Output == OutputArrow {
			if err := writeArrow(out, res, cfg.StripMetadata); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		if err := renderTable(out, res); err != nil {
			return err
		}
	}
	return nil
}

func runQuery(ctx context.Context, db duckarrow.Database, query string) (res *queryResult, err error) {
	cnxn, err := db.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, cnxn.Close()) }()

	stmt, err := cnxn.NewStatement()
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, stmt.Close()) }()

	if err := stmt.SetSqlQuery(query); err != nil {
		return nil, err
	}
	rdr, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return nil, err
	}
	defer rdr.Release()

	res = &queryResult{schema: rdr.Schema()}
	for rdr.Next() {
		rec := rdr.RecordBatch()
		rec.Retain()
		res.batches = append(res.batches, rec)
	}
	if err := rdr.Err(); err != nil {
		res.release()
		return nil, err
	}
	return res, nil
}

func writeArrow(w io.Writer, res *queryResult, stripMetadata bool) error {
	schema := res.schema
	if stripMetadata {
		schema = utils.RemoveSchemaMetadata(schema)
	}

	wr := ipc.NewWriter(w, ipc.WithSchema(schema))
	for _, b := range res.batches {
		rec := b
		if stripMetadata {
			rec = array.NewRecord(schema, b.Columns(), b.NumRows())
		}
		err := wr.Write(rec)
		if stripMetadata {
			rec.Release()
		}
		if err != nil {
			_ = wr.Close()
			return fmt.Errorf("writing arrow stream: %w", err)
		}
	}
	return wr.Close()
}
