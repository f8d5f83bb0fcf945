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

// Package cli implements the duckarrow command line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gizmodata/duckarrow/engine"
	"github.com/spf13/cobra"
)

type configKey struct{}

// NewRootCmd builds the duckarrow command tree.
func NewRootCmd(version string) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "duckarrow",
		Short: "Run SQL on an embedded engine and stream the results as Arrow",
		Long: `duckarrow runs SQL against an embedded analytical engine (DuckDB or
SQLite) and converts the results to Arrow record batches.

Results are printed as a table or written as an Arrow IPC stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./"+DefaultConfigFile+")")
	flags.String("engine", DefaultEngine, "engine to run queries on")
	flags.String("database", DefaultDatabase, "database path or URI")
	flags.Int("chunk-size", DefaultChunkSize, "rows per fetched batch")
	flags.StringP("output", "o", OutputTable, "output format (table, arrow)")
	flags.Bool("strip-metadata", false, "drop engine field metadata from Arrow output")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	_ = rootCmd.RegisterFlagCompletionFunc("engine", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return engine.Names(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputTable, OutputArrow}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newQueryCommand(),
		newExecCommand(),
		newVersionCommand(version),
	)
	return rootCmd
}

// Execute runs the root command and exits on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configFrom(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey{}).(*Config); ok {
		return cfg
	}
	return &Config{
		Engine:    DefaultEngine,
		Database:  DefaultDatabase,
		ChunkSize: DefaultChunkSize,
		Output:    OutputTable,
	}
}

func newLogger(cmd *cobra.Command, cfg *Config) *slog.Logger {
	if !cfg.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
