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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gizmodata/duckarrow"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	DefaultConfigFile = "duckarrow.yaml"
	DefaultEngine     = "duckdb"
	DefaultDatabase   = ":memory:"
	DefaultChunkSize  = 2048

	OutputTable = "table"
	OutputArrow = "arrow"

	envPrefix = "DUCKARROW_"
)

// Config is the resolved CLI configuration.
type Config struct {
	Engine        string `koanf:"engine"`
	Database      string `koanf:"database"`
	ChunkSize     int    `koanf:"chunk_size"`
	Output        string `koanf:"output"`
	StripMetadata bool   `koanf:"strip_metadata"`
	Verbose       bool   `koanf:"verbose"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// DatabaseOptions converts the configuration into driver options.
func (c *Config) DatabaseOptions() map[string]string {
	return map[string]string{
		duckarrow.OptionKeyEngine:    c.Engine,
		duckarrow.OptionKeyURI:       c.Database,
		duckarrow.OptionKeyChunkSize: strconv.Itoa(c.ChunkSize),
	}
}

func (c *Config) validate() error {
	switch c.Output {
	case OutputTable, OutputArrow:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", c.Output, OutputTable, OutputArrow)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// LoadConfig loads configuration from defaults, a YAML file, DUCKARROW_
// environment variables and explicitly set flags, in increasing order of
// precedence.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"engine":         DefaultEngine,
		"database":       DefaultDatabase,
		"chunk_size":     DefaultChunkSize,
		"output":         OutputTable,
		"strip_metadata": false,
		"verbose":        false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// DUCKARROW_CHUNK_SIZE -> chunk_size
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = used
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
