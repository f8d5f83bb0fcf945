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

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Database is an opened engine instance that hands out sessions.
type Database interface {
	Connect(ctx context.Context) (Conn, error)
	Close() error
}

// Config is what a backend needs to open a Database.
type Config struct {
	// Path is the database location; empty means in-memory.
	Path string
	// ChunkSize caps rows per fetched chunk; zero picks the backend default.
	ChunkSize int
	Logger    *slog.Logger
}

// OpenFunc opens a Database for a backend.
type OpenFunc func(ctx context.Context, cfg Config) (Database, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]OpenFunc)
)

// Register adds a backend under name. Backends call it from init.
func Register(name string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = open
}

// Lookup retrieves a backend by name.
func Lookup(name string) (OpenFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Open opens a Database using the backend registered under name.
func Open(ctx context.Context, name string, cfg Config) (Database, error) {
	open, ok := Lookup(name)
	if !ok {
		return nil, &UnknownEngineError{Name: name, Available: Names()}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return open(ctx, cfg)
}

// Names returns all registered backend names (sorted).
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownEngineError is returned when no backend is registered under Name.
type UnknownEngineError struct {
	Name      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine %q (available: %v)", e.Name, e.Available)
}
