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

package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultNamePrefix = Namespace
	defaultMaxSizeKB  = int64(1024)
	defaultMaxFiles   = 100
	traceFileExt      = ".jsonl"
)

type fileConfig struct {
	folder    string
	prefix    string
	maxSizeKB int64
	maxFiles  int
}

// FileOption configures a RotatingFileWriter.
type FileOption func(*fileConfig)

// WithFolder sets the directory trace files are written to. The default
// is <user config dir>/duckarrow/traces.
func WithFolder(folder string) FileOption {
	return func(c *fileConfig) { c.folder = folder }
}

// WithNamePrefix sets the file name prefix.
func WithNamePrefix(prefix string) FileOption {
	return func(c *fileConfig) { c.prefix = prefix }
}

// WithMaxSizeKB sets the size after which a new file is started.
func WithMaxSizeKB(kb int64) FileOption {
	return func(c *fileConfig) { c.maxSizeKB = kb }
}

// WithMaxFiles sets how many files are kept.
func WithMaxFiles(n int) FileOption {
	return func(c *fileConfig) { c.maxFiles = n }
}

// RotatingFileWriter appends to "<prefix>-<UTC time>.jsonl" files in a
// folder, starting a new file once the current one reaches the size
// limit and deleting the oldest files beyond the count limit.
type RotatingFileWriter struct {
	cfg fileConfig

	mu  sync.Mutex
	cur *os.File
}

// NewRotatingFileWriter creates the folder if needed and checks that it
// is writable. No file is opened until the first Write.
func NewRotatingFileWriter(opts ...FileOption) (*RotatingFileWriter, error) {
	cfg := fileConfig{prefix: defaultNamePrefix, maxSizeKB: defaultMaxSizeKB, maxFiles: defaultMaxFiles}
	for _, o := range opts {
		o(&cfg)
	}
	if strings.TrimSpace(cfg.prefix) == "" {
		cfg.prefix = defaultNamePrefix
	}
	if cfg.maxSizeKB <= 0 {
		cfg.maxSizeKB = defaultMaxSizeKB
	}
	if cfg.maxFiles <= 0 {
		cfg.maxFiles = defaultMaxFiles
	}
	if strings.TrimSpace(cfg.folder) == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.folder = filepath.Join(dir, Namespace, "traces")
	}

	if err := os.MkdirAll(cfg.folder, 0o755); err != nil {
		return nil, err
	}
	probe, err := os.CreateTemp(cfg.folder, cfg.prefix)
	if err != nil {
		return nil, fmt.Errorf("trace folder %s is not writable: %w", cfg.folder, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &RotatingFileWriter{cfg: cfg}, nil
}

// Folder returns the directory trace files are written to.
func (w *RotatingFileWriter) Folder() string { return w.cfg.folder }

// Files lists the trace files, oldest first.
func (w *RotatingFileWriter) Files() ([]string, error) {
	return filepath.Glob(filepath.Join(w.cfg.folder, w.cfg.prefix+"-*"+traceFileExt))
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotate(); err != nil {
		return 0, err
	}
	if w.cur == nil {
		f, err := w.open()
		if err != nil {
			return 0, err
		}
		w.cur = f
	}
	return w.cur.Write(p)
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	err := w.cur.Close()
	w.cur = nil
	return err
}

// rotate closes the current file once it is full and prunes old files.
func (w *RotatingFileWriter) rotate() error {
	if w.cur == nil {
		return nil
	}
	info, err := w.cur.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.cfg.maxSizeKB*1024 {
		return nil
	}
	if err := w.cur.Close(); err != nil {
		return err
	}
	w.cur = nil
	return w.prune(w.cfg.maxFiles - 1)
}

// open appends to the newest file if it has room, else starts a new one.
func (w *RotatingFileWriter) open() (*os.File, error) {
	files, err := w.Files()
	if err == nil && len(files) > 0 {
		last := files[len(files)-1]
		if info, err := os.Stat(last); err == nil && info.Size() < w.cfg.maxSizeKB*1024 {
			if f, err := os.OpenFile(last, os.O_APPEND|os.O_WRONLY, 0o666); err == nil {
				return f, nil
			}
		}
	}
	name := w.cfg.prefix + "-" + time.Now().UTC().Format("2006-01-02-15-04-05.000000000") + traceFileExt
	return os.OpenFile(filepath.Join(w.cfg.folder, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
}

// prune deletes the oldest files so that at most keep remain.
func (w *RotatingFileWriter) prune(keep int) error {
	files, err := w.Files()
	if err != nil || len(files) <= keep {
		return nil
	}
	for _, f := range files[:len(files)-keep] {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}
