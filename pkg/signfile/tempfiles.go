// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package signfile

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// TempFiles tracks temporary files. Files are removed by their owner
// through Remove once used; RemoveAll sweeps whatever is left, such as
// files of calls interrupted by a signal. Safe for concurrent use.
type TempFiles struct {
	mu    sync.Mutex
	paths []string
}

var defaultTempFiles = &TempFiles{}

// DefaultTempFiles returns the process-wide registry used by clients that
// were not given their own.
func DefaultTempFiles() *TempFiles {
	return defaultTempFiles
}

// RemoveTempFiles removes everything registered with DefaultTempFiles.
// Programs using clients built without WithTempFiles should call it at
// shutdown.
func RemoveTempFiles() error {
	return defaultTempFiles.RemoveAll()
}

// Create creates a new temporary file in dir (os.TempDir when empty) and
// registers it. The caller owns closing the returned file.
func (t *TempFiles) Create(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	t.Register(f.Name())
	return f, nil
}

// Register adds path to the registry.
func (t *TempFiles) Register(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Paths returns a snapshot of the registered paths.
func (t *TempFiles) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// Remove deletes the given files and drops them from the registry.
// Files that are already gone are ignored.
func (t *TempFiles) Remove(paths ...string) error {
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p != "" {
			drop[p] = true
		}
	}

	t.mu.Lock()
	kept := t.paths[:0]
	for _, p := range t.paths {
		if !drop[p] {
			kept = append(kept, p)
		}
	}
	t.paths = kept
	t.mu.Unlock()

	var errs []error
	for p := range drop {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveAll deletes every registered file and empties the registry.
// Files that are already gone are ignored.
func (t *TempFiles) RemoveAll() error {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
