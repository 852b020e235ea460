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
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Runner executes a command line in dir and returns its merged output.
//
// A non-nil error means the process could not be run to completion (start
// failure, I/O failure or context cancellation); otherwise exitCode holds
// its exit status.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) (output []byte, exitCode int, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, int, error) {
	if len(argv) == 0 {
		return nil, -1, errors.New("empty command line")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err == nil {
		return buf.Bytes(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return buf.Bytes(), -1, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return buf.Bytes(), exitErr.ExitCode(), nil
	}
	return buf.Bytes(), -1, err
}
