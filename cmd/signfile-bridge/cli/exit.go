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

package cli

import (
	"errors"
	"os"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// Exit codes shared with the original signapk and makepk8 tools.
const (
	ExitFailure       = 1
	ExitUsage         = 2
	ExitKeyNotFound   = 3
	ExitKeyUnreadable = 4
	ExitInputNotFound = 5
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func usageError(err error) error {
	return withExitCode(ExitUsage, err)
}

// keyFileError classifies a failure to load a key or certificate-name file.
func keyFileError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return withExitCode(ExitKeyNotFound, err)
	}
	return withExitCode(ExitKeyUnreadable, err)
}

// signingError classifies a failure after the key was loaded.
func signingError(err error) error {
	switch {
	case errors.Is(err, signerr.ErrTooManyKeys):
		return withExitCode(ExitUsage, err)
	case errors.Is(err, signerr.ErrCopyFailed) && errors.Is(err, os.ErrNotExist):
		return withExitCode(ExitInputNotFound, err)
	default:
		return withExitCode(ExitFailure, err)
	}
}
