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

// Package signfile drives the external SignFile executable that performs RSA
// signing against a remote certificate service.
//
// Every call validates the configured signer directory afresh, builds an
// order-sensitive argument list, runs the tool in that directory with merged
// stdout/stderr, and classifies the exit status. Temporary files handed to
// the tool are registered with a TempFiles registry and removed at process
// exit rather than on return, as SignFile may still hold them briefly.
package signfile

import (
	"path/filepath"
	"strings"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/utils"
)

const (
	// EnvDir names the environment variable holding the signer directory.
	EnvDir = "SIGNFILE_PATH"

	// DefaultBinary is the executable name looked up inside the signer directory.
	DefaultBinary = "SignFile"
)

// Config locates the signer tool.
type Config struct {
	// Dir is the signer directory. It is also the tool's working directory.
	Dir string
	// Binary is the executable name inside Dir. Empty means DefaultBinary.
	Binary string
}

// ToolPath returns the absolute or Dir-relative path of the executable.
func (c Config) ToolPath() string {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	return filepath.Join(c.Dir, bin)
}

// Validate checks that the signer directory is configured and that the tool
// inside it is an executable regular file. The result is never cached.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return signerr.Newf(signerr.KindMisconfiguredEnvironment, "%s environment variable not set", EnvDir)
	}
	if err := utils.ValidateFolderExists(EnvDir, c.Dir); err != nil {
		return signerr.Wrap(signerr.KindMisconfiguredEnvironment, err, "signer directory unusable")
	}
	if err := utils.ValidateExecutable("signer tool", c.ToolPath()); err != nil {
		return signerr.Wrap(signerr.KindMisconfiguredEnvironment, err, "signer tool unusable")
	}
	return nil
}
