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

// Package options defines the command-line options and flags for the
// signfile-bridge CLI.
package options

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigstore/signfile-bridge/pkg/config"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

// FlagAdder is implemented by any flag group that can register itself to a cobra command.
type FlagAdder interface {
	AddFlags(cmd *cobra.Command)
}

// RootOptions defines flags available to every subcommand.
type RootOptions struct {
	// LogLevel sets the minimum log level (debug, info, warn, error, silent).
	LogLevel string
	// LogFormat sets the log output format (text, json).
	LogFormat string
	// Timeout bounds each command. Zero waits for SignFile indefinitely.
	Timeout time.Duration
	// SignerDir overrides SIGNFILE_PATH.
	SignerDir string
	// Binary overrides SIGNFILE_BINARY.
	Binary string
}

var _ FlagAdder = (*RootOptions)(nil)

// AddFlags registers the persistent root flags.
func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "info",
		"set the minimum log level (debug, info, warn, error, silent)")

	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "text",
		"set the log output format (text, json)")

	cmd.PersistentFlags().DurationVarP(&o.Timeout, "timeout", "t", 0,
		"timeout for commands (0 disables)")

	cmd.PersistentFlags().StringVar(&o.SignerDir, config.KeySignerDir, "",
		"directory containing the SignFile tool (overrides $"+signfile.EnvDir+")")
	_ = cmd.MarkPersistentFlagDirname(config.KeySignerDir)

	cmd.PersistentFlags().StringVar(&o.Binary, config.KeyBinary, signfile.DefaultBinary,
		"name of the signer executable inside the signer directory")
}

// GetLogLevel returns the effective log level based on the options.
func (o *RootOptions) GetLogLevel() logging.LogLevel {
	return logging.ParseLogLevel(o.LogLevel)
}

// GetLogFormat returns the log format based on the options.
func (o *RootOptions) GetLogFormat() logging.LogFormat {
	return logging.ParseLogFormat(o.LogFormat)
}

// NewLogger creates a stderr logger from the root options.
func (o *RootOptions) NewLogger() logging.Logger {
	return logging.NewLoggerWithOptions(logging.LoggerOptions{
		Level:  o.GetLogLevel(),
		Format: o.GetLogFormat(),
		Output: os.Stderr,
	})
}
