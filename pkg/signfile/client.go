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
	"context"
	"crypto"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/tracing"
)

// Client invokes SignFile. A Client holds no per-call state and may be
// shared between concurrent sessions; each call uses its own temp files.
type Client struct {
	config  Config
	runner  Runner
	temps   *TempFiles
	tempDir string
	logger  logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithTempFiles sets the registry temp files are recorded in.
func WithTempFiles(t *TempFiles) Option {
	return func(c *Client) { c.temps = t }
}

// WithTempDir sets the directory temp files are created in.
func WithTempDir(dir string) Option {
	return func(c *Client) { c.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the signer described by cfg.
//
// Response files returned by SignDigest and SignContent belong to the
// caller, who releases them with RemoveTemp. Without WithTempFiles the
// client records files in DefaultTempFiles; see RemoveTempFiles.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		config: cfg,
		runner: ExecRunner{},
		temps:  DefaultTempFiles(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.EnsureLogger(c.logger)
	return c
}

// Config returns the signer configuration.
func (c *Client) Config() Config {
	return c.config
}

// TempFiles returns the registry the client records temp files in.
func (c *Client) TempFiles() *TempFiles {
	return c.temps
}

// CreateTemp creates and registers a temp file in the client's temp dir.
func (c *Client) CreateTemp(pattern string) (*os.File, error) {
	return c.temps.Create(c.tempDir, pattern)
}

// RemoveTemp deletes temp files created through the client.
func (c *Client) RemoveTemp(paths ...string) error {
	return c.temps.Remove(paths...)
}

// Result describes a successful invocation.
type Result struct {
	// ID identifies the invocation in logs and temp file names.
	ID string
	// Args is the command line that was run, tool path first.
	Args []string
	// Output is the tool's merged stdout and stderr.
	Output []byte
	// ResponsePath is where the signature block was written. It is empty
	// for whole-file signing.
	ResponsePath string
}

// SignDigest has SignFile sign a precomputed digest and returns the path
// of the response file.
func (c *Client) SignDigest(ctx context.Context, digest []byte, hash crypto.Hash, padding Padding, format sigblock.Format, ref *keyref.Reference) (string, error) {
	id := uuid.NewString()

	in, err := c.CreateTemp("ecss-" + id + "-*.dgst")
	if err != nil {
		return "", err
	}
	defer func() { _ = c.RemoveTemp(in.Name()) }()
	_, werr := in.Write(digest)
	cerr := in.Close()
	if werr != nil || cerr != nil {
		return "", fmt.Errorf("writing digest file: %w", firstErr(werr, cerr))
	}

	out, err := c.allocateOutput(id)
	if err != nil {
		return "", err
	}

	res, err := c.invoke(ctx, id, Request{
		Mode:       ModeDigest,
		Hash:       hash,
		Padding:    padding,
		Format:     format,
		InputPath:  in.Name(),
		OutputPath: out,
		Reference:  ref,
	})
	if err != nil {
		_ = c.RemoveTemp(out)
		return "", err
	}
	return res.ResponsePath, nil
}

// SignContent has SignFile produce a detached signature over the file at
// contentPath and returns the path of the response file.
func (c *Client) SignContent(ctx context.Context, contentPath string, hash crypto.Hash, format sigblock.Format, ref *keyref.Reference) (string, error) {
	id := uuid.NewString()

	out, err := c.allocateOutput(id)
	if err != nil {
		return "", err
	}

	res, err := c.invoke(ctx, id, Request{
		Mode:       ModeContent,
		Hash:       hash,
		Format:     format,
		InputPath:  contentPath,
		OutputPath: out,
		Reference:  ref,
	})
	if err != nil {
		_ = c.RemoveTemp(out)
		return "", err
	}
	return res.ResponsePath, nil
}

// SignWholeFile has SignFile sign the archive at path in place.
func (c *Client) SignWholeFile(ctx context.Context, path string, ref *keyref.Reference, embed bool) error {
	_, err := c.Invoke(ctx, Request{
		Mode:                 ModeWholeFile,
		OutputPath:           path,
		Reference:            ref,
		EmbedWholeFileDigest: embed,
	})
	return err
}

// Invoke validates the environment and runs SignFile for req.
func (c *Client) Invoke(ctx context.Context, req Request) (*Result, error) {
	return c.invoke(ctx, uuid.NewString(), req)
}

func (c *Client) invoke(ctx context.Context, id string, req Request) (*Result, error) {
	log := c.logger.WithFields(map[string]interface{}{
		"invocation": id,
		"mode":       req.Mode.String(),
	})

	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	argv, err := BuildArgs(c.config.ToolPath(), req)
	if err != nil {
		return nil, err
	}
	log.Debug("redirecting: %s", strings.Join(argv, " "))

	var output []byte
	attrs := map[string]interface{}{
		"signfile.mode":   req.Mode.String(),
		"signfile.tokens": req.Reference.Len(),
	}
	err = tracing.Run(ctx, "signfile.invoke", attrs, func(ctx context.Context) error {
		out, code, runErr := c.runner.Run(ctx, c.config.Dir, argv)
		output = out
		return classify(ctx, out, code, runErr)
	})
	if err != nil {
		log.Debug("SignFile invocation failed: %v", err)
		return nil, err
	}
	log.Debug("SignFile completed, %d bytes of output", len(output))

	res := &Result{ID: id, Args: argv, Output: output}
	if req.Mode != ModeWholeFile {
		res.ResponsePath = req.OutputPath
	}
	return res, nil
}

func (c *Client) allocateOutput(id string) (string, error) {
	f, err := c.CreateTemp("ecss-" + id + "-*.sig")
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing response file: %w", err)
	}
	return f.Name(), nil
}

func classify(ctx context.Context, output []byte, code int, runErr error) error {
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &signerr.Error{
				Kind:    signerr.KindCancelled,
				Message: "interrupted while waiting for SignFile",
				Output:  string(output),
				Cause:   ctxErr,
			}
		}
		return &signerr.Error{
			Kind:    signerr.KindSignerProcessUnavailable,
			Message: "unable to run SignFile",
			Output:  string(output),
			Cause:   runErr,
		}
	}
	if code != 0 {
		return &signerr.Error{
			Kind:     signerr.KindSignerProcessFailed,
			Message:  "SignFile failed",
			ExitCode: code,
			Output:   string(output),
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
