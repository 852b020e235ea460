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

package signing

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"os"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
	"github.com/sigstore/signfile-bridge/pkg/utils"
)

// Result represents the outcome of a signing operation.
type Result struct {
	Signed  bool
	Message string
}

// FileSigner signs a file end to end.
type FileSigner interface {
	Sign(ctx context.Context) (Result, error)
}

// SignReader runs a whole session over r and returns the signature.
func SignReader(ctx context.Context, opts Options, ref *keyref.Reference, h crypto.Hash, padding signfile.Padding, r io.Reader) ([]byte, error) {
	s, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ref, h, padding); err != nil {
		return nil, err
	}
	if _, err := io.Copy(s, r); err != nil {
		s.Abort()
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return s.Finalize(ctx)
}

// DetachedSignerOptions configures a DetachedSigner.
type DetachedSignerOptions struct {
	InputPath     string
	SignaturePath string
	Reference     *keyref.Reference
	Hash          crypto.Hash
	Padding       signfile.Padding
	Session       Options
}

// DetachedSigner writes a raw detached signature of a file.
type DetachedSigner struct {
	opts   DetachedSignerOptions
	logger logging.Logger
}

var _ FileSigner = (*DetachedSigner)(nil)

// NewDetachedSigner validates the input path and returns a signer.
func NewDetachedSigner(opts DetachedSignerOptions) (*DetachedSigner, error) {
	if err := utils.ValidateFileExists("input", opts.InputPath); err != nil {
		return nil, err
	}
	if opts.SignaturePath == "" {
		return nil, fmt.Errorf("signature path is required")
	}
	return &DetachedSigner{opts: opts, logger: logging.EnsureLogger(opts.Session.Logger)}, nil
}

// Sign signs the input and writes the signature bytes to SignaturePath.
func (d *DetachedSigner) Sign(ctx context.Context) (Result, error) {
	d.logger.Debug("signing %s (%s request, %s response)", d.opts.InputPath, d.opts.Session.Mode, d.opts.Session.Format)

	f, err := os.Open(d.opts.InputPath)
	if err != nil {
		return Result{Message: fmt.Sprintf("Failed to open input: %v", err)}, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	sig, err := SignReader(ctx, d.opts.Session, d.opts.Reference, d.opts.Hash, d.opts.Padding, f)
	if err != nil {
		return Result{Message: fmt.Sprintf("Failed to sign: %v", err)}, err
	}

	if err := os.WriteFile(d.opts.SignaturePath, sig, 0o644); err != nil {
		return Result{Message: fmt.Sprintf("Failed to write signature: %v", err)}, fmt.Errorf("failed to write signature: %w", err)
	}
	d.logger.Info("Signature written to: %s", d.opts.SignaturePath)

	return Result{Signed: true, Message: "Signing succeeded"}, nil
}
