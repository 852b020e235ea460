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

// Package wholefile signs archives in place: the input is copied to the
// output path and SignFile embeds its signature into that copy.
package wholefile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
	"github.com/sigstore/signfile-bridge/pkg/signing"
	"github.com/sigstore/signfile-bridge/pkg/tracing"
)

// Signer signs archives in place.
type Signer struct {
	client *signfile.Client
	logger logging.Logger
}

// New creates a Signer around client.
func New(client *signfile.Client, logger logging.Logger) *Signer {
	return &Signer{client: client, logger: logging.EnsureLogger(logger)}
}

// SignInPlace copies input to output and has SignFile sign output.
// Exactly one reference is accepted; extra references are rejected before
// anything is copied. When input and output are the same file the copy is
// skipped. embed requests a whole-file signature (-ota).
func (s *Signer) SignInPlace(ctx context.Context, input, output string, refs []*keyref.Reference, embed bool) error {
	switch {
	case len(refs) > 1:
		return signerr.Newf(signerr.KindTooManyKeys, "only one key may be used for in-place signing, got %d", len(refs))
	case len(refs) == 0 || refs[0] == nil:
		return signerr.New(signerr.KindInvalidKey, "no signer reference given")
	}

	attrs := map[string]interface{}{"input": input, "output": output, "ota": embed}
	err := tracing.Run(ctx, "wholefile.copy", attrs, func(context.Context) error {
		return copyFile(input, output)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("copied %s to %s", input, output)

	return s.client.SignWholeFile(ctx, output, refs[0], embed)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return signerr.Wrap(signerr.KindCopyFailed, err, "opening input")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return signerr.Wrap(signerr.KindCopyFailed, err, "reading input")
	}
	if info.IsDir() {
		return signerr.Newf(signerr.KindCopyFailed, "input %s is a directory", src)
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return nil
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return signerr.Wrap(signerr.KindCopyFailed, err, "creating output")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return signerr.Wrap(signerr.KindCopyFailed, err, fmt.Sprintf("copying %s to %s", src, dst))
	}
	if err := out.Close(); err != nil {
		return signerr.Wrap(signerr.KindCopyFailed, err, "closing output")
	}
	return nil
}

// FileSignerOptions configures a FileSigner.
type FileSignerOptions struct {
	InputPath  string
	OutputPath string
	References []*keyref.Reference
	Embed      bool
}

// FileSigner adapts SignInPlace to signing.FileSigner.
type FileSigner struct {
	signer *Signer
	opts   FileSignerOptions
}

var _ signing.FileSigner = (*FileSigner)(nil)

// NewFileSigner returns a FileSigner for opts.
func NewFileSigner(s *Signer, opts FileSignerOptions) *FileSigner {
	return &FileSigner{signer: s, opts: opts}
}

// Sign implements signing.FileSigner.
func (f *FileSigner) Sign(ctx context.Context) (signing.Result, error) {
	if err := f.signer.SignInPlace(ctx, f.opts.InputPath, f.opts.OutputPath, f.opts.References, f.opts.Embed); err != nil {
		return signing.Result{Message: fmt.Sprintf("Failed to sign: %v", err)}, err
	}
	return signing.Result{Signed: true, Message: "Signing succeeded"}, nil
}
