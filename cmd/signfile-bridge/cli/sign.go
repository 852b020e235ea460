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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigstore/signfile-bridge/cmd/signfile-bridge/cli/options"
	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/signing"
	"github.com/sigstore/signfile-bridge/pkg/tracing"
	"github.com/sigstore/signfile-bridge/pkg/utils"
)

func Sign(a *app) *cobra.Command {
	o := &options.SignOptions{}

	cmd := &cobra.Command{
		Use:   "sign [OPTIONS] INPUT",
		Short: "Produce a detached RSA signature of a file.",
		Long: `Produce a detached RSA signature of a file.

    The file is streamed through a signing session and SignFile signs
    either its digest (--mode digest) or the file itself (--mode content).
    The raw signature bytes are written to --signature. Settings can also
    come from SIGNFILE_PATH, ECSS_REQUEST_MODE, ECSS_RESPONSE_FORMAT,
    ECSS_HASH, ECSS_PADDING and ECSS_MODULUS_BYTES.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError(fmt.Errorf("expected exactly one INPUT, got %d", len(args)))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			logger := a.logger()
			cfg, err := a.config()
			if err != nil {
				return err
			}

			ref, err := keyref.LoadFile(o.KeyPath)
			if err != nil {
				return keyFileError(err)
			}
			if err := utils.ValidateFileExists("input", input); err != nil {
				return withExitCode(ExitInputNotFound, err)
			}

			sigPath := o.SignaturePath
			if sigPath == "" {
				sigPath = input + ".sig"
			}

			signer, err := signing.NewDetachedSigner(signing.DetachedSignerOptions{
				InputPath:     input,
				SignaturePath: sigPath,
				Reference:     ref,
				Hash:          cfg.Hash,
				Padding:       cfg.Padding,
				Session: signing.Options{
					Client:       a.client(cfg, logger),
					Mode:         cfg.Mode,
					Format:       cfg.Format,
					ModulusBytes: cfg.ModulusBytes,
					Logger:       logger,
				},
			})
			if err != nil {
				return withExitCode(ExitFailure, err)
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			attrs := map[string]interface{}{
				"mode":   cfg.Mode.String(),
				"format": cfg.Format.String(),
			}
			return tracing.Run(ctx, "Sign", attrs, func(ctx context.Context) error {
				if _, err := signer.Sign(ctx); err != nil {
					return signingError(err)
				}
				return nil
			})
		},
	}
	o.AddFlags(cmd)
	return cmd
}
