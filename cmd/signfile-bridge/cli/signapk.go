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
	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/signing/wholefile"
	"github.com/sigstore/signfile-bridge/pkg/tracing"
)

func SignAPK(a *app) *cobra.Command {
	o := &options.SignAPKOptions{}

	cmd := &cobra.Command{
		Use:   "signapk [-w] CERTIFICATE KEYFILE INPUT OUTPUT",
		Short: "Sign an archive in place through SignFile.",
		Long: `Sign an archive in place through SignFile.

    INPUT is copied to OUTPUT and SignFile embeds its signature into OUTPUT.
    KEYFILE holds the signing server's certificate name on its first line,
    or an ECSS key envelope. CERTIFICATE is accepted for compatibility with
    signapk and is not read. The signing server supports one key only.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 4 || len(args)%2 == 1 {
				return usageError(fmt.Errorf("expected CERTIFICATE KEYFILE pairs followed by INPUT OUTPUT"))
			}
			if keys := len(args)/2 - 1; keys > 1 {
				return usageError(signerr.Newf(signerr.KindTooManyKeys, "SignFile signs with one key only, got %d", keys))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger()
			cfg, err := a.config()
			if err != nil {
				return err
			}

			keyFile := args[1]
			input, output := args[len(args)-2], args[len(args)-1]
			logger.Debug("certificate %s is not used by the signing server", args[0])

			ref, err := keyref.LoadFile(keyFile)
			if err != nil {
				return keyFileError(err)
			}
			logger.Debug("loaded signer reference from %s (%d tokens)", keyFile, ref.Len())

			ctx, cancel := a.context(cmd)
			defer cancel()

			signer := wholefile.NewFileSigner(wholefile.New(a.client(cfg, logger), logger), wholefile.FileSignerOptions{
				InputPath:  input,
				OutputPath: output,
				References: []*keyref.Reference{ref},
				Embed:      o.WholeFile,
			})
			attrs := map[string]interface{}{"whole_file": o.WholeFile}
			return tracing.Run(ctx, "SignAPK", attrs, func(ctx context.Context) error {
				if _, err := signer.Sign(ctx); err != nil {
					return signingError(err)
				}
				logger.Info("Signed %s", output)
				return nil
			})
		},
	}
	o.AddFlags(cmd)
	return cmd
}
