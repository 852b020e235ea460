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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigstore/signfile-bridge/cmd/signfile-bridge/cli/options"
	"github.com/sigstore/signfile-bridge/pkg/keyref"
)

const (
	derExtension = ".pk8"
	pemExtension = ".pem"
)

func MakePK8() *cobra.Command {
	o := &options.MakePK8Options{}

	cmd := &cobra.Command{
		Use:   "makepk8 [--pem] KEYFILE_BASE ALGORITHM SIGNFILE_PARAMS...",
		Short: "Create a key envelope referencing a SignFile certificate.",
		Long: `Create a key envelope referencing a SignFile certificate.

    Writes KEYFILE_BASE.pk8, a PKCS #8 PrivateKeyInfo whose private key is
    the string "ECSS! " followed by SIGNFILE_PARAMS. Tools that load the
    envelope as an RSA key pass the parameters to SignFile verbatim. With
    --pem, KEYFILE_BASE.pem is written as well. Only RSA is supported.`,
		Example: `  signfile-bridge makepk8 --pem platform RSA -c "Platform Cert"`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 {
				return usageError(fmt.Errorf("expected KEYFILE_BASE ALGORITHM SIGNFILE_PARAMS, got %d argument(s)", len(args)))
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			base, algorithm := args[0], args[1]
			if algorithm != "RSA" {
				return withExitCode(ExitFailure, fmt.Errorf("unknown algorithm %q", algorithm))
			}

			ref, err := keyref.New(strings.Join(args[2:], " "))
			if err != nil {
				return usageError(err)
			}
			return writeEnvelope(base, ref, o.PEM)
		},
	}
	cmd.Flags().SetInterspersed(false)
	o.AddFlags(cmd)
	return cmd
}

func writeEnvelope(base string, ref *keyref.Reference, withPEM bool) error {
	der, err := keyref.EncodeEnvelope(ref)
	if err != nil {
		return withExitCode(ExitFailure, err)
	}
	if withPEM {
		pemBytes, err := keyref.EncodePEM(ref)
		if err != nil {
			return withExitCode(ExitFailure, err)
		}
		if err := os.WriteFile(base+pemExtension, pemBytes, 0o600); err != nil {
			return withExitCode(ExitFailure, fmt.Errorf("writing PEM envelope: %w", err))
		}
	}
	if err := os.WriteFile(base+derExtension, der, 0o600); err != nil {
		return withExitCode(ExitFailure, fmt.Errorf("writing DER envelope: %w", err))
	}
	return nil
}
