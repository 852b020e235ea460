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

package options

import (
	"github.com/spf13/cobra"

	"github.com/sigstore/signfile-bridge/pkg/config"
)

// RequestFlags select how SignFile is asked to sign. Their names match the
// config keys so they can be bound with viper.
type RequestFlags struct {
	Hash         string
	Mode         string
	Format       string
	Padding      string
	ModulusBytes int
}

// AddFlags adds request flags to the cobra command.
func (o *RequestFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Hash, config.KeyHash, "sha256", "Hash algorithm (sha1, sha256, sha384, sha512).")
	cmd.Flags().StringVar(&o.Mode, config.KeyMode, "digest", "What is sent to SignFile (digest, content).")
	cmd.Flags().StringVar(&o.Format, config.KeyFormat, "binary", "Signature block format returned by SignFile (binary, container).")
	cmd.Flags().StringVar(&o.Padding, config.KeyPadding, "pkcs1", "RSA padding for digest requests (pkcs1, pss).")
	cmd.Flags().IntVar(&o.ModulusBytes, config.KeyModulusBytes, 128, "Length granularity of binary signature blocks.")
}

// SignOptions are the flags of the sign command.
type SignOptions struct {
	RequestFlags
	// KeyPath is the key envelope or certificate-name file.
	KeyPath string
	// SignaturePath is where the raw signature is written.
	SignaturePath string
}

// AddFlags adds sign flags to the cobra command.
func (o *SignOptions) AddFlags(cmd *cobra.Command) {
	o.RequestFlags.AddFlags(cmd)
	cmd.Flags().StringVar(&o.KeyPath, "key", "", "Key envelope (.pk8 or .pem) or certificate-name file. [required]")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagFilename("key", "pk8", "pem", "txt")
	cmd.Flags().StringVar(&o.SignaturePath, "signature", "", "Location of the signature file to generate. Defaults to INPUT.sig")
}

// SignAPKOptions are the flags of the signapk command.
type SignAPKOptions struct {
	// WholeFile embeds a whole-file signature (-ota).
	WholeFile bool
}

// AddFlags adds signapk flags to the cobra command.
func (o *SignAPKOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.WholeFile, "whole-file", "w", false, "Sign the whole file, as for OTA packages.")
}

// MakePK8Options are the flags of the makepk8 command.
type MakePK8Options struct {
	// PEM also writes a PEM encoded copy.
	PEM bool
}

// AddFlags adds makepk8 flags to the cobra command.
func (o *MakePK8Options) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.PEM, "pem", false, "Also write KEYFILE_BASE.pem.")
}

// AddAllFlags is a helper function to register multiple flag groups at once.
func AddAllFlags(cmd *cobra.Command, flagGroups ...FlagAdder) {
	for _, fg := range flagGroups {
		fg.AddFlags(cmd)
	}
}
