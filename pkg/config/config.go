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

// Package config resolves signer settings from environment variables and
// command-line flags using viper.
package config

import (
	"crypto"
	"fmt"

	"github.com/spf13/viper"

	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
	"github.com/sigstore/signfile-bridge/pkg/signing"
)

// Setting keys. Flags bound with viper.BindPFlag use the same names.
const (
	KeySignerDir    = "signer-dir"
	KeyBinary       = "binary"
	KeyFormat       = "format"
	KeyMode         = "mode"
	KeyHash         = "hash"
	KeyPadding      = "padding"
	KeyModulusBytes = "modulus-bytes"
)

var envNames = map[string]string{
	KeySignerDir:    signfile.EnvDir,
	KeyBinary:       "SIGNFILE_BINARY",
	KeyFormat:       "ECSS_RESPONSE_FORMAT",
	KeyMode:         "ECSS_REQUEST_MODE",
	KeyHash:         "ECSS_HASH",
	KeyPadding:      "ECSS_PADDING",
	KeyModulusBytes: "ECSS_MODULUS_BYTES",
}

// Config is the resolved signer configuration.
type Config struct {
	Signer       signfile.Config
	Format       sigblock.Format
	Mode         signing.RequestMode
	Hash         crypto.Hash
	Padding      signfile.Padding
	ModulusBytes int
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyBinary, signfile.DefaultBinary)
	v.SetDefault(KeyFormat, "binary")
	v.SetDefault(KeyMode, "digest")
	v.SetDefault(KeyHash, "sha256")
	v.SetDefault(KeyPadding, "pkcs1")
	v.SetDefault(KeyModulusBytes, sigblock.DefaultModulusBytes)
	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
	return v
}

// EnvName returns the environment variable bound to key, if any.
func EnvName(key string) string {
	return envNames[key]
}

// Load parses the settings held by v. The signer directory is not checked
// here; the client validates it on every invocation.
func Load(v *viper.Viper) (*Config, error) {
	format, err := sigblock.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return nil, err
	}
	mode, err := signing.ParseRequestMode(v.GetString(KeyMode))
	if err != nil {
		return nil, err
	}
	h, err := signfile.ParseHash(v.GetString(KeyHash))
	if err != nil {
		return nil, err
	}
	padding, err := signfile.ParsePadding(v.GetString(KeyPadding))
	if err != nil {
		return nil, err
	}
	modulus := v.GetInt(KeyModulusBytes)
	if modulus <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", KeyModulusBytes, modulus)
	}

	return &Config{
		Signer: signfile.Config{
			Dir:    v.GetString(KeySignerDir),
			Binary: v.GetString(KeyBinary),
		},
		Format:       format,
		Mode:         mode,
		Hash:         h,
		Padding:      padding,
		ModulusBytes: modulus,
	}, nil
}
