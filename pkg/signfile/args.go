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
	"crypto"
	"fmt"
	"strings"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// Mode selects the SignFile signature style.
type Mode int

const (
	// ModeDigest signs a precomputed hash ("-s h").
	ModeDigest Mode = iota
	// ModeContent produces a detached signature over raw content ("-s cl").
	ModeContent
	// ModeWholeFile signs an archive in place.
	ModeWholeFile
)

func (m Mode) String() string {
	switch m {
	case ModeDigest:
		return "digest"
	case ModeContent:
		return "content"
	case ModeWholeFile:
		return "whole-file"
	default:
		return "unknown"
	}
}

// Padding is the RSA padding scheme requested in digest mode.
type Padding int

const (
	PaddingPKCS1 Padding = iota
	PaddingPSS
)

// String returns the name SignFile expects after -rsa_padding.
func (p Padding) String() string {
	switch p {
	case PaddingPKCS1:
		return "PKCS1"
	case PaddingPSS:
		return "PSS"
	default:
		return "unknown"
	}
}

// ParsePadding parses a padding scheme name, case-insensitively.
func ParsePadding(s string) (Padding, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PKCS1", "PKCS1V15", "PKCS1-V1_5":
		return PaddingPKCS1, nil
	case "PSS":
		return PaddingPSS, nil
	default:
		return 0, fmt.Errorf("unsupported RSA padding %q (valid: pkcs1, pss)", s)
	}
}

var hashNames = map[crypto.Hash]string{
	crypto.SHA1:   "SHA1",
	crypto.SHA256: "SHA256",
	crypto.SHA384: "SHA384",
	crypto.SHA512: "SHA512",
}

// HashName returns the name SignFile expects after -ha.
func HashName(h crypto.Hash) (string, error) {
	name, ok := hashNames[h]
	if !ok {
		return "", fmt.Errorf("hash %v not supported by SignFile", h)
	}
	return name, nil
}

// ParseHash parses "sha256", "SHA-256" and similar spellings.
func ParseHash(s string) (crypto.Hash, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for h, name := range hashNames {
		if name == norm {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unsupported hash %q (valid: sha1, sha256, sha384, sha512)", s)
}

// Request describes one SignFile invocation.
type Request struct {
	Mode    Mode
	Hash    crypto.Hash
	Padding Padding
	// Format selects the response layout and with it the output flag.
	Format sigblock.Format
	// InputPath is the digest file (ModeDigest) or content file (ModeContent).
	InputPath string
	// OutputPath receives the response, or is the archive signed in place
	// for ModeWholeFile.
	OutputPath string
	Reference  *keyref.Reference
	// EmbedWholeFileDigest adds -ota in ModeWholeFile.
	EmbedWholeFileDigest bool
}

func outputFlag(f sigblock.Format) (string, error) {
	switch f {
	case sigblock.FormatBinary:
		return "-out", nil
	case sigblock.FormatContainer:
		return "-cf", nil
	default:
		return "", fmt.Errorf("unsupported response format %v", f)
	}
}

// BuildArgs returns the full command line, tool path first. Argument order
// is significant to SignFile:
//
//	digest:     tool <digest> -vv -s h -ha <HASH> -rsa_padding <PAD> <outflag> <out> <tokens...>
//	content:    tool -vv -s cl -ha <HASH> -ts <outflag> <out> <tokens...> <input>
//	whole file: tool -vv -ts <tokens...> [-ota] <output>
func BuildArgs(toolPath string, req Request) ([]string, error) {
	if req.Reference == nil || req.Reference.Len() == 0 {
		return nil, signerr.New(signerr.KindInvalidKey, "no signer reference tokens")
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("%s request has no output path", req.Mode)
	}

	switch req.Mode {
	case ModeDigest, ModeContent:
		if req.InputPath == "" {
			return nil, fmt.Errorf("%s request has no input path", req.Mode)
		}
		hash, err := HashName(req.Hash)
		if err != nil {
			return nil, signerr.Wrap(signerr.KindInvalidKey, err, "unsupported hash")
		}
		flag, err := outputFlag(req.Format)
		if err != nil {
			return nil, err
		}

		if req.Mode == ModeDigest {
			args := []string{toolPath, req.InputPath, "-vv", "-s", "h", "-ha", hash,
				"-rsa_padding", req.Padding.String(), flag, req.OutputPath}
			return append(args, req.Reference.Tokens()...), nil
		}
		args := []string{toolPath, "-vv", "-s", "cl", "-ha", hash, "-ts", flag, req.OutputPath}
		args = append(args, req.Reference.Tokens()...)
		return append(args, req.InputPath), nil

	case ModeWholeFile:
		args := append([]string{toolPath, "-vv", "-ts"}, req.Reference.Tokens()...)
		if req.EmbedWholeFileDigest {
			args = append(args, "-ota")
		}
		return append(args, req.OutputPath), nil

	default:
		return nil, fmt.Errorf("unknown signing mode %d", req.Mode)
	}
}
