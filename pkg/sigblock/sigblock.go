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

// Package sigblock decodes the signature responses written by SignFile.
//
// Two mutually exclusive response formats exist. FormatBinary is the raw
// block written for hash-input requests:
//
//	modulus  : key length bytes (little-endian)
//	exponent : 4 bytes (little-endian)
//	signature: key length bytes (little-endian)
//
// FormatContainer is a PKCS #7 SignedData container, written for
// content requests. Which one applies is a deployment choice; the format is
// never sniffed from the response.
package sigblock

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// Format selects the response decoding strategy.
type Format int

const (
	// FormatBinary is the fixed little-endian modulus/exponent/signature layout.
	FormatBinary Format = iota
	// FormatContainer is a PKCS #7 SignedData detached-signature container.
	FormatContainer
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatContainer:
		return "container"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "a", "raw":
		return FormatBinary, nil
	case "container", "b", "pkcs7", "cms":
		return FormatContainer, nil
	default:
		return 0, fmt.Errorf("unknown signature response format %q (valid: binary, container)", s)
	}
}

// Decoder turns a SignFile response into signature bytes.
type Decoder interface {
	Decode(r io.Reader) ([]byte, error)
}

// NewDecoder returns the decoder for format. modulusBytes only applies to
// FormatBinary; zero selects DefaultModulusBytes.
func NewDecoder(format Format, modulusBytes int) (Decoder, error) {
	switch format {
	case FormatBinary:
		return &BinaryDecoder{ModulusBytes: modulusBytes}, nil
	case FormatContainer:
		return &ContainerDecoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported signature response format %d", format)
	}
}

// DecodeFile decodes the response stored at path.
func DecodeFile(d Decoder, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, signerr.Wrap(signerr.KindSignerProcessFailed, err, "signature block not written by SignFile")
		}
		return nil, fmt.Errorf("failed to open signature block: %w", err)
	}
	defer f.Close()

	return d.Decode(f)
}
