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

package keyref

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// FileKind identifies how a key file stores its reference.
type FileKind int

const (
	// FileUnknown is content that is not a recognized key file.
	FileUnknown FileKind = iota
	// FileDER is a DER PKCS #8 envelope.
	FileDER
	// FilePEM is a PEM PKCS #8 envelope.
	FilePEM
	// FileCertName is a text file whose first line is a certificate name
	// or a tagged reference.
	FileCertName
)

func (k FileKind) String() string {
	switch k {
	case FileDER:
		return "der"
	case FilePEM:
		return "pem"
	case FileCertName:
		return "cert-name"
	default:
		return "unknown"
	}
}

// DetectFileKind guesses the key file kind from its first byte.
func DetectFileKind(data []byte) FileKind {
	if len(data) == 0 {
		return FileUnknown
	}
	switch c := rune(data[0]); {
	case c == 0x30: // ASN.1 SEQUENCE
		return FileDER
	case c == '-':
		return FilePEM
	case c < unicode.MaxASCII && (unicode.IsPrint(c) || unicode.IsSpace(c)):
		return FileCertName
	}
	return FileUnknown
}

// Load decodes a reference from key file content of any supported kind.
func Load(data []byte) (*Reference, error) {
	switch DetectFileKind(data) {
	case FileDER:
		return DecodeEnvelope(data)
	case FilePEM:
		return DecodePEM(data)
	case FileCertName:
		line := firstLine(data)
		if strings.HasPrefix(line, Tag) {
			return Parse([]byte(line))
		}
		return FromCertName(line)
	default:
		return nil, signerr.New(signerr.KindInvalidKey, "key file does not contain a recognized key")
	}
}

// LoadFile reads and decodes a key file. Read errors keep the os error in the
// chain so callers can tell a missing file from an unreadable one.
func LoadFile(path string) (*Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	ref, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return ref, nil
}

func firstLine(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r")
	}
	return ""
}
