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

// Package keyref handles ECSS key references: the symbolic stand-in for a
// private key that lives in the remote signing service.
//
// A reference is a list of SignFile parameters (certificate name and server
// options) carried behind the literal tag "ECSS! ". It travels inside a
// PKCS #8 envelope so that key-shaped APIs and files can hold it.
package keyref

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// Tag prefixes every encoded reference payload.
const Tag = "ECSS! "

// Reference is an immutable, ordered list of SignFile parameters.
type Reference struct {
	tokens []string
}

// Parse decodes a reference payload.
//
// The payload must be UTF-8 and start with Tag. The remainder is split on
// runs of whitespace; the resulting tokens keep their order.
func Parse(payload []byte) (*Reference, error) {
	if !utf8.Valid(payload) {
		return nil, signerr.New(signerr.KindInvalidEncoding, "key name is not a UTF-8 string")
	}

	s := string(payload)
	if !strings.HasPrefix(s, Tag) {
		return nil, signerr.New(signerr.KindNotAnEcssReference, "key parameters are not an ECSS key reference")
	}

	return &Reference{tokens: strings.Fields(s[len(Tag):])}, nil
}

// New builds a reference from explicit tokens.
func New(tokens ...string) (*Reference, error) {
	var fields []string
	for _, t := range tokens {
		fields = append(fields, strings.Fields(t)...)
	}
	if len(fields) == 0 {
		return nil, signerr.New(signerr.KindInvalidKey, "key reference needs at least one parameter")
	}
	return &Reference{tokens: fields}, nil
}

// FromCertName builds the reference for a bare certificate name, as found in
// plain-text key files: SignFile's "-c NAME" selector.
//
// The name stays a single argument even when it contains spaces. Such a
// reference cannot be written back as a payload; see Encodable.
func FromCertName(name string) (*Reference, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, signerr.New(signerr.KindInvalidKey, "certificate name is empty")
	}
	return &Reference{tokens: []string{"-c", name}}, nil
}

// Tokens returns a copy of the parameter list.
func (r *Reference) Tokens() []string {
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Encodable reports whether the payload parses back to the same tokens,
// which fails when a token contains whitespace.
func (r *Reference) Encodable() bool {
	for _, t := range r.tokens {
		if strings.ContainsFunc(t, unicode.IsSpace) {
			return false
		}
	}
	return true
}

// Len returns the number of parameters.
func (r *Reference) Len() int {
	return len(r.tokens)
}

// Payload returns the tagged UTF-8 encoding of the reference.
func (r *Reference) Payload() []byte {
	return []byte(Tag + strings.Join(r.tokens, " "))
}

// String returns the payload as text.
func (r *Reference) String() string {
	return string(r.Payload())
}
