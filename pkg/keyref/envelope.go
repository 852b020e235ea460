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
	"encoding/asn1"
	"encoding/pem"
	"fmt"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// OIDRSAEncryption is the PKCS #1 rsaEncryption algorithm identifier.
var OIDRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// EncodeEnvelope wraps a reference in a DER PKCS #8 PrivateKeyInfo.
//
// The privateKey field holds the DER of an OCTET STRING whose content is the
// reference payload, matching the layout existing .pk8 reference files use.
func EncodeEnvelope(ref *Reference) ([]byte, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, signerr.New(signerr.KindInvalidKey, "empty key reference")
	}
	if !ref.Encodable() {
		return nil, signerr.New(signerr.KindInvalidKey, "key reference has a parameter containing whitespace")
	}

	var inner cryptobyte.Builder
	inner.AddASN1OctetString(ref.Payload())
	privateKey, err := inner.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode key payload: %w", err)
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(OIDRSAEncryption)
			b.AddASN1NULL()
		})
		b.AddASN1OctetString(privateKey)
	})

	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS #8 envelope: %w", err)
	}
	return der, nil
}

// DecodeEnvelope extracts the reference from a DER PKCS #8 PrivateKeyInfo.
func DecodeEnvelope(der []byte) (*Reference, error) {
	input := cryptobyte.String(der)

	var (
		pki, algo  cryptobyte.String
		version    int64
		oid        asn1.ObjectIdentifier
		privateKey []byte
	)
	if !input.ReadASN1(&pki, cbasn1.SEQUENCE) ||
		!pki.ReadASN1Integer(&version) ||
		!pki.ReadASN1(&algo, cbasn1.SEQUENCE) ||
		!algo.ReadASN1ObjectIdentifier(&oid) ||
		!pki.ReadASN1Bytes(&privateKey, cbasn1.OCTET_STRING) {
		return nil, signerr.New(signerr.KindInvalidKey, "data is not a PKCS #8 key envelope")
	}

	if !oid.Equal(OIDRSAEncryption) {
		return nil, signerr.Newf(signerr.KindInvalidKey, "algorithm %s not supported", oid)
	}

	return Parse(unwrapOctetString(privateKey))
}

// unwrapOctetString returns the content of b if b is exactly one DER OCTET
// STRING, and b itself otherwise.
func unwrapOctetString(b []byte) []byte {
	s := cryptobyte.String(b)
	var inner []byte
	if s.ReadASN1Bytes(&inner, cbasn1.OCTET_STRING) && s.Empty() {
		return inner
	}
	return b
}

// EncodePEM returns the envelope as a "PRIVATE KEY" PEM block.
func EncodePEM(ref *Reference) ([]byte, error) {
	der, err := EncodeEnvelope(ref)
	if err != nil {
		return nil, err
	}
	return cryptoutils.PEMEncode(cryptoutils.PrivateKeyPEMType, der), nil
}

// DecodePEM extracts the reference from a "PRIVATE KEY" PEM block.
func DecodePEM(data []byte) (*Reference, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, signerr.New(signerr.KindInvalidKey, "no PEM block found")
	}
	if block.Type != string(cryptoutils.PrivateKeyPEMType) {
		return nil, signerr.Newf(signerr.KindInvalidKey, "unexpected PEM block type %q", block.Type)
	}
	return DecodeEnvelope(block.Bytes)
}
