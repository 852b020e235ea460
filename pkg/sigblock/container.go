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

package sigblock

import (
	"fmt"
	"io"

	"github.com/smallstep/pkcs7"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

// ContainerDecoder decodes FormatContainer responses: the encrypted digest
// of the first signer in a PKCS #7 SignedData container. BER input, as
// emitted by some SignFile builds, is accepted.
type ContainerDecoder struct{}

// Decode reads the whole container from r and returns the signature.
func (d *ContainerDecoder) Decode(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("problem reading signature container: %w", err)
	}
	return d.DecodeBytes(data)
}

// DecodeBytes decodes a complete container.
func (d *ContainerDecoder) DecodeBytes(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, signerr.New(signerr.KindMalformedSignatureContainer, "signature container is empty")
	}

	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, signerr.Wrap(signerr.KindMalformedSignatureContainer, err, "SignFile output is not PKCS #7 SignedData")
	}
	if len(p7.Signers) == 0 {
		return nil, signerr.New(signerr.KindMalformedSignatureContainer, "signature container has no signer entries")
	}

	sig := p7.Signers[0].EncryptedDigest
	if len(sig) == 0 {
		return nil, signerr.New(signerr.KindMalformedSignatureContainer, "first signer entry has an empty signature")
	}

	out := make([]byte, len(sig))
	copy(out, sig)
	return out, nil
}
