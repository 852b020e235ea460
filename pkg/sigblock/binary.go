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
	"errors"
	"fmt"
	"io"

	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

const (
	// DefaultModulusBytes is the length granularity of binary blocks: key
	// sizes are multiples of 1024 bits.
	DefaultModulusBytes = 128

	// DefaultMaxKeyBits is the largest RSA key SignFile signs with.
	DefaultMaxKeyBits = 4096

	exponentBytes = 4
)

// BinaryDecoder decodes FormatBinary responses.
//
// The modulus and exponent fields are skipped; the signature is the tail of
// the block, converted from little-endian to big-endian.
type BinaryDecoder struct {
	// ModulusBytes is the granularity (n-4) must be a multiple of.
	ModulusBytes int
	// MaxKeyBits bounds the number of bytes read.
	MaxKeyBits int
}

// MaxBlockSize returns the largest response the decoder reads.
func (d *BinaryDecoder) MaxBlockSize() int {
	bits := d.MaxKeyBits
	if bits <= 0 {
		bits = DefaultMaxKeyBits
	}
	return (bits/8)*2 + exponentBytes
}

// Decode reads at most MaxBlockSize bytes from r and returns the signature.
func (d *BinaryDecoder) Decode(r io.Reader) ([]byte, error) {
	buf := make([]byte, d.MaxBlockSize())
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("problem reading signature block: %w", err)
	}
	return d.DecodeBytes(buf[:n])
}

// DecodeBytes decodes a complete response block.
func (d *BinaryDecoder) DecodeBytes(block []byte) ([]byte, error) {
	modulus := d.ModulusBytes
	if modulus <= 0 {
		modulus = DefaultModulusBytes
	}

	n := len(block)
	if n <= exponentBytes || (n-exponentBytes)%modulus != 0 {
		return nil, signerr.Newf(signerr.KindInvalidSignatureLength,
			"signature block is %d bytes; length minus %d must be a non-zero multiple of %d",
			n, exponentBytes, modulus)
	}

	sigLen := (n - exponentBytes) / 2
	sig := make([]byte, sigLen)
	for i := range sig {
		sig[i] = block[n-1-i]
	}
	return sig, nil
}
