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

// Package ecss adapts SignFile-backed signing to crypto.Signer and to
// sigstore's signature.Signer.
//
// The private key never exists locally: Sign sends the digest to SignFile
// and decodes the returned signature block. The public key is only known
// when the signing certificate is supplied.
package ecss

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

var (
	_ crypto.Signer    = (*Signer)(nil)
	_ signature.Signer = (*Signer)(nil)
)

// SupportedHashes lists the digests SignFile accepts.
var SupportedHashes = []crypto.Hash{crypto.SHA1, crypto.SHA256, crypto.SHA384, crypto.SHA512}

// ErrNoPublicKey is returned by PublicKey when no certificate was configured.
var ErrNoPublicKey = errors.New("no signing certificate configured")

// Options configures a Signer.
type Options struct {
	Client    *signfile.Client
	Reference *keyref.Reference
	// Format is the response layout requested from SignFile.
	Format       sigblock.Format
	ModulusBytes int
	// Hash is used by SignMessage when no hash option is given. Zero means SHA256.
	Hash crypto.Hash
	// Certificate, if set, provides the public key.
	Certificate *x509.Certificate
}

// Signer signs digests through SignFile.
type Signer struct {
	client  *signfile.Client
	ref     *keyref.Reference
	format  sigblock.Format
	decoder sigblock.Decoder
	hash    crypto.Hash
	public  crypto.PublicKey
}

// New creates a Signer.
func New(opts Options) (*Signer, error) {
	if opts.Client == nil {
		return nil, errors.New("ecss signer requires a SignFile client")
	}
	if opts.Reference == nil || opts.Reference.Len() == 0 {
		return nil, signerr.New(signerr.KindInvalidKey, "ecss signer requires a signer reference")
	}
	dec, err := sigblock.NewDecoder(opts.Format, opts.ModulusBytes)
	if err != nil {
		return nil, err
	}
	h := opts.Hash
	if h == 0 {
		h = crypto.SHA256
	}

	s := &Signer{
		client:  opts.Client,
		ref:     opts.Reference,
		format:  opts.Format,
		decoder: dec,
		hash:    h,
	}
	if opts.Certificate != nil {
		if _, ok := opts.Certificate.PublicKey.(*rsa.PublicKey); !ok {
			return nil, signerr.Newf(signerr.KindInvalidKey, "certificate key is %T, SignFile signs with RSA only", opts.Certificate.PublicKey)
		}
		s.public = opts.Certificate.PublicKey
	}
	return s, nil
}

// LoadCertificate reads the first certificate from a PEM file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate %s: %w", path, err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificate found in %s", path)
	}
	return certs[0], nil
}

// Public returns the certificate's public key, or nil when unknown.
func (s *Signer) Public() crypto.PublicKey {
	return s.public
}

// Sign implements crypto.Signer. rand is ignored; *rsa.PSSOptions selects
// PSS padding, anything else PKCS #1 v1.5.
func (s *Signer) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.SignDigest(context.Background(), digest, opts)
}

// SignDigest is Sign with a context bounding the wait on SignFile.
func (s *Signer) SignDigest(ctx context.Context, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts == nil {
		return nil, signerr.New(signerr.KindInvalidKey, "signer options must name a hash")
	}
	h := opts.HashFunc()
	if _, err := signfile.HashName(h); err != nil {
		return nil, signerr.Wrap(signerr.KindInvalidKey, err, "unsupported hash")
	}
	if len(digest) != h.Size() {
		return nil, fmt.Errorf("digest length %d does not match %v", len(digest), h)
	}

	padding := signfile.PaddingPKCS1
	if _, ok := opts.(*rsa.PSSOptions); ok {
		padding = signfile.PaddingPSS
	}

	path, err := s.client.SignDigest(ctx, digest, h, padding, s.format, s.ref)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.client.RemoveTemp(path) }()
	return sigblock.DecodeFile(s.decoder, path)
}

// PublicKey implements signature.PublicKeyProvider.
func (s *Signer) PublicKey(_ ...signature.PublicKeyOption) (crypto.PublicKey, error) {
	if s.public == nil {
		return nil, ErrNoPublicKey
	}
	return s.public, nil
}

// SignMessage implements signature.Signer. The message is hashed locally
// unless a precomputed digest is passed with options.WithDigest.
func (s *Signer) SignMessage(message io.Reader, opts ...signature.SignOption) ([]byte, error) {
	ctx := context.Background()
	var signerOpts crypto.SignerOpts = s.hash
	for _, opt := range opts {
		opt.ApplyContext(&ctx)
		opt.ApplyCryptoSignerOpts(&signerOpts)
	}

	digest, h, err := signature.ComputeDigestForSigning(message, signerOpts.HashFunc(), SupportedHashes, opts...)
	if err != nil {
		return nil, err
	}
	if pss, ok := signerOpts.(*rsa.PSSOptions); ok {
		return s.SignDigest(ctx, digest, &rsa.PSSOptions{SaltLength: pss.SaltLength, Hash: h})
	}
	return s.SignDigest(ctx, digest, h)
}
