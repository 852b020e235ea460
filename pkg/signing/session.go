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

// Package signing exposes SignFile-backed RSA signing through a conventional
// initialize, update, finalize lifecycle.
//
// A Session is strictly linear: Idle, then Accumulating, then Finalized or
// Failed. Wrong-state calls fail without touching the signer tool. Each
// session is single use and owns its own temporary files, so independent
// sessions can run concurrently.
package signing

import (
	"context"
	"crypto"
	_ "crypto/sha1" // register hash implementations SignFile accepts
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"os"
	"strings"
	"sync"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

// RequestMode selects what is sent to SignFile.
type RequestMode int

const (
	// RequestDigest hashes data locally and sends only the digest.
	RequestDigest RequestMode = iota
	// RequestContent buffers data in a temp file and sends the file.
	RequestContent
)

func (m RequestMode) String() string {
	switch m {
	case RequestDigest:
		return "digest"
	case RequestContent:
		return "content"
	default:
		return "unknown"
	}
}

// ParseRequestMode parses "digest" or "content".
func ParseRequestMode(s string) (RequestMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "digest", "hash":
		return RequestDigest, nil
	case "content", "raw":
		return RequestContent, nil
	default:
		return 0, fmt.Errorf("unknown request mode %q (valid: digest, content)", s)
	}
}

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAccumulating:
		return "Accumulating"
	case StateFinalized:
		return "Finalized"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Options configures a Session.
type Options struct {
	// Client runs SignFile. Required.
	Client *signfile.Client
	// Mode selects digest or raw-content requests.
	Mode RequestMode
	// Format is the response layout SignFile is asked for.
	Format sigblock.Format
	// ModulusBytes is the Format A length granularity; zero means 128.
	ModulusBytes int
	Logger       logging.Logger
}

// Session is one signing operation.
type Session struct {
	mu      sync.Mutex
	opts    Options
	decoder sigblock.Decoder
	logger  logging.Logger

	state      State
	// finalizing is set while SignFile runs; the lock is not held then.
	finalizing bool

	ref     *keyref.Reference
	hash    crypto.Hash
	padding signfile.Padding
	digest  hash.Hash
	content *os.File
}

// NewSession creates an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("signing session requires a SignFile client")
	}
	if opts.Mode != RequestDigest && opts.Mode != RequestContent {
		return nil, fmt.Errorf("unknown request mode %d", opts.Mode)
	}
	dec, err := sigblock.NewDecoder(opts.Format, opts.ModulusBytes)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:    opts,
		decoder: dec,
		logger:  logging.EnsureLogger(opts.Logger),
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize binds the session to a signer reference. key must be a
// *keyref.Reference; anything else is rejected with InvalidKey.
func (s *Session) Initialize(key any, h crypto.Hash, padding signfile.Padding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return signerr.Newf(signerr.KindAlreadyInitialized, "session is %s", s.state)
	}

	ref, ok := key.(*keyref.Reference)
	if !ok || ref == nil {
		return signerr.Newf(signerr.KindInvalidKey, "key is not an ECSS signer reference (%T)", key)
	}
	if ref.Len() == 0 {
		return signerr.New(signerr.KindInvalidKey, "signer reference has no tokens")
	}
	if _, err := signfile.HashName(h); err != nil || !h.Available() {
		return signerr.Newf(signerr.KindInvalidKey, "unsupported hash algorithm %v", h)
	}
	if padding != signfile.PaddingPKCS1 && padding != signfile.PaddingPSS {
		return signerr.Newf(signerr.KindInvalidKey, "unsupported padding %d", padding)
	}

	switch s.opts.Mode {
	case RequestDigest:
		s.digest = h.New()
	case RequestContent:
		f, err := s.opts.Client.CreateTemp("ecss-content-*")
		if err != nil {
			return err
		}
		s.content = f
	}

	s.ref = ref
	s.hash = h
	s.padding = padding
	s.state = StateAccumulating
	s.logger.Debug("session initialized: mode=%s format=%s hash=%v", s.opts.Mode, s.opts.Format, h)
	return nil
}

// Update feeds data into the session.
func (s *Session) Update(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAccumulating || s.finalizing {
		return signerr.Newf(signerr.KindNotInitialized, "update called on %s session", s.describe())
	}

	if s.digest != nil {
		s.digest.Write(p)
		return nil
	}
	if _, err := s.content.Write(p); err != nil {
		s.release()
		s.state = StateFailed
		return fmt.Errorf("buffering content: %w", err)
	}
	return nil
}

// Write implements io.Writer on top of Update.
func (s *Session) Write(p []byte) (int, error) {
	if err := s.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Finalize has SignFile sign the accumulated data and returns the decoded
// signature. The session ends Finalized on success and Failed otherwise;
// either way the reference and buffered data are released.
//
// The session is not locked while SignFile runs. To stop a running
// Finalize, cancel ctx; Abort has no effect until it returns.
func (s *Session) Finalize(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateAccumulating || s.finalizing {
		err := signerr.Newf(signerr.KindNotInitializedOrAlreadyFinalized, "finalize called on %s session", s.describe())
		s.mu.Unlock()
		return nil, err
	}
	s.finalizing = true
	s.mu.Unlock()

	sig, err := s.sign(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizing = false
	s.release()
	if err != nil {
		s.state = StateFailed
		return nil, err
	}
	s.state = StateFinalized
	return sig, nil
}

func (s *Session) sign(ctx context.Context) ([]byte, error) {
	var (
		path    string
		content string
		err     error
	)
	switch s.opts.Mode {
	case RequestDigest:
		path, err = s.opts.Client.SignDigest(ctx, s.digest.Sum(nil), s.hash, s.padding, s.opts.Format, s.ref)
	case RequestContent:
		content = s.content.Name()
		defer func() { _ = s.opts.Client.RemoveTemp(content) }()
		if cerr := s.content.Close(); cerr != nil {
			return nil, fmt.Errorf("closing content file: %w", cerr)
		}
		s.content = nil
		path, err = s.opts.Client.SignContent(ctx, content, s.hash, s.opts.Format, s.ref)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.opts.Client.RemoveTemp(path) }()

	sig, err := sigblock.DecodeFile(s.decoder, path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("decoded %d byte signature from %s", len(sig), path)
	return sig, nil
}

// Abort discards the session. A finalized session stays finalized, and a
// session inside Finalize is left to finish.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinalized || s.finalizing {
		return
	}
	s.release()
	s.state = StateFailed
}

func (s *Session) describe() string {
	if s.finalizing {
		return "finalizing"
	}
	return s.state.String()
}

// Verify is not supported: SignFile exposes no verification.
func (s *Session) Verify([]byte) (bool, error) {
	return false, signerr.New(signerr.KindNotImplemented, "signature verification is not supported")
}

// release drops the reference and buffered data.
func (s *Session) release() {
	s.ref = nil
	if s.digest != nil {
		s.digest.Reset()
		s.digest = nil
	}
	if s.content != nil {
		_ = s.content.Close()
		_ = s.opts.Client.RemoveTemp(s.content.Name())
		s.content = nil
	}
}
