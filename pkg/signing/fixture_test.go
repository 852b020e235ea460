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

package signing

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smallstep/pkcs7"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	testCrt *x509.Certificate
)

// knownKey returns a 1024-bit key (128 byte modulus) and a matching
// self-signed certificate, shared by all tests in the package.
func knownKey(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 1024)
		if err != nil {
			panic(err)
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(7),
			Subject:      pkix.Name{CommonName: "Release Cert"},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(24 * time.Hour),
			KeyUsage:     x509.KeyUsageDigitalSignature,
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &k.PublicKey, k)
		if err != nil {
			panic(err)
		}
		c, err := x509.ParseCertificate(der)
		if err != nil {
			panic(err)
		}
		testKey, testCrt = k, c
	})
	return testKey, testCrt
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// binaryBlock lays out modulus, exponent and signature little-endian.
func binaryBlock(key *rsa.PrivateKey, sig []byte) []byte {
	var buf bytes.Buffer
	buf.Write(reversed(key.N.FillBytes(make([]byte, key.Size()))))
	e := make([]byte, 4)
	binary.LittleEndian.PutUint32(e, uint32(key.E))
	buf.Write(e)
	buf.Write(reversed(sig))
	return buf.Bytes()
}

func argAfter(argv []string, flag string) string {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == flag {
			return argv[i+1]
		}
	}
	return ""
}

// fakeSignFile emulates SignFile in-process with a known RSA key.
type fakeSignFile struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate

	mu         sync.Mutex
	calls      int
	exitCode   int
	output     string
	badBlock   bool
	containers [][]byte
	// responses lists every response path SignFile was asked to write.
	responses []string

	// started and release, when set, hold the call until release closes.
	started chan struct{}
	release chan struct{}
}

func (f *fakeSignFile) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSignFile) Run(_ context.Context, _ string, argv []string) ([]byte, int, error) {
	f.mu.Lock()
	f.calls++
	f.responses = append(f.responses, argAfter(argv, "-out")+argAfter(argv, "-cf"))
	exitCode, output, badBlock := f.exitCode, f.output, f.badBlock
	f.mu.Unlock()

	if f.release != nil {
		close(f.started)
		<-f.release
	}

	if exitCode != 0 {
		return []byte(output), exitCode, nil
	}

	h, err := signfile.ParseHash(argAfter(argv, "-ha"))
	if err != nil {
		return []byte(err.Error()), 2, nil
	}

	var digest, content []byte
	switch argAfter(argv, "-s") {
	case "h":
		if digest, err = os.ReadFile(argv[1]); err != nil {
			return nil, -1, err
		}
	case "cl":
		if content, err = os.ReadFile(argv[len(argv)-1]); err != nil {
			return nil, -1, err
		}
		hh := h.New()
		hh.Write(content)
		digest = hh.Sum(nil)
	}

	if out := argAfter(argv, "-cf"); out != "" {
		sd, err := pkcs7.NewSignedData(content)
		if err != nil {
			return nil, -1, err
		}
		sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
		if err := sd.AddSigner(f.cert, f.key, pkcs7.SignerInfoConfig{}); err != nil {
			return nil, -1, err
		}
		sd.Detach()
		der, err := sd.Finish()
		if err != nil {
			return nil, -1, err
		}
		f.mu.Lock()
		f.containers = append(f.containers, der)
		f.mu.Unlock()
		return []byte("Signing OK\n"), 0, os.WriteFile(out, der, 0o600)
	}

	var sig []byte
	if argAfter(argv, "-rsa_padding") == "PSS" {
		sig, err = rsa.SignPSS(rand.Reader, f.key, h, digest, nil)
	} else {
		sig, err = rsa.SignPKCS1v15(rand.Reader, f.key, h, digest)
	}
	if err != nil {
		return nil, -1, err
	}
	block := binaryBlock(f.key, sig)
	if badBlock {
		block = block[:10]
	}
	return []byte("Signing OK\n"), 0, os.WriteFile(argAfter(argv, "-out"), block, 0o600)
}

type fixture struct {
	fake   *fakeSignFile
	client *signfile.Client
	temps  *signfile.TempFiles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, cert := knownKey(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, signfile.DefaultBinary), []byte("#!/bin/sh\n"), 0o755))
	return newFixtureWithConfig(t, signfile.Config{Dir: dir}, &fakeSignFile{key: key, cert: cert})
}

func newFixtureWithConfig(t *testing.T, cfg signfile.Config, fake *fakeSignFile) *fixture {
	t.Helper()
	temps := &signfile.TempFiles{}
	t.Cleanup(func() { _ = temps.RemoveAll() })
	client := signfile.NewClient(cfg,
		signfile.WithRunner(fake),
		signfile.WithTempFiles(temps),
		signfile.WithTempDir(t.TempDir()),
		signfile.WithLogger(quietLogger()),
	)
	return &fixture{fake: fake, client: client, temps: temps}
}

func quietLogger() logging.Logger {
	return logging.NewLoggerWithOptions(logging.LoggerOptions{Level: logging.LevelSilent})
}

func (fx *fixture) options(mode RequestMode, format sigblock.Format) Options {
	return Options{Client: fx.client, Mode: mode, Format: format, Logger: quietLogger()}
}
