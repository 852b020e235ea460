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

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/signfile-bridge/pkg/keyref"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

type exitCoder interface {
	ExitCode() int
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := New()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	return cmd.ExecuteContext(context.Background())
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec exitCoder
	require.True(t, errors.As(err, &ec), "error %v carries no exit code", err)
	return ec.ExitCode()
}

// fakeSigner writes a SignFile stand-in that records its arguments and
// answers every request with a zero-filled 260 byte binary block.
func fakeSigner(t *testing.T, exit int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	script := `#!/bin/sh
echo "$@" > args.log
status=` + strconv.Itoa(exit) + `
prev=""
last=""
for a in "$@"; do
  if [ "$prev" = "-out" ]; then
    dd if=/dev/zero of="$a" bs=260 count=1 2>/dev/null
  fi
  prev="$a"
  last="$a"
done
if [ "$status" = "0" ]; then
  case " $* " in
    *" -ts "*) printf 'SIGNED' >> "$last" ;;
  esac
fi
exit $status
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, signfile.DefaultBinary), []byte(script), 0o755))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestMakePK8(t *testing.T) {
	base := filepath.Join(t.TempDir(), "platform")
	require.NoError(t, run(t, "makepk8", "--pem", base, "RSA", "-c", "Platform Cert", "-pin", "42"))

	ref, err := keyref.LoadFile(base + ".pk8")
	require.NoError(t, err)
	assert.Equal(t, []string{"-c", "Platform", "Cert", "-pin", "42"}, ref.Tokens())

	pemRef, err := keyref.LoadFile(base + ".pem")
	require.NoError(t, err)
	assert.Equal(t, ref.Tokens(), pemRef.Tokens())
}

func TestMakePK8QuotedParams(t *testing.T) {
	base := filepath.Join(t.TempDir(), "key")
	require.NoError(t, run(t, "makepk8", base, "RSA", "-c Release -s 1"))

	ref, err := keyref.LoadFile(base + ".pk8")
	require.NoError(t, err)
	assert.Equal(t, []string{"-c", "Release", "-s", "1"}, ref.Tokens())
	assert.NoFileExists(t, base+".pem")
}

func TestMakePK8Errors(t *testing.T) {
	base := filepath.Join(t.TempDir(), "key")
	assert.Equal(t, ExitUsage, exitCode(t, run(t, "makepk8", base, "RSA")))
	assert.Equal(t, ExitFailure, exitCode(t, run(t, "makepk8", base, "EC", "-c", "x")))
	assert.Equal(t, ExitUsage, exitCode(t, run(t, "makepk8", "--bogus", base, "RSA", "x")))
}

func TestSignAPK(t *testing.T) {
	signer := fakeSigner(t, 0)
	work := t.TempDir()
	keyFile := writeFile(t, work, "platform.txt", "Platform Cert\n")
	input := writeFile(t, work, "app-unsigned.apk", "apk-")
	output := filepath.Join(work, "app.apk")

	require.NoError(t, run(t, "--signer-dir", signer, "signapk", "-w", "platform.x509.pem", keyFile, input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "apk-SIGNED", string(got))

	args, err := os.ReadFile(filepath.Join(signer, "args.log"))
	require.NoError(t, err)
	assert.Equal(t, "-vv -ts -c Platform Cert -ota "+output+"\n", string(args))
}

func TestSignAPKExitCodes(t *testing.T) {
	t.Setenv(signfile.EnvDir, "")
	work := t.TempDir()
	keyFile := writeFile(t, work, "cert.txt", "Cert\n")
	binKey := writeFile(t, work, "bin.key", "\x01\x02\x03")
	input := writeFile(t, work, "in.apk", "apk")
	out := filepath.Join(work, "out.apk")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"too few arguments", []string{"signapk", "c.pem", keyFile, input}, ExitUsage},
		{"odd arguments", []string{"signapk", "c.pem", keyFile, "x", input, out}, ExitUsage},
		{"two keys", []string{"signapk", "a.pem", keyFile, "b.pem", keyFile, input, out}, ExitUsage},
		{"missing key file", []string{"signapk", "c.pem", filepath.Join(work, "nope"), input, out}, ExitKeyNotFound},
		{"unreadable key file", []string{"signapk", "c.pem", binKey, input, out}, ExitKeyUnreadable},
		{"missing input", []string{"signapk", "c.pem", keyFile, filepath.Join(work, "missing.apk"), out}, ExitInputNotFound},
		{"signer not configured", []string{"signapk", "c.pem", keyFile, input, filepath.Join(work, "copied.apk")}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(t, run(t, tt.args...)))
		})
	}
	assert.NoFileExists(t, out)
}

func TestSignAPKSignerFailure(t *testing.T) {
	signer := fakeSigner(t, 7)
	work := t.TempDir()
	keyFile := writeFile(t, work, "cert.txt", "Cert\n")
	input := writeFile(t, work, "in.apk", "apk")

	err := run(t, "--signer-dir", signer, "signapk", "c.pem", keyFile, input, filepath.Join(work, "out.apk"))
	assert.Equal(t, ExitFailure, exitCode(t, err))
	assert.Contains(t, err.Error(), "exit status 7")
}

func TestSign(t *testing.T) {
	signer := fakeSigner(t, 0)
	work := t.TempDir()
	base := filepath.Join(work, "release")
	require.NoError(t, run(t, "makepk8", base, "RSA", "-c", "Release"))
	input := writeFile(t, work, "boot.img", "kernel")

	require.NoError(t, run(t, "--signer-dir", signer, "sign", "--key", base+".pk8", input))

	sig, err := os.ReadFile(input + ".sig")
	require.NoError(t, err)
	assert.Len(t, sig, 128)

	args, err := os.ReadFile(filepath.Join(signer, "args.log"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-s h -ha SHA256 -rsa_padding PKCS1 -out")
}

func TestSignFromEnvironment(t *testing.T) {
	signer := fakeSigner(t, 0)
	t.Setenv(signfile.EnvDir, signer)
	t.Setenv("ECSS_HASH", "sha1")
	work := t.TempDir()
	keyFile := writeFile(t, work, "cert.txt", "Release\n")
	input := writeFile(t, work, "vbmeta.img", "meta")
	sigPath := filepath.Join(work, "vbmeta.sig")

	require.NoError(t, run(t, "sign", "--key", keyFile, "--signature", sigPath, "--padding", "pss", input))
	assert.FileExists(t, sigPath)

	args, err := os.ReadFile(filepath.Join(signer, "args.log"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-ha SHA1 -rsa_padding PSS")
}

func TestSignErrors(t *testing.T) {
	t.Setenv(signfile.EnvDir, "")
	work := t.TempDir()
	keyFile := writeFile(t, work, "cert.txt", "Release\n")
	input := writeFile(t, work, "in.bin", "x")

	assert.Equal(t, ExitUsage, exitCode(t, run(t, "sign", "--key", keyFile)))
	assert.Equal(t, ExitUsage, exitCode(t, run(t, "sign", "--key", keyFile, "--hash", "md5", input)))
	assert.Equal(t, ExitKeyNotFound, exitCode(t, run(t, "sign", "--key", filepath.Join(work, "nope"), input)))
	assert.Equal(t, ExitInputNotFound, exitCode(t, run(t, "sign", "--key", keyFile, filepath.Join(work, "nope"))))
	assert.Equal(t, ExitFailure, exitCode(t, run(t, "sign", "--key", keyFile, input)))
}
