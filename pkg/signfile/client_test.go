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

package signfile

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/sigblock"
	"github.com/sigstore/signfile-bridge/pkg/signerr"
)

type call struct {
	dir  string
	argv []string
}

// recordingRunner records spawn attempts and replays a canned outcome.
type recordingRunner struct {
	mu     sync.Mutex
	calls  []call
	output []byte
	code   int
	err    error
	// respond, if set, runs before returning so tests can emulate SignFile
	// writing its response file.
	respond func(argv []string) error
}

func (r *recordingRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{dir: dir, argv: append([]string(nil), argv...)})
	r.mu.Unlock()
	if r.respond != nil {
		if err := r.respond(argv); err != nil {
			return nil, -1, err
		}
	}
	return r.output, r.code, r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// signerDir creates a directory holding an executable named SignFile.
func signerDir(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultBinary), []byte(script), 0o755))
	return dir
}

func newTestClient(t *testing.T, dir string, r Runner) (*Client, *TempFiles) {
	t.Helper()
	temps := &TempFiles{}
	t.Cleanup(func() { _ = temps.RemoveAll() })
	c := NewClient(Config{Dir: dir}, WithRunner(r), WithTempFiles(temps),
		WithTempDir(t.TempDir()), WithLogger(logging.NewLoggerWithOptions(logging.LoggerOptions{Level: logging.LevelSilent})))
	return c, temps
}

func argAfter(argv []string, flag string) string {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == flag {
			return argv[i+1]
		}
	}
	return ""
}

func TestConfigValidate(t *testing.T) {
	exeDir := signerDir(t, "#!/bin/sh\nexit 0\n")

	plainDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(plainDir, DefaultBinary), []byte("x"), 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{Dir: exeDir}},
		{name: "unset", cfg: Config{}, wantErr: true},
		{name: "missing dir", cfg: Config{Dir: filepath.Join(exeDir, "nope")}, wantErr: true},
		{name: "missing tool", cfg: Config{Dir: t.TempDir()}, wantErr: true},
		{name: "not executable", cfg: Config{Dir: plainDir}, wantErr: true},
		{name: "custom binary missing", cfg: Config{Dir: exeDir, Binary: "Other"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, signerr.ErrMisconfiguredEnvironment)
		})
	}
}

func TestConfigValidateNamesVariable(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvDir)
}

func TestMisconfiguredEnvironmentSpawnsNothing(t *testing.T) {
	plainDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(plainDir, DefaultBinary), []byte("x"), 0o644))

	for _, dir := range []string{"", plainDir} {
		r := &recordingRunner{}
		c, _ := newTestClient(t, dir, r)

		_, err := c.SignDigest(context.Background(), []byte{1, 2, 3}, crypto.SHA256, PaddingPKCS1,
			sigblock.FormatBinary, mustRef(t, "-c", "cert"))
		assert.ErrorIs(t, err, signerr.ErrMisconfiguredEnvironment)
		assert.Zero(t, r.count(), "no process may be spawned")
	}
}

func TestSignDigestSuccess(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	digest := bytes.Repeat([]byte{0xAB}, 32)

	r := &recordingRunner{output: []byte("Signing OK\n")}
	r.respond = func(argv []string) error {
		got, err := os.ReadFile(argv[1])
		if err != nil {
			return err
		}
		if !bytes.Equal(got, digest) {
			return errors.New("digest file content mismatch")
		}
		return os.WriteFile(argAfter(argv, "-out"), []byte("response"), 0o600)
	}
	c, temps := newTestClient(t, dir, r)

	path, err := c.SignDigest(context.Background(), digest, crypto.SHA256, PaddingPKCS1,
		sigblock.FormatBinary, mustRef(t, "-c", "cert"))
	require.NoError(t, err)

	require.Equal(t, 1, r.count())
	assert.Equal(t, dir, r.calls[0].dir)
	assert.Equal(t, filepath.Join(dir, DefaultBinary), r.calls[0].argv[0])
	assert.Equal(t, []string{"-c", "cert"}, r.calls[0].argv[len(r.calls[0].argv)-2:])

	resp, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "response", string(resp))
	assert.Equal(t, []string{path}, temps.Paths(), "only the response file outlives the call")
	assert.NoFileExists(t, r.calls[0].argv[1])

	require.NoError(t, c.RemoveTemp(path))
	assert.NoFileExists(t, path)
	assert.Empty(t, temps.Paths())
}

func TestSignContentUsesContainerFlag(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	r := &recordingRunner{}
	c, temps := newTestClient(t, dir, r)

	path, err := c.SignContent(context.Background(), "/data/payload.bin", crypto.SHA256,
		sigblock.FormatContainer, mustRef(t, "-c", "cert"))
	require.NoError(t, err)

	argv := r.calls[0].argv
	assert.Equal(t, path, argAfter(argv, "-cf"))
	assert.Equal(t, "/data/payload.bin", argv[len(argv)-1])
	assert.Len(t, temps.Paths(), 1)
}

func TestExitCodeSevenIsProcessFailure(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	r := &recordingRunner{code: 7, output: []byte("ERROR: certificate not found on server\n")}
	c, temps := newTestClient(t, dir, r)

	_, err := c.SignDigest(context.Background(), []byte{1}, crypto.SHA256, PaddingPKCS1,
		sigblock.FormatBinary, mustRef(t, "-c", "cert"))
	require.ErrorIs(t, err, signerr.ErrSignerProcessFailed)
	assert.Empty(t, temps.Paths(), "temp files of a failed call are removed")

	var se *signerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7, se.ExitCode)
	assert.Equal(t, "ERROR: certificate not found on server\n", se.Output)
	assert.Contains(t, err.Error(), "certificate not found on server")
}

func TestRunnerErrorIsUnavailable(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	r := &recordingRunner{err: errors.New("fork/exec: resource temporarily unavailable")}
	c, _ := newTestClient(t, dir, r)

	err := c.SignWholeFile(context.Background(), "app.apk", mustRef(t, "-c", "cert"), false)
	assert.ErrorIs(t, err, signerr.ErrSignerProcessUnavailable)
}

func TestCancellationDuringWait(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	ctx, cancel := context.WithCancel(context.Background())
	r := &recordingRunner{}
	r.respond = func([]string) error {
		cancel()
		return context.Canceled
	}
	c, _ := newTestClient(t, dir, r)

	_, err := c.Invoke(ctx, Request{Mode: ModeWholeFile, OutputPath: "x.apk", Reference: mustRef(t, "-c", "cert")})
	assert.ErrorIs(t, err, signerr.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, signerr.ErrSignerProcessFailed))
}

func TestInvokeResult(t *testing.T) {
	dir := signerDir(t, "#!/bin/sh\nexit 0\n")
	r := &recordingRunner{output: []byte("done")}
	c, _ := newTestClient(t, dir, r)

	res, err := c.Invoke(context.Background(), Request{Mode: ModeWholeFile, OutputPath: "x.apk",
		Reference: mustRef(t, "-c", "cert"), EmbedWholeFileDigest: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Empty(t, res.ResponsePath)
	assert.Equal(t, []byte("done"), res.Output)
	assert.Contains(t, res.Args, "-ota")
}

func TestTempFilesRemove(t *testing.T) {
	temps := &TempFiles{}
	dir := t.TempDir()
	f1, err := temps.Create(dir, "a-*")
	require.NoError(t, err)
	f1.Close()
	f2, err := temps.Create(dir, "b-*")
	require.NoError(t, err)
	f2.Close()

	require.NoError(t, temps.Remove(f1.Name(), filepath.Join(dir, "never-created")))
	assert.NoFileExists(t, f1.Name())
	assert.FileExists(t, f2.Name())
	assert.Equal(t, []string{f2.Name()}, temps.Paths())
}

func TestTempFilesRemoveAll(t *testing.T) {
	temps := &TempFiles{}
	dir := t.TempDir()
	f1, err := temps.Create(dir, "a-*")
	require.NoError(t, err)
	require.NoError(t, f1.Close())
	f2, err := temps.Create(dir, "b-*")
	require.NoError(t, err)
	require.NoError(t, f2.Close())
	require.NoError(t, os.Remove(f2.Name()))

	require.NoError(t, temps.RemoveAll())
	assert.NoFileExists(t, f1.Name())
	assert.Empty(t, temps.Paths())
}

func TestExecRunnerWithScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	script := `#!/bin/sh
echo "args: $*"
echo "warning on stderr" >&2
touch ran-here
while [ $# -gt 0 ]; do
  if [ "$1" = "-out" ]; then
    shift
    printf 'RESP' > "$1"
  fi
  shift
done
exit 0
`
	dir := signerDir(t, script)
	temps := &TempFiles{}
	t.Cleanup(func() { _ = temps.RemoveAll() })
	c := NewClient(Config{Dir: dir}, WithTempFiles(temps), WithTempDir(t.TempDir()),
		WithLogger(logging.NewLoggerWithOptions(logging.LoggerOptions{Level: logging.LevelSilent})))

	path, err := c.SignDigest(context.Background(), []byte{1, 2}, crypto.SHA1, PaddingPKCS1,
		sigblock.FormatBinary, mustRef(t, "-c", "cert"))
	require.NoError(t, err)

	resp, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RESP", string(resp))
	assert.FileExists(t, filepath.Join(dir, "ran-here"), "tool runs in the signer directory")
}

func TestExecRunnerMergesOutputOnFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := signerDir(t, "#!/bin/sh\necho 'stdout line'\necho 'stderr line' >&2\nexit 7\n")

	out, code, err := ExecRunner{}.Run(context.Background(), dir, []string{filepath.Join(dir, DefaultBinary)})
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.Contains(t, string(out), "stdout line")
	assert.Contains(t, string(out), "stderr line")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), t.TempDir(), []string{"/definitely/not/here"})
	assert.Error(t, err)

	_, _, err = ExecRunner{}.Run(context.Background(), "", nil)
	assert.Error(t, err)
}
