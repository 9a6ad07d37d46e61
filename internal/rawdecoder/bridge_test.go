package rawdecoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	out  string
	code int
	err  error
}

func (p *fakeProcess) Output() io.Reader { return strings.NewReader(p.out) }
func (p *fakeProcess) Wait() (int, error) { return p.code, p.err }

type fakeRunner struct {
	proc     *fakeProcess
	startErr error
	args     []string
}

func (r *fakeRunner) Start(_ context.Context, args []string) (Process, error) {
	r.args = args
	if r.startErr != nil {
		return nil, r.startErr
	}
	return r.proc, nil
}

func TestPlatform(t *testing.T) {
	assert.Equal(t, Windows, PlatformFor("windows"))
	assert.Equal(t, Windows, PlatformFor("Windows 10"))
	assert.Equal(t, Posix, PlatformFor("linux"))
	assert.Equal(t, Posix, PlatformFor("darwin"))
	assert.Equal(t, "dcraw.exe", Windows.Executable())
	assert.Equal(t, "dcraw", Posix.Executable())
}

func TestThumbPath(t *testing.T) {
	assert.Equal(t, "shots/IMG_1.thumb.jpg", ThumbPath("shots/IMG_1.CR2"))
	assert.Equal(t, "a.b/c.thumb.jpg", ThumbPath("a.b/c.nef"))
	assert.Equal(t, "noext.thumb.jpg", ThumbPath("noext"))
}

func TestBridge_Command(t *testing.T) {
	dir := t.TempDir()
	b := New(&fakeRunner{}, dir)

	args := b.Command("in.cr2", Windows)
	assert.Equal(t, []string{filepath.Join(dir, "dcraw.exe"), "-e", "in.cr2"}, args)

	args = b.Command("in.cr2", Posix)
	assert.Equal(t, filepath.Join(dir, "dcraw"), args[0])

	wd, err := os.Getwd()
	require.NoError(t, err)
	args = New(&fakeRunner{}, "").Command("in.cr2", Posix)
	assert.Equal(t, filepath.Join(wd, "dcraw"), args[0])
}

func TestBridge_Success(t *testing.T) {
	runner := &fakeRunner{proc: &fakeProcess{out: "a\na\nb\nb\nb\na\n\n\nc"}}
	b := New(runner, "/opt/dcraw")

	var seen []string
	b.OnLine = func(line string) { seen = append(seen, line) }

	res, err := b.Decode(context.Background(), "photos/x.nef", Posix)
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"a", "b", "a", "", "c"}, res.Lines)
	assert.Equal(t, res.Lines, seen)
	assert.Equal(t, "photos/x.thumb.jpg", res.OutputPath)
	assert.Equal(t, []string{"/opt/dcraw/dcraw", "-e", "photos/x.nef"}, runner.args)
}

func TestBridge_Failed(t *testing.T) {
	runner := &fakeRunner{proc: &fakeProcess{out: "x.nef: Cannot decode file\n", code: 1}}
	b := New(runner, "/opt/dcraw")

	res, err := b.Decode(context.Background(), "x.nef", Posix)
	assert.ErrorIs(t, err, ErrExternalToolFailed)
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "x.nef: Cannot decode file\n", res.Output())
	assert.Equal(t, []string{"/opt/dcraw/dcraw", "-e", "x.nef"}, res.Args)
	assert.Empty(t, res.OutputPath)
}

func TestBridge_WaitError(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	runner := &fakeRunner{proc: &fakeProcess{out: "partial header\n", err: errors.New("wait: broken")}}

	res, err := New(runner, "/opt/dcraw").Decode(context.Background(), "x.nef", Posix)
	assert.ErrorIs(t, err, ErrExternalToolFailed)
	assert.Equal(t, Failed, res.Status)
	assert.Contains(t, logs.String(), "/opt/dcraw/dcraw")
	assert.Contains(t, logs.String(), "partial header")
}

func TestBridge_SpawnError(t *testing.T) {
	runner := &fakeRunner{startErr: os.ErrNotExist}

	res, err := New(runner, "").Decode(context.Background(), "x.nef", Posix)
	assert.ErrorIs(t, err, ErrExternalToolMissing)
	require.NotNil(t, res)
	assert.Equal(t, SpawnError, res.Status)
	assert.Empty(t, res.Lines)
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	b := New(ExecRunner{}, t.TempDir())

	res, err := b.Decode(context.Background(), "x.nef", PlatformFor(runtime.GOOS))
	assert.ErrorIs(t, err, ErrExternalToolMissing)
	assert.Equal(t, SpawnError, res.Status)
}

func writeScript(t *testing.T, dir, body string) {
	t.Helper()
	path := filepath.Join(dir, "dcraw")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

func TestExecRunner_MergedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script decoder stub needs a POSIX shell")
	}
	dir := t.TempDir()
	writeScript(t, dir, `echo "Loading $2"
echo "Loading $2"
echo "warning: odd header" 1>&2
echo "Loading $2"
exit 0
`)

	res, err := New(ExecRunner{}, dir).Decode(context.Background(), "cam.cr2", Posix)
	require.NoError(t, err)
	assert.Equal(t, Success, res.Status)
	assert.Equal(t, []string{"Loading cam.cr2", "warning: odd header", "Loading cam.cr2"}, res.Lines)
	assert.Equal(t, "cam.thumb.jpg", res.OutputPath)
}

func TestExecRunner_NonzeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script decoder stub needs a POSIX shell")
	}
	dir := t.TempDir()
	writeScript(t, dir, "echo \"$2: not a raw photo\" 1>&2\nexit 3\n")

	res, err := New(ExecRunner{}, dir).Decode(context.Background(), "doc.txt", Posix)
	assert.ErrorIs(t, err, ErrExternalToolFailed)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []string{"doc.txt: not a raw photo"}, res.Lines)
}
