// Package rawdecoder runs dcraw for input formats the built-in codecs cannot
// read and relays its output.
package rawdecoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
)

var (
	// ErrExternalToolMissing is returned when the decoder could not be started.
	ErrExternalToolMissing = errors.New("raw decoder not found or not executable")
	// ErrExternalToolFailed is returned when the decoder exits nonzero.
	ErrExternalToolFailed = errors.New("raw decoder failed")
)

// ThumbSuffix replaces the input extension in the file dcraw -e writes.
const ThumbSuffix = ".thumb.jpg"

// Platform selects the executable name.
type Platform int

const (
	Posix Platform = iota
	Windows
)

// PlatformFor maps a GOOS value to a Platform.
func PlatformFor(goos string) Platform {
	if strings.HasPrefix(strings.ToLower(goos), "windows") {
		return Windows
	}
	return Posix
}

func (p Platform) String() string {
	if p == Windows {
		return "windows"
	}
	return "posix"
}

// Executable returns the decoder file name for p.
func (p Platform) Executable() string {
	if p == Windows {
		return "dcraw.exe"
	}
	return "dcraw"
}

// Status is the terminal state of one decoder run.
type Status int

const (
	NotStarted Status = iota
	Success
	Failed
	SpawnError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case SpawnError:
		return "spawn_error"
	}
	return "not_started"
}

// Result describes a finished (or unstartable) decoder run.
type Result struct {
	Status   Status
	Args     []string
	ExitCode int
	// Lines is the merged stdout/stderr with consecutive duplicates removed.
	Lines []string
	// OutputPath is where dcraw writes its thumbnail by convention. It is not
	// checked for existence.
	OutputPath string
}

// Output joins Lines for diagnostics.
func (r *Result) Output() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return strings.Join(r.Lines, "\n") + "\n"
}

// Bridge invokes the external decoder through a Runner.
type Bridge struct {
	runner Runner
	dir    string
	// OnLine, if set, receives each deduplicated output line as it is read.
	OnLine func(line string)
}

// New creates a Bridge that looks for the decoder in dir. An empty dir means
// the current working directory.
func New(runner Runner, dir string) *Bridge {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Bridge{runner: runner, dir: dir}
}

// Command returns the argument vector used for inputPath on platform.
func (b *Bridge) Command(inputPath string, platform Platform) []string {
	exe := filepath.Join(b.dir, platform.Executable())
	if abs, err := filepath.Abs(exe); err == nil {
		exe = abs
	}
	return []string{exe, "-e", inputPath}
}

// ThumbPath returns inputPath with its extension replaced by ThumbSuffix.
func ThumbPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ThumbSuffix
}

// Decode runs the decoder on inputPath. The returned Result is never nil; a
// non-nil error wraps ErrExternalToolMissing or ErrExternalToolFailed, or
// reports a failure reading the decoder output.
func (b *Bridge) Decode(ctx context.Context, inputPath string, platform Platform) (*Result, error) {
	args := b.Command(inputPath, platform)
	res := &Result{Status: NotStarted, Args: args}

	proc, err := b.runner.Start(ctx, args)
	if err != nil {
		res.Status = SpawnError
		log.Printf("raw decoder: start %s: %v", args[0], err)
		return res, fmt.Errorf("%w: %v", ErrExternalToolMissing, err)
	}

	readErr := b.collect(proc, res)

	code, err := proc.Wait()
	res.ExitCode = code
	if err != nil {
		res.Status = Failed
		log.Printf("raw decoder: %q did not exit cleanly: %v\n%s", args, err, res.Output())
		return res, fmt.Errorf("%w: %v", ErrExternalToolFailed, err)
	}
	if readErr != nil {
		res.Status = Failed
		return res, fmt.Errorf("read raw decoder output: %w", readErr)
	}
	if code != 0 {
		res.Status = Failed
		log.Printf("raw decoder: %q exited with %d\n%s", args, code, res.Output())
		return res, fmt.Errorf("%w: exit status %d", ErrExternalToolFailed, code)
	}

	res.Status = Success
	res.OutputPath = ThumbPath(inputPath)
	return res, nil
}

// collect reads proc's output until EOF, dropping lines equal to the line
// emitted just before them.
func (b *Bridge) collect(proc Process, res *Result) error {
	out := proc.Output()
	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var prev string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if !first && line == prev {
			continue
		}
		first = false
		prev = line
		res.Lines = append(res.Lines, line)
		if b.OnLine != nil {
			b.OnLine(line)
		}
	}
	if err := sc.Err(); err != nil {
		// Keep the pipe flowing so the child can exit.
		_, _ = io.Copy(io.Discard, out)
		return err
	}
	return nil
}
