package rawdecoder

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Runner starts external processes.
type Runner interface {
	Start(ctx context.Context, args []string) (Process, error)
}

// Process is a started process whose stdout and stderr share one stream.
type Process interface {
	// Output is the merged output stream. It reaches EOF once the process
	// and any children holding the pipe have exited.
	Output() io.Reader
	// Wait blocks until exit. err is non-nil only when the exit status could
	// not be determined.
	Wait() (exitCode int, err error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

func (ExecRunner) Start(ctx context.Context, args []string) (Process, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	// The child holds its own copy; ours must go so the reader sees EOF.
	pw.Close()

	return &execProcess{cmd: cmd, out: pr}, nil
}

type execProcess struct {
	cmd *exec.Cmd
	out *os.File
}

func (p *execProcess) Output() io.Reader { return p.out }

func (p *execProcess) Wait() (int, error) {
	defer p.out.Close()

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, err
	}
}
