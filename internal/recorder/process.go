package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ExitStatus describes how a capture process ended.
type ExitStatus struct {
	Code     int   // -1 when the process did not exit normally
	Signaled bool  // terminated by a signal
	Err      error // wait failure other than a non-zero exit
}

// Process is a running capture process. Stderr must be drained before Wait.
type Process interface {
	Pid() int
	Stderr() io.Reader
	Signal(sig os.Signal) error
	Kill() error
	Wait() ExitStatus
}

// Launcher starts capture processes.
type Launcher interface {
	Launch(tool string, args []string) (Process, error)
}

// ExecLauncher launches real processes with os/exec.
type ExecLauncher struct{}

func (ExecLauncher) Launch(tool string, args []string) (Process, error) {
	cmd := exec.Command(tool, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", tool, err)
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

func (p *execProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Stderr() io.Reader          { return p.stderr }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }

func (p *execProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	ps := p.cmd.ProcessState
	if ps == nil {
		return ExitStatus{Code: -1, Err: err}
	}
	st := ExitStatus{Code: ps.ExitCode(), Signaled: !ps.Exited()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		st.Err = err
	}
	return st
}
