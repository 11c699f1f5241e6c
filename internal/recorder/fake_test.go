package recorder

import (
	"errors"
	"io"
	"os"
	"sync"
)

type fakeProcess struct {
	pid    int
	stderr *io.PipeReader
	w      *io.PipeWriter
	exitCh chan ExitStatus

	ignoreSignal bool
	ignoreKill   bool

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
	once    sync.Once
}

func newFakeProcess(pid int) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{pid: pid, stderr: r, w: w, exitCh: make(chan ExitStatus, 1)}
}

func (p *fakeProcess) Pid() int          { return p.pid }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if !p.ignoreSignal {
		p.exit(ExitStatus{Code: -1, Signaled: true})
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	if !p.ignoreKill {
		p.exit(ExitStatus{Code: -1, Signaled: true})
	}
	return nil
}

func (p *fakeProcess) Wait() ExitStatus { return <-p.exitCh }

// emit writes raw bytes to the fake stderr.
func (p *fakeProcess) emit(s string) {
	_, _ = p.w.Write([]byte(s))
}

// exit ends the process once: stderr hits EOF and Wait returns es.
func (p *fakeProcess) exit(es ExitStatus) {
	p.once.Do(func() {
		_ = p.w.Close()
		p.exitCh <- es
	})
}

func (p *fakeProcess) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

func (p *fakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type launchCall struct {
	tool string
	args []string
}

type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	calls []launchCall
	err   error

	// next, when set, shapes the next launched process.
	next func(p *fakeProcess)
}

var errNoSuchTool = errors.New("exec: \"arecord\": executable file not found in $PATH")

func (l *fakeLauncher) Launch(tool string, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, launchCall{tool: tool, args: append([]string(nil), args...)})
	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(1000 + len(l.procs))
	if l.next != nil {
		l.next(p)
		l.next = nil
	}
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *fakeLauncher) lastCall() launchCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[len(l.calls)-1]
}
