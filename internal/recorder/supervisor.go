package recorder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

const (
	// DefaultStopTimeout bounds each escalation step after a stop request.
	DefaultStopTimeout = 10 * time.Second
	// DefaultDiagnosticLimit caps the diagnostic text kept per session.
	DefaultDiagnosticLimit = 64 * 1024

	opQueueSize     = 256
	changeQueueSize = 64
	maxLineBytes    = 64 * 1024
)

var errStopped = domain.New(domain.KindInternal, "recorder", "supervisor is not running")

// Options configures a Supervisor.
type Options struct {
	Tool            string        // capture binary, ex: "arecord"
	OutputDir       string        // where recordings are written
	StatusPrefix    string        // stderr lines with this prefix replace the status line
	DiagnosticLimit int           // bytes of diagnostic text kept
	StopTimeout     time.Duration // wait before kill, then before abandoning
	OnChange        func(Status)  // called in order for every state transition
	Now             func() time.Time
}

// Supervisor owns the single recording session. All reads and mutations,
// including process output and exit notifications, run on one goroutine.
type Supervisor struct {
	opts     Options
	launcher Launcher
	log      logger.Logger

	ops       chan func()
	changes   chan Status
	quit      chan struct{}
	stopped   chan struct{}
	notified  chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	sess    session
	gen     uint64
	waiters []chan struct{}
}

type session struct {
	state      State
	gen        uint64
	proc       Process
	config     CaptureConfig
	file       string
	startedAt  time.Time
	exitCode   *int
	statusLine string
	diag       *diagnostics
	killed     bool
	stopTimer  *time.Timer
}

// New creates a Supervisor and starts its owner goroutine. Call Shutdown to
// release it.
func New(opts Options, launcher Launcher, log logger.Logger) *Supervisor {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.DiagnosticLimit <= 0 {
		opts.DiagnosticLimit = DefaultDiagnosticLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Supervisor{
		opts:     opts,
		launcher: launcher,
		log:      log,
		ops:      make(chan func(), opQueueSize),
		changes:  make(chan Status, changeQueueSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		notified: make(chan struct{}),
	}
	go s.loop()
	go s.notify()
	return s
}

// StartRecording launches the capture process. It returns once the session
// is Recording, or with an error and the session unchanged (AlreadyRecording)
// or Crashed (launch failure).
func (s *Supervisor) StartRecording(ctx context.Context, cfg CaptureConfig) (Status, error) {
	var (
		st  Status
		err error
	)
	if e := s.do(ctx, func() { st, err = s.start(cfg) }); e != nil {
		return Status{}, e
	}
	return st, err
}

// StopRecording signals the capture process. The session stays Stopping
// until the process exit is observed.
func (s *Supervisor) StopRecording(ctx context.Context) (Status, error) {
	var (
		st  Status
		err error
	)
	if e := s.do(ctx, func() { st, err = s.stop() }); e != nil {
		return Status{}, e
	}
	return st, err
}

// Status returns a snapshot of the session.
func (s *Supervisor) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := s.do(ctx, func() { st = s.status() }); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Shutdown stops an active capture, waits for the process to exit (killing
// it when ctx expires) and stops the owner goroutine.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var wait chan struct{}
	err := s.do(ctx, func() {
		if !s.sess.state.Active() || s.sess.proc == nil {
			return
		}
		if s.sess.state == StateRecording {
			s.log.Info("stopping capture for shutdown",
				logger.Uint64("generation", s.sess.gen))
			s.signalStop()
		}
		wait = make(chan struct{})
		s.waiters = append(s.waiters, wait)
	})

	if err == nil && wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			s.log.Warn("capture did not stop before shutdown deadline, killing it")
			_ = s.do(context.Background(), func() {
				if s.sess.proc != nil {
					s.sess.killed = true
					_ = s.sess.proc.Kill()
				}
			})
			err = ctx.Err()
		}
	}

	s.closeOnce.Do(func() { close(s.quit) })
	<-s.stopped
	<-s.notified
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

func (s *Supervisor) loop() {
	defer close(s.stopped)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			return
		}
	}
}

// notify delivers changes in order. Once the loop has stopped nothing new
// is queued, so draining what is left delivers the final snapshot.
func (s *Supervisor) notify() {
	defer close(s.notified)
	for {
		select {
		case st := <-s.changes:
			s.deliver(st)
		case <-s.stopped:
			for {
				select {
				case st := <-s.changes:
					s.deliver(st)
				default:
					return
				}
			}
		}
	}
}

func (s *Supervisor) deliver(st Status) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(st)
	}
}

// do runs fn on the owner goroutine and waits for it.
func (s *Supervisor) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		fn()
		close(done)
	}
	select {
	case s.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return errStopped
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return errStopped
		}
	}
}

// post queues fn from a process watcher or timer. Dropped once stopped.
func (s *Supervisor) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.stopped:
	}
}

func (s *Supervisor) start(cfg CaptureConfig) (Status, error) {
	if s.sess.state.Active() {
		s.log.Warn("start rejected, capture already active",
			logger.String("state", s.sess.state.String()),
			logger.Uint64("generation", s.sess.gen))
		return s.status(), domain.WithOp(domain.ErrAlreadyRecording, "recorder.start")
	}

	s.gen++
	now := s.opts.Now()
	s.sess = session{
		state:     StateIdle,
		gen:       s.gen,
		config:    cfg,
		startedAt: now,
		diag:      newDiagnostics(s.opts.DiagnosticLimit),
	}
	s.setState(StateStarting)

	file, err := uniqueOutputPath(s.opts.OutputDir, now)
	if err != nil {
		s.sess.diag.Append("cannot choose output file: " + err.Error())
		s.setState(StateCrashed)
		return s.status(), domain.Wrap(domain.KindIO, "recorder.start", err, "cannot choose output file")
	}
	s.sess.file = file

	args := BuildArgs(cfg, file)
	s.log.Info("launching capture process",
		logger.String("tool", s.opts.Tool),
		logger.Strings("args", args),
		logger.Uint64("generation", s.gen))

	proc, err := s.launcher.Launch(s.opts.Tool, args)
	if err != nil {
		s.sess.diag.Append(err.Error())
		s.setState(StateCrashed)
		return s.status(), domain.Wrap(domain.KindProcess, "recorder.start", err, "failed to launch capture process")
	}
	s.sess.proc = proc
	s.log.Info("capture process started",
		logger.Int("pid", proc.Pid()),
		logger.Uint64("generation", s.gen))
	s.setState(StateRecording)

	go s.watch(s.gen, proc)
	return s.status(), nil
}

func (s *Supervisor) stop() (Status, error) {
	switch s.sess.state {
	case StateRecording:
	case StateStopping:
		return s.status(), domain.WithOp(domain.ErrStopInProgress, "recorder.stop")
	default:
		return s.status(), domain.WithOp(domain.ErrNotRecording, "recorder.stop")
	}
	s.signalStop()
	return s.status(), nil
}

// signalStop sends the stop signal, moves to Stopping and arms escalation.
func (s *Supervisor) signalStop() {
	if err := s.sess.proc.Signal(os.Interrupt); err != nil {
		// Most likely already exiting; the exit event settles the state.
		s.log.Warn("failed to signal capture process", logger.Error(err))
	}
	s.setState(StateStopping)
	s.armEscalation(s.sess.gen)
}

func (s *Supervisor) armEscalation(gen uint64) {
	if s.sess.stopTimer != nil {
		s.sess.stopTimer.Stop()
	}
	s.sess.stopTimer = time.AfterFunc(s.opts.StopTimeout, func() {
		s.post(func() { s.escalate(gen) })
	})
}

// escalate kills a process that ignored the stop signal and, if even that
// does not produce an exit, abandons it so a new session can start.
func (s *Supervisor) escalate(gen uint64) {
	if gen != s.gen || s.sess.state != StateStopping || s.sess.proc == nil {
		return
	}
	if !s.sess.killed {
		s.log.Warn("capture process ignored stop signal, killing it",
			logger.Duration("waited", s.opts.StopTimeout),
			logger.Uint64("generation", gen))
		s.sess.killed = true
		s.sess.diag.Append("capture process did not stop in time, killed")
		if err := s.sess.proc.Kill(); err != nil {
			s.log.Warn("failed to kill capture process", logger.Error(err))
		}
		s.armEscalation(gen)
		return
	}

	s.log.Error("capture process did not exit after kill, abandoning it",
		logger.Uint64("generation", gen))
	s.sess.diag.Append("capture process did not exit after kill, abandoned")
	s.sess.proc = nil
	s.sess.stopTimer = nil
	s.setState(StateCrashed)
	s.releaseWaiters()
}

func (s *Supervisor) handleLine(gen uint64, line string) {
	if gen != s.gen || s.sess.proc == nil {
		return
	}
	if isStatusLine(line, s.opts.StatusPrefix) {
		s.sess.statusLine = line
		return
	}
	s.sess.diag.Append(line)
}

func (s *Supervisor) handleExit(gen uint64, es ExitStatus) {
	if gen != s.gen || s.sess.proc == nil {
		s.log.Debug("ignoring stale capture exit",
			logger.Uint64("generation", gen),
			logger.Uint64("current", s.gen),
			logger.Int("code", es.Code))
		return
	}
	if s.sess.stopTimer != nil {
		s.sess.stopTimer.Stop()
		s.sess.stopTimer = nil
	}

	code := es.Code
	if es.Signaled && s.sess.state == StateStopping && !s.sess.killed {
		// Terminated by our own stop signal.
		code = 0
	}
	s.sess.exitCode = &code
	s.sess.proc = nil

	if es.Err != nil {
		s.sess.diag.Append("wait failed: " + es.Err.Error())
	}

	if code == 0 && es.Err == nil {
		s.log.Info("capture process exited",
			logger.Uint64("generation", gen),
			logger.String("file", s.sess.file))
		s.setState(StateIdle)
	} else {
		s.log.Warn("capture process crashed",
			logger.Uint64("generation", gen),
			logger.Int("code", code),
			logger.Bool("signaled", es.Signaled))
		s.sess.diag.Append("capture process exited with code " + strconv.Itoa(code))
		s.setState(StateCrashed)
	}
	s.releaseWaiters()
}

func (s *Supervisor) releaseWaiters() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

func (s *Supervisor) setState(next State) {
	prev := s.sess.state
	s.sess.state = next
	s.log.Info("capture state changed",
		logger.String("from", prev.String()),
		logger.String("to", next.String()),
		logger.Uint64("generation", s.sess.gen))

	select {
	case s.changes <- s.status():
	default:
		s.log.Error("status change queue full, dropping notification",
			logger.String("state", next.String()),
			logger.Uint64("generation", s.sess.gen))
	}
}

func (s *Supervisor) status() Status {
	st := Status{
		IsRecording:    s.sess.state.Active(),
		State:          s.sess.state,
		StatusLine:     s.sess.statusLine,
		DiagnosticText: s.sess.diag.String(),
		Generation:     s.sess.gen,
	}
	if s.sess.exitCode != nil {
		code := *s.sess.exitCode
		st.ExitCode = &code
	}
	if s.sess.gen > 0 {
		startedAt := s.sess.startedAt
		cfg := s.sess.config
		st.StartedAt = &startedAt
		st.Config = &cfg
		if s.sess.file != "" {
			st.File = filepath.Base(s.sess.file)
		}
	}
	return st
}

// watch forwards the process's stderr and exit to the owner goroutine.
func (s *Supervisor) watch(gen uint64, proc Process) {
	if stderr := proc.Stderr(); stderr != nil {
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 4096), maxLineBytes)
		sc.Split(ScanLines)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			s.post(func() { s.handleLine(gen, line) })
		}
		if err := sc.Err(); err != nil {
			s.log.Warn("capture output unreadable, discarding the rest", logger.Error(err))
			// Keep the pipe drained so the tool never blocks on a full buffer.
			_, _ = io.Copy(io.Discard, stderr)
		}
	}

	es := proc.Wait()
	s.post(func() { s.handleExit(gen, es) })
}
