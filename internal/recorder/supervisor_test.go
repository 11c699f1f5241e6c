package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var testConfig = CaptureConfig{Channels: 2, BitDepth: 24, SampleRate: 44100, BufferSize: 262144, Device: "hw:0,0"}

type changeLog struct {
	mu     sync.Mutex
	states []State
}

func (c *changeLog) record(st Status) {
	c.mu.Lock()
	c.states = append(c.states, st.State)
	c.mu.Unlock()
}

func (c *changeLog) snapshot() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.states...)
}

func newTestSupervisor(t *testing.T, l *fakeLauncher, mutate ...func(*Options)) (*Supervisor, *changeLog) {
	t.Helper()
	s, changes, _ := newObservedSupervisor(t, l, mutate...)
	return s, changes
}

// newObservedSupervisor also returns every log entry down to debug level.
func newObservedSupervisor(t *testing.T, l *fakeLauncher, mutate ...func(*Options)) (*Supervisor, *changeLog, *observer.ObservedLogs) {
	t.Helper()
	changes := &changeLog{}
	opts := Options{
		Tool:         "arecord",
		OutputDir:    t.TempDir(),
		StatusPrefix: "Max peak",
		StopTimeout:  time.Second,
		OnChange:     changes.record,
		Now: func() time.Time {
			return time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(opts, l, logger.FromZap(zap.New(core)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, changes, logs
}

func statusOf(t *testing.T, s *Supervisor) Status {
	t.Helper()
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	return st
}

func eventuallyState(t *testing.T, s *Supervisor, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return statusOf(t, s).State == want
	}, waitFor, tick, "state never became %s", want)
}

func TestInitialStatusIsIdle(t *testing.T) {
	s, _ := newTestSupervisor(t, &fakeLauncher{})
	st := statusOf(t, s)
	assert.Equal(t, StateIdle, st.State)
	assert.False(t, st.IsRecording)
	assert.Nil(t, st.ExitCode)
	assert.Empty(t, st.StatusLine)
	assert.Empty(t, st.DiagnosticText)
}

func TestStartStatusStop(t *testing.T) {
	l := &fakeLauncher{}
	s, changes := newTestSupervisor(t, l)
	ctx := context.Background()

	st, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	assert.Equal(t, StateRecording, st.State)
	assert.True(t, st.IsRecording)
	assert.Equal(t, "2024-03-09_07-05-01.wav", st.File)
	require.NotNil(t, st.Config)
	assert.Equal(t, testConfig, *st.Config)

	call := l.lastCall()
	assert.Equal(t, "arecord", call.tool)
	assert.Equal(t, "hw:0,0", call.args[1])
	assert.Contains(t, call.args, "--buffer-size=262144")
	assert.Contains(t, call.args, "S24_3LE")
	assert.Equal(t, "2024-03-09_07-05-01.wav", filepath.Base(call.args[len(call.args)-1]))

	p := l.proc(0)
	p.emit("Recording WAVE '2024-03-09_07-05-01.wav' : Signed 24 bit Little Endian\n")
	p.emit("Max peak (800 samples): 0x00000012 #   1%\r")
	p.emit("Max peak (800 samples): 0x00007fff ##########  99%\r")

	require.Eventually(t, func() bool {
		return statusOf(t, s).StatusLine == "Max peak (800 samples): 0x00007fff ##########  99%"
	}, waitFor, tick)
	assert.Contains(t, statusOf(t, s).DiagnosticText, "Recording WAVE")
	assert.NotContains(t, statusOf(t, s).DiagnosticText, "Max peak")

	st, err = s.StopRecording(ctx)
	require.NoError(t, err)
	assert.Contains(t, []State{StateStopping, StateIdle}, st.State)
	assert.Equal(t, []os.Signal{os.Interrupt}, p.Signals())

	eventuallyState(t, s, StateIdle)
	st = statusOf(t, s)
	assert.False(t, st.IsRecording)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, 0, *st.ExitCode)

	require.Eventually(t, func() bool {
		return len(changes.snapshot()) >= 4
	}, waitFor, tick)
	assert.Equal(t, []State{StateStarting, StateRecording, StateStopping, StateIdle}, changes.snapshot())
}

func TestStartWhileRecordingLeavesSessionUntouched(t *testing.T) {
	l := &fakeLauncher{}
	s, _ := newTestSupervisor(t, l)
	ctx := context.Background()

	first, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)

	other := testConfig
	other.Device = "hw:1,0"
	st, err := s.StartRecording(ctx, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyRecording)
	assert.Equal(t, domain.KindState, domain.KindOf(err))
	assert.Equal(t, "AlreadyRecording", domain.CodeOf(err))

	assert.Equal(t, first.Generation, st.Generation)
	assert.Equal(t, first.File, st.File)
	assert.Equal(t, "hw:0,0", st.Config.Device)
	assert.Len(t, l.calls, 1)
	assert.Equal(t, StateRecording, statusOf(t, s).State)
}

func TestStopWhenIdle(t *testing.T) {
	s, _ := newTestSupervisor(t, &fakeLauncher{})
	_, err := s.StopRecording(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotRecording)
	assert.Equal(t, StateIdle, statusOf(t, s).State)
}

func TestStopTwiceReportsStopInProgress(t *testing.T) {
	l := &fakeLauncher{next: func(p *fakeProcess) { p.ignoreSignal = true }}
	s, _ := newTestSupervisor(t, l)
	ctx := context.Background()

	_, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	_, err = s.StopRecording(ctx)
	require.NoError(t, err)

	_, err = s.StopRecording(ctx)
	assert.ErrorIs(t, err, domain.ErrStopInProgress)
	assert.Equal(t, StateStopping, statusOf(t, s).State)

	l.proc(0).exit(ExitStatus{Code: 0})
	eventuallyState(t, s, StateIdle)
}

func TestCleanExitGoesIdle(t *testing.T) {
	l := &fakeLauncher{}
	s, _ := newTestSupervisor(t, l)

	_, err := s.StartRecording(context.Background(), testConfig)
	require.NoError(t, err)
	l.proc(0).exit(ExitStatus{Code: 0})

	eventuallyState(t, s, StateIdle)
	st := statusOf(t, s)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, 0, *st.ExitCode)
}

func TestNonZeroExitCrashes(t *testing.T) {
	l := &fakeLauncher{}
	s, _ := newTestSupervisor(t, l)
	ctx := context.Background()

	_, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	p := l.proc(0)
	p.emit("arecord: main:828: audio open error: Device or resource busy\n")
	p.exit(ExitStatus{Code: 1})

	eventuallyState(t, s, StateCrashed)
	st := statusOf(t, s)
	assert.False(t, st.IsRecording)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, 1, *st.ExitCode)
	assert.Contains(t, st.DiagnosticText, "Device or resource busy")
	assert.Contains(t, st.DiagnosticText, "exited with code 1")

	_, err = s.StopRecording(ctx)
	assert.ErrorIs(t, err, domain.ErrNotRecording)

	// Crashed behaves like Idle for a new start.
	st, err = s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	assert.Equal(t, StateRecording, st.State)
	assert.Nil(t, st.ExitCode)
	assert.Empty(t, st.DiagnosticText)
	assert.Equal(t, "2024-03-09_07-05-01.wav", st.File)
}

func TestLaunchFailureCrashes(t *testing.T) {
	l := &fakeLauncher{err: errNoSuchTool}
	s, _ := newTestSupervisor(t, l)

	st, err := s.StartRecording(context.Background(), testConfig)
	require.Error(t, err)
	assert.Equal(t, domain.KindProcess, domain.KindOf(err))
	assert.Equal(t, StateCrashed, st.State)
	assert.Contains(t, st.DiagnosticText, "executable file not found")
}

func TestKillAfterStopTimeout(t *testing.T) {
	l := &fakeLauncher{next: func(p *fakeProcess) { p.ignoreSignal = true }}
	s, _ := newTestSupervisor(t, l, func(o *Options) { o.StopTimeout = 20 * time.Millisecond })
	ctx := context.Background()

	_, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	_, err = s.StopRecording(ctx)
	require.NoError(t, err)

	eventuallyState(t, s, StateCrashed)
	p := l.proc(0)
	assert.True(t, p.Killed())
	st := statusOf(t, s)
	require.NotNil(t, st.ExitCode)
	assert.Equal(t, -1, *st.ExitCode)
	assert.Contains(t, st.DiagnosticText, "killed")
}

func TestAbandonedProcessExitIsIgnored(t *testing.T) {
	l := &fakeLauncher{next: func(p *fakeProcess) {
		p.ignoreSignal = true
		p.ignoreKill = true
	}}
	s, _, logs := newObservedSupervisor(t, l, func(o *Options) { o.StopTimeout = 10 * time.Millisecond })
	ctx := context.Background()

	first, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	_, err = s.StopRecording(ctx)
	require.NoError(t, err)

	eventuallyState(t, s, StateCrashed)
	assert.Contains(t, statusOf(t, s).DiagnosticText, "abandoned")

	second, err := s.StartRecording(ctx, testConfig)
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)

	// The first process finally dies; its output and exit belong to a
	// session that no longer exists.
	old := l.proc(0)
	old.emit("Max peak (800 samples): stale\n")
	old.exit(ExitStatus{Code: 3})

	// The exit is posted after the stale line, so once it has been
	// discarded both have gone through the owner goroutine.
	require.Eventually(t, func() bool {
		return logs.FilterMessage("ignoring stale capture exit").Len() == 1
	}, waitFor, tick, "stale exit never reached the supervisor")
	assert.Empty(t, statusOf(t, s).StatusLine, "stale status line leaked into the new session")

	l.proc(1).emit("Max peak (800 samples): fresh\n")
	require.Eventually(t, func() bool {
		return statusOf(t, s).StatusLine == "Max peak (800 samples): fresh"
	}, waitFor, tick)

	st := statusOf(t, s)
	assert.Equal(t, StateRecording, st.State)
	assert.Equal(t, second.Generation, st.Generation)
	assert.Nil(t, st.ExitCode)
	assert.NotContains(t, st.DiagnosticText, "code 3")
}

func TestShutdownStopsActiveCapture(t *testing.T) {
	l := &fakeLauncher{}
	changes := &changeLog{}
	slowObserver := func(st Status) {
		time.Sleep(20 * time.Millisecond)
		changes.record(st)
	}
	s := New(Options{Tool: "arecord", OutputDir: t.TempDir(), OnChange: slowObserver}, l, logger.Nop())

	_, err := s.StartRecording(context.Background(), testConfig)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, []os.Signal{os.Interrupt}, l.proc(0).Signals())
	// Every change, the final Idle included, reached the observer before
	// Shutdown returned.
	assert.Equal(t, []State{StateStarting, StateRecording, StateStopping, StateIdle}, changes.snapshot())

	_, err = s.Status(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestShutdownKillsOnDeadline(t *testing.T) {
	l := &fakeLauncher{next: func(p *fakeProcess) { p.ignoreSignal = true }}
	s := New(Options{Tool: "arecord", OutputDir: t.TempDir(), StopTimeout: time.Minute}, l, logger.Nop())

	_, err := s.StartRecording(context.Background(), testConfig)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, l.proc(0).Killed())
}

func TestConcurrentStartsAllowOneSession(t *testing.T) {
	l := &fakeLauncher{}
	s, _ := newTestSupervisor(t, l)

	const callers = 16
	var (
		mu       sync.Mutex
		started  int
		rejected int
		others   []error
	)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := s.StartRecording(context.Background(), testConfig)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started++
			case errors.Is(err, domain.ErrAlreadyRecording):
				rejected++
			default:
				others = append(others, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Empty(t, others)
	assert.Equal(t, 1, started)
	assert.Equal(t, callers-1, rejected)
	l.mu.Lock()
	launches := len(l.calls)
	l.mu.Unlock()
	assert.Equal(t, 1, launches, "only one capture process may be launched")
	assert.Equal(t, StateRecording, statusOf(t, s).State)
}
