package recorder

import (
	"fmt"
	"time"
)

// State is the lifecycle state of the capture session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Active reports whether a capture process may be running. Crashed behaves
// like Idle for transitions and only differs for diagnostics.
func (s State) Active() bool {
	return s == StateStarting || s == StateRecording || s == StateStopping
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateStarting, StateRecording, StateStopping, StateCrashed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown recorder state %q", b)
}

// CaptureConfig is what a client asks the capture tool to record with.
type CaptureConfig struct {
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bitrate"`
	SampleRate int    `json:"sampleRate"`
	BufferSize int    `json:"bufferSize"`
	Device     string `json:"device"`
}

// Status is a read-only snapshot of the session.
type Status struct {
	IsRecording    bool           `json:"isRecording"`
	State          State          `json:"state"`
	StatusLine     string         `json:"statusLine"`
	DiagnosticText string         `json:"diagnosticText"`
	ExitCode       *int           `json:"exitCode"`
	File           string         `json:"file,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	Generation     uint64         `json:"generation"`
	Config         *CaptureConfig `json:"config,omitempty"`
}
