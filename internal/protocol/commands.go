// Package protocol defines the JSON messages exchanged over the WebSocket
// channel: the commands clients send and the replies the server emits.
package protocol

import (
	"strings"
	"unicode"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

// Command type tags, as sent in the "type" field.
const (
	TypeStartRecording = "startRecording"
	TypeStopRecording  = "stopRecording"
	TypeGetStatus      = "getStatus"
	TypeListFiles      = "listFiles"
	TypeDeleteFile     = "deleteFile"
	TypeProbeFile      = "probeFile"
	TypeListDevices    = "listDevices"
	TypeShutdownHost   = "shutdownHost"
	TypeRebootHost     = "rebootHost"
)

// Command is one decoded client request.
type Command interface {
	Type() string
	Validate() error
}

const (
	MinChannels = 1
	MaxChannels = 32
)

var (
	// BitDepths accepted in the "bitrate" field.
	BitDepths = []int{16, 24, 32}
	// SampleRates accepted in the "sampleRate" field.
	SampleRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}
)

type StartRecording struct {
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bitrate"`
	SampleRate int    `json:"sampleRate"`
	BufferSize int    `json:"bufferSize"`
	Device     string `json:"device"`
}

func (StartRecording) Type() string { return TypeStartRecording }

// Validate checks ranges. An empty device is allowed and means the
// configured default.
func (c StartRecording) Validate() error {
	const op = "protocol.startRecording"
	if c.Channels < MinChannels || c.Channels > MaxChannels {
		return domain.New(domain.KindValidation, op, "channels must be between %d and %d, got %d", MinChannels, MaxChannels, c.Channels)
	}
	if !contains(BitDepths, c.BitDepth) {
		return domain.New(domain.KindValidation, op, "bitrate must be one of %v, got %d", BitDepths, c.BitDepth)
	}
	if !contains(SampleRates, c.SampleRate) {
		return domain.New(domain.KindValidation, op, "sampleRate %d is not supported", c.SampleRate)
	}
	if c.BufferSize < 0 {
		return domain.New(domain.KindValidation, op, "bufferSize must not be negative, got %d", c.BufferSize)
	}
	if strings.IndexFunc(c.Device, unicode.IsSpace) >= 0 {
		return domain.New(domain.KindValidation, op, "device %q must not contain whitespace", c.Device)
	}
	return nil
}

// CaptureConfig converts the request, substituting defaultDevice for an
// empty device.
func (c StartRecording) CaptureConfig(defaultDevice string) recorder.CaptureConfig {
	dev := c.Device
	if dev == "" {
		dev = defaultDevice
	}
	return recorder.CaptureConfig{
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
		SampleRate: c.SampleRate,
		BufferSize: c.BufferSize,
		Device:     dev,
	}
}

type StopRecording struct{}

func (StopRecording) Type() string    { return TypeStopRecording }
func (StopRecording) Validate() error { return nil }

type GetStatus struct{}

func (GetStatus) Type() string    { return TypeGetStatus }
func (GetStatus) Validate() error { return nil }

type ListFiles struct{}

func (ListFiles) Type() string    { return TypeListFiles }
func (ListFiles) Validate() error { return nil }

type DeleteFile struct {
	Name string `json:"name"`
}

func (DeleteFile) Type() string { return TypeDeleteFile }

func (c DeleteFile) Validate() error { return requireName("protocol.deleteFile", c.Name) }

type ProbeFile struct {
	Name string `json:"name"`
}

func (ProbeFile) Type() string { return TypeProbeFile }

func (c ProbeFile) Validate() error { return requireName("protocol.probeFile", c.Name) }

type ListDevices struct{}

func (ListDevices) Type() string    { return TypeListDevices }
func (ListDevices) Validate() error { return nil }

type ShutdownHost struct{}

func (ShutdownHost) Type() string    { return TypeShutdownHost }
func (ShutdownHost) Validate() error { return nil }

type RebootHost struct{}

func (RebootHost) Type() string    { return TypeRebootHost }
func (RebootHost) Validate() error { return nil }

// Mutating reports whether cmd changes session or file state, which is
// followed by a status broadcast.
func Mutating(cmd Command) bool {
	switch cmd.(type) {
	case StartRecording, StopRecording, DeleteFile:
		return true
	}
	return false
}

func requireName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.New(domain.KindValidation, op, "name is required")
	}
	return nil
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
