package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{`{"type":"startRecording","channels":2,"bitrate":24,"sampleRate":44100,"bufferSize":262144,"device":"hw:0,0"}`,
			StartRecording{Channels: 2, BitDepth: 24, SampleRate: 44100, BufferSize: 262144, Device: "hw:0,0"}},
		{`{"type":"stopRecording"}`, StopRecording{}},
		{`  {"type":"getStatus"}  `, GetStatus{}},
		{`{"type":"listFiles"}`, ListFiles{}},
		{`{"type":"deleteFile","name":"a.wav"}`, DeleteFile{Name: "a.wav"}},
		{`{"type":"probeFile","name":"a.wav"}`, ProbeFile{Name: "a.wav"}},
		{`{"type":"listDevices"}`, ListDevices{}},
		{`{"type":"shutdownHost"}`, ShutdownHost{}},
		{`{"type":"rebootHost","extra":true}`, RebootHost{}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Type(), func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"raw string":     `"startRecording"`,
		"bare word":      `startRecording`,
		"array":          `[{"type":"getStatus"}]`,
		"empty":          ``,
		"missing type":   `{"name":"a.wav"}`,
		"empty type":     `{"type":""}`,
		"numeric type":   `{"type":3}`,
		"unknown type":   `{"type":"formatDisk"}`,
		"truncated":      `{"type":"getStatus"`,
		"string channel": `{"type":"startRecording","channels":"2","bitrate":16,"sampleRate":44100}`,
		"numeric name":   `{"type":"deleteFile","name":7}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.Nil(t, cmd)
			assert.Equal(t, domain.KindProtocol, domain.KindOf(err))
		})
	}
}

func TestStartRecordingValidate(t *testing.T) {
	valid := StartRecording{Channels: 2, BitDepth: 16, SampleRate: 48000, Device: "hw:1,0"}
	require.NoError(t, valid.Validate())

	noDevice := valid
	noDevice.Device = ""
	require.NoError(t, noDevice.Validate())

	tests := map[string]func(c *StartRecording){
		"zero channels":     func(c *StartRecording) { c.Channels = 0 },
		"too many channels": func(c *StartRecording) { c.Channels = 33 },
		"odd bit depth":     func(c *StartRecording) { c.BitDepth = 20 },
		"odd sample rate":   func(c *StartRecording) { c.SampleRate = 12345 },
		"negative buffer":   func(c *StartRecording) { c.BufferSize = -1 },
		"device with space": func(c *StartRecording) { c.Device = "hw:0,0 -f" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
}

func TestFileCommandsRequireName(t *testing.T) {
	assert.Equal(t, domain.KindValidation, domain.KindOf(DeleteFile{}.Validate()))
	assert.Equal(t, domain.KindValidation, domain.KindOf(ProbeFile{Name: "  "}.Validate()))
	assert.NoError(t, DeleteFile{Name: "x.wav"}.Validate())
}

func TestCaptureConfigDefaultsDevice(t *testing.T) {
	c := StartRecording{Channels: 1, BitDepth: 16, SampleRate: 8000}
	assert.Equal(t, "default", c.CaptureConfig("default").Device)
	c.Device = "hw:2,0"
	assert.Equal(t, "hw:2,0", c.CaptureConfig("default").Device)
}

func TestMutating(t *testing.T) {
	assert.True(t, Mutating(StartRecording{}))
	assert.True(t, Mutating(StopRecording{}))
	assert.True(t, Mutating(DeleteFile{}))
	assert.False(t, Mutating(GetStatus{}))
	assert.False(t, Mutating(ProbeFile{}))
}

func TestStatusMessageShape(t *testing.T) {
	code := 1
	raw, err := json.Marshal(NewStatus(recorder.Status{
		State:          recorder.StateCrashed,
		DiagnosticText: "boom\n",
		ExitCode:       &code,
	}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "status", got["type"])
	assert.Equal(t, false, got["isRecording"])
	assert.Equal(t, "crashed", got["state"])
	assert.Equal(t, "", got["statusLine"])
	assert.Equal(t, "boom\n", got["diagnosticText"])
	assert.Equal(t, float64(1), got["exitCode"])
}

func TestErrorMessage(t *testing.T) {
	msg := NewError(TypeStartRecording, domain.WithOp(domain.ErrAlreadyRecording, "recorder.start"))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "startRecording", msg.Request)
	assert.Equal(t, "StateError", msg.Kind)
	assert.Equal(t, "AlreadyRecording", msg.Code)

	plain := NewError("", errors.New("boom"))
	assert.Equal(t, "InternalError", plain.Kind)
	assert.Empty(t, plain.Code)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	raw, err := json.Marshal(NewFiles(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"files","files":[]}`, string(raw))

	raw, err = json.Marshal(NewDevices(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"devices","devices":[]}`, string(raw))
}
