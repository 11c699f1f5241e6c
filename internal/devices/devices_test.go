package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
)

const arecordList = `**** List of CAPTURE Hardware Devices ****
card 0: PCH [HDA Intel PCH], device 0: ALC892 Analog [ALC892 Analog]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
card 2: XR18 [X18/XR18], device 0: USB Audio [USB Audio]
  Subdevices: 1/1
  Subdevice #0: subdevice #0
`

func TestParse(t *testing.T) {
	got := Parse([]byte(arecordList))
	assert.Equal(t, []Device{
		{CardNum: 0, HWName: "PCH", Name: "HDA Intel PCH", DeviceNum: 0, DeviceName: "ALC892 Analog", ID: "hw:0,0"},
		{CardNum: 2, HWName: "XR18", Name: "X18/XR18", DeviceNum: 0, DeviceName: "USB Audio", ID: "hw:2,0"},
	}, got)
}

func TestParseNoDevices(t *testing.T) {
	assert.Empty(t, Parse([]byte("arecord: device_list:279: no soundcards found...\n")))
}

type fakeRunner struct {
	out []byte
	err error
}

func (f fakeRunner) Run(context.Context, string, ...string) ([]byte, error) { return f.out, f.err }

func TestListerList(t *testing.T) {
	l := NewLister("arecord", fakeRunner{out: []byte(arecordList)}, logger.Nop())
	list, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	l = NewLister("arecord", fakeRunner{err: errors.New("boom")}, logger.Nop())
	_, err = l.List(context.Background())
	assert.Equal(t, domain.KindProcess, domain.KindOf(err))
}
