// Package devices lists ALSA capture devices by parsing `arecord -l`.
package devices

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
)

// Device is one capture endpoint. ID is what startRecording's device field
// expects.
type Device struct {
	CardNum    int    `json:"cardNum"`
	HWName     string `json:"hwName"`
	Name       string `json:"name"`
	DeviceNum  int    `json:"deviceNum"`
	DeviceName string `json:"deviceName"`
	ID         string `json:"id"`
}

// card 1: Device [USB Audio Device], device 0: USB Audio [USB Audio]
var cardLine = regexp.MustCompile(`^card (\d+): (\S+) \[(.*?)\], device (\d+): (.*?) \[(.*?)\]`)

const defaultTimeout = 5 * time.Second

type Lister struct {
	tool   string
	runner utils.Runner
	log    logger.Logger
}

func NewLister(tool string, runner utils.Runner, log logger.Logger) *Lister {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	return &Lister{tool: tool, runner: runner, log: log}
}

func (l *Lister) List(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out, err := l.runner.Run(ctx, l.tool, "-l")
	if err != nil {
		l.log.Warn("device listing failed", logger.String("tool", l.tool), logger.Error(err))
		return nil, domain.Wrap(domain.KindProcess, "devices.list", err, "cannot list capture devices")
	}
	list := Parse(out)
	l.log.Debug("capture devices listed", logger.Int("count", len(list)))
	return list, nil
}

// Parse extracts devices from `arecord -l` output. Subdevice and header
// lines are skipped.
func Parse(out []byte) []Device {
	var list []Device
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := cardLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		card, _ := strconv.Atoi(m[1])
		dev, _ := strconv.Atoi(m[4])
		list = append(list, Device{
			CardNum:    card,
			HWName:     m[2],
			Name:       m[3],
			DeviceNum:  dev,
			DeviceName: m[5],
			ID:         "hw:" + m[1] + "," + m[4],
		})
	}
	return list
}
