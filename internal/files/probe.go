package files

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
)

// FileDetail is what probeFile returns for a recording.
type FileDetail struct {
	Name           string  `json:"name"`
	Size           int64   `json:"size"`
	ModTime        string  `json:"modTime"`
	Duration       float64 `json:"duration"` // seconds
	Format         string  `json:"format"`
	FormatLongName string  `json:"formatLongName"`
	BitRate        int64   `json:"bitRate"`
	Codec          string  `json:"codec,omitempty"`
	SampleRate     int     `json:"sampleRate,omitempty"`
	Channels       int     `json:"channels,omitempty"`
}

// Prober extracts media details from a file path.
type Prober interface {
	Probe(ctx context.Context, path string) (FileDetail, error)
}

// FFProbe probes files with ffprobe's JSON output.
type FFProbe struct {
	Tool    string
	Timeout time.Duration
	Runner  utils.Runner
}

func NewFFProbe(tool string, timeout time.Duration, runner utils.Runner) *FFProbe {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	return &FFProbe{Tool: tool, Timeout: timeout, Runner: runner}
}

type ffprobeOutput struct {
	Format struct {
		FormatName     string `json:"format_name"`
		FormatLongName string `json:"format_long_name"`
		Duration       string `json:"duration"`
		BitRate        string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func (p *FFProbe) Probe(ctx context.Context, path string) (FileDetail, error) {
	const op = "files.probe"
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out, err := p.Runner.Run(ctx, p.Tool,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return FileDetail{}, domain.Wrap(domain.KindProbe, op, err, p.Tool+" is not installed")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return FileDetail{}, domain.Wrap(domain.KindProbe, op, err, p.Tool+" timed out")
		}
		return FileDetail{}, domain.Wrap(domain.KindProbe, op, err, p.Tool+" failed")
	}
	return parseFFProbe(out)
}

func parseFFProbe(out []byte) (FileDetail, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return FileDetail{}, domain.Wrap(domain.KindProbe, "files.probe", err, "unparseable probe output")
	}

	d := FileDetail{
		Format:         parsed.Format.FormatName,
		FormatLongName: parsed.Format.FormatLongName,
	}
	// ffprobe reports numbers as strings; absent values stay zero.
	d.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	d.BitRate, _ = strconv.ParseInt(parsed.Format.BitRate, 10, 64)

	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		d.Codec = s.CodecName
		d.SampleRate, _ = strconv.Atoi(s.SampleRate)
		d.Channels = s.Channels
		break
	}
	return d, nil
}
