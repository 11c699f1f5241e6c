package recorder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const outputExt = ".wav"

// SampleFormat maps a bit depth to the ALSA sample format arecord expects.
func SampleFormat(bitDepth int) string {
	switch bitDepth {
	case 24:
		return "S24_3LE"
	case 32:
		return "S32_LE"
	default:
		return "S16_LE"
	}
}

// BuildArgs returns the arecord command line for cfg writing to output.
// -vv makes arecord print "Max peak" progress lines on stderr.
func BuildArgs(cfg CaptureConfig, output string) []string {
	args := []string{
		"-D", cfg.Device,
		"-c", strconv.Itoa(cfg.Channels),
		"-f", SampleFormat(cfg.BitDepth),
		"-r", strconv.Itoa(cfg.SampleRate),
	}
	if cfg.BufferSize > 0 {
		args = append(args, "--buffer-size="+strconv.Itoa(cfg.BufferSize))
	}
	return append(args, "-t", "wav", "-vv", output)
}

// OutputName derives the recording file name from the start time.
func OutputName(t time.Time) string {
	return t.Format("2006-01-02_15-04-05") + outputExt
}

// uniqueOutputPath returns dir/OutputName(t), suffixed with _2, _3, ... when
// a recording started in the same second already exists.
func uniqueOutputPath(dir string, t time.Time) (string, error) {
	base := t.Format("2006-01-02_15-04-05")
	for i := 1; i < 1000; i++ {
		name := base + outputExt
		if i > 1 {
			name = fmt.Sprintf("%s_%d%s", base, i, outputExt)
		}
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free output name for %s in %s", base, dir)
}
