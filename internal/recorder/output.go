package recorder

import (
	"bytes"
	"strings"
)

const truncatedMarker = "[earlier output truncated]\n"

// ScanLines is a bufio.SplitFunc that ends a line at '\n' or '\r'. arecord
// redraws its VU meter with carriage returns.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// diagnostics keeps the tail of the capture tool's non-status output,
// bounded to limit bytes.
type diagnostics struct {
	limit     int
	buf       []byte
	truncated bool
}

func newDiagnostics(limit int) *diagnostics {
	return &diagnostics{limit: limit}
}

func (d *diagnostics) Append(line string) {
	if d == nil {
		return
	}
	d.buf = append(d.buf, line...)
	d.buf = append(d.buf, '\n')
	if d.limit <= 0 || len(d.buf) <= d.limit {
		return
	}
	d.truncated = true
	cut := len(d.buf) - d.limit
	// Prefer dropping whole lines.
	if i := bytes.IndexByte(d.buf[cut:], '\n'); i >= 0 && cut+i+1 < len(d.buf) {
		cut += i + 1
	}
	d.buf = append(d.buf[:0], d.buf[cut:]...)
}

func (d *diagnostics) String() string {
	if d == nil || len(d.buf) == 0 {
		return ""
	}
	if d.truncated {
		return truncatedMarker + string(d.buf)
	}
	return string(d.buf)
}

func isStatusLine(line, prefix string) bool {
	return prefix != "" && strings.HasPrefix(line, prefix)
}
