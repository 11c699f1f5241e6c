package recorder

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanLinesSplitsOnCRAndLF(t *testing.T) {
	in := "Recording WAVE 'x.wav'\nMax peak (800 samples): 0x00000012 #   1%\rMax peak (800 samples): 0x00000a00 ##  7%\r\nlast"
	sc := bufio.NewScanner(strings.NewReader(in))
	sc.Split(ScanLines)

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.NoError(t, sc.Err())
	assert.Equal(t, []string{
		"Recording WAVE 'x.wav'",
		"Max peak (800 samples): 0x00000012 #   1%",
		"Max peak (800 samples): 0x00000a00 ##  7%",
		"",
		"last",
	}, lines)
}

func TestDiagnosticsKeepsTail(t *testing.T) {
	d := newDiagnostics(20)
	d.Append("first line")
	assert.Equal(t, "first line\n", d.String())

	d.Append("second line")
	d.Append("third")
	got := d.String()
	assert.True(t, strings.HasPrefix(got, truncatedMarker))
	assert.NotContains(t, got, "first line")
	assert.True(t, strings.HasSuffix(got, "third\n"))
	assert.LessOrEqual(t, len(got)-len(truncatedMarker), 20)
}

func TestDiagnosticsLongSingleLine(t *testing.T) {
	d := newDiagnostics(8)
	d.Append(strings.Repeat("x", 30))
	got := d.String()
	assert.Equal(t, truncatedMarker+"xxxxxxx\n", got)
}

func TestDiagnosticsNil(t *testing.T) {
	var d *diagnostics
	d.Append("ignored")
	assert.Equal(t, "", d.String())
}

func TestIsStatusLine(t *testing.T) {
	assert.True(t, isStatusLine("Max peak (800 samples): 0x0012", "Max peak"))
	assert.False(t, isStatusLine("overrun!!!", "Max peak"))
	assert.False(t, isStatusLine("Max peak", ""))
}
