package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/martinpickett/Plex-Tools/pkg/hrd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Feasible(t *testing.T) {
	var buf bytes.Buffer
	Buffer(&buf, hrd.Occupancy(36_000_000), 3_000_000, 5)

	assert.Equal(t,
		"Result: Maximum Buffer Size (b): 36000000\n"+
			"Result: Maximum Buffer Size (MB): 4.50\n",
		buf.String())
}

func TestBuffer_Infeasible(t *testing.T) {
	var buf bytes.Buffer
	Buffer(&buf, hrd.Infeasible, 2_500_000, 5)

	assert.Equal(t,
		"Result: Not possible to stream video at rate 2500kb/s with delay 5.00s\n"+
			"        Try increasing rate or delay.\n",
		buf.String())
}

func TestRate(t *testing.T) {
	var buf bytes.Buffer
	Rate(&buf, 3_000_000.5)

	assert.Equal(t,
		"Result: Minimum Rate (b/s): 3000000.500\n"+
			"Result: Minimum Rate (kb/s): 3000.000\n",
		buf.String())
}

func TestPlexTable(t *testing.T) {
	var buf bytes.Buffer
	rates := []float64{20_000_001, 12_000_000, 8000, 6000, 5000, 4500.2, 4000, 3999}
	require.NoError(t, PlexTable(&buf, hrd.PlexBufferSizesMB, rates))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	header := strings.Fields(strings.TrimPrefix(strings.TrimSpace(lines[0]), "Plex Buffer (MB):"))
	assert.Equal(t, []string{"5", "10", "25", "50", "75", "100", "250", "500"}, header)

	values := strings.Fields(strings.TrimPrefix(strings.TrimSpace(lines[1]), "Required Bitrate (kb/s):"))
	assert.Equal(t, []string{"20001", "12000", "8", "6", "5", "5", "4", "4"}, values)

	// Labels and numbers are right-aligned in shared columns.
	assert.Equal(t,
		strings.Index(lines[0], "Plex Buffer (MB):")+len("Plex Buffer (MB):"),
		strings.Index(lines[1], "Required Bitrate (kb/s):")+len("Required Bitrate (kb/s):"))
	assert.Equal(t, len(strings.TrimRight(lines[0], " ")), len(strings.TrimRight(lines[1], " ")))
}

func TestPlexTable_LengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PlexTable(&buf, hrd.PlexBufferSizesMB, []float64{1}))
	assert.Empty(t, buf.String())
}

func TestTrace(t *testing.T) {
	s, err := hrd.NewSchedule([]int64{80000}, 30, 1)
	require.NoError(t, err)
	sim := hrd.NewSimulator(hrd.DefaultSimulatorConfig())

	var buf bytes.Buffer
	Trace(&buf, s, 80000, sim.Trace(s, 80000))
	out := buf.String()
	assert.Contains(t, out, "Trace: frames 1")
	assert.Contains(t, out, "effective delay 1.000s")
	assert.Contains(t, out, "arrival from 0.000s to 1.000s")
	assert.Contains(t, out, "peak 80000 bits")

	buf.Reset()
	Trace(&buf, s, 1000, sim.Trace(s, 1000))
	assert.Contains(t, buf.String(), "cannot arrive")
}
