package window

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcheck/src/internal/schema"
)

func spans(ws []schema.Window) [][2]int {
	out := make([][2]int, len(ws))
	for i, w := range ws {
		out[i] = [2]int{w.Start, w.End}
	}
	return out
}

func TestCreate_BackShiftsShortTail(t *testing.T) {
	text := strings.Repeat("a", 4500)
	ws := Create(text, 2000, 200)
	// the trailing [3600,4500) window is shorter than the step and is
	// replaced by a full-sized window ending at 4500. A back-shifted start
	// of 2700 would leave a 1800-char window, so the last span is
	// [n-windowSize, n) = [2500,4500).
	assert.Equal(t, [][2]int{{0, 2000}, {1800, 3800}, {2500, 4500}}, spans(ws))
	for i, w := range ws {
		assert.Equal(t, i, w.Index)
		assert.Equal(t, w.End-w.Start, w.Length)
		assert.Len(t, w.Text, w.Length)
	}
}

func TestCreate_EmptyAndWhitespace(t *testing.T) {
	assert.Empty(t, Create("", 100, 10))
	assert.Empty(t, Create(" \n\t ", 100, 10))
}

func TestCreate_ShortTextSingleWindow(t *testing.T) {
	ws := Create("hello world", 100, 10)
	require.Len(t, ws, 1)
	assert.Equal(t, 0, ws[0].Start)
	assert.Equal(t, 11, ws[0].End)
}

func TestCreate_DefaultsAndClamp(t *testing.T) {
	text := strings.Repeat("x", DefaultWindowSize+10)
	ws := Create(text, 0, -5)
	require.Len(t, ws, 2)
	assert.Equal(t, DefaultWindowSize, ws[0].Length)
	assert.Equal(t, DefaultWindowSize, ws[1].Length)
	assert.Equal(t, len(text), ws[1].End)

	// overlap >= windowSize is clamped to windowSize-1 (step 1)
	ws = Create("abcdef", 3, 10)
	assert.Equal(t, [][2]int{{0, 3}, {1, 4}, {2, 5}, {3, 6}}, spans(ws))
}

func TestCreate_RuneOffsets(t *testing.T) {
	ws := Create("ééééé", 2, 0)
	require.NotEmpty(t, ws)
	assert.Equal(t, "éé", ws[0].Text)
	assert.Equal(t, 5, ws[len(ws)-1].End)
}

func TestCreate_CoverageAndDeterminism(t *testing.T) {
	for n := 1; n <= 120; n += 7 {
		text := strings.Repeat("z", n)
		for ws := 1; ws <= 40; ws += 3 {
			for ov := 0; ov < ws; ov += 2 {
				got := Create(text, ws, ov)
				require.NotEmpty(t, got)
				assert.Equal(t, got, Create(text, ws, ov))
				covered := 0
				for _, w := range got {
					require.LessOrEqual(t, w.Length, ws)
					require.LessOrEqual(t, w.Start, covered, "gap before %v (n=%d ws=%d ov=%d)", w, n, ws, ov)
					covered = max(covered, w.End)
				}
				require.Equal(t, n, covered)
			}
		}
	}
}
