// Package window splits source text into overlapping fixed-size windows.
package window

import (
	"strings"

	"refcheck/src/internal/schema"
)

// DefaultWindowSize is used when the caller passes a non-positive size.
const DefaultWindowSize = 8000

// DefaultOverlap is the overlap suggested to callers that have no preference.
const DefaultOverlap = 500

// Create splits text into windows of at most windowSize characters, each
// starting windowSize-overlap characters after the previous one. Offsets are
// in runes. A short trailing window is replaced by one full-sized window that
// ends at the end of the text.
func Create(text string, windowSize, overlap int) []schema.Window {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	overlap = max(0, min(overlap, windowSize-1))
	step := windowSize - overlap

	r := []rune(text)
	n := len(r)
	var out []schema.Window
	for start := 0; start < n; start += step {
		end := min(start+windowSize, n)
		if end == n {
			if len(out) > 0 && end-start < step {
				start = max(0, n-windowSize)
			}
			out = append(out, newWindow(r, len(out), start, end))
			break
		}
		out = append(out, newWindow(r, len(out), start, end))
	}
	return out
}

func newWindow(r []rune, idx, start, end int) schema.Window {
	return schema.Window{
		Index:  idx,
		Start:  start,
		End:    end,
		Length: end - start,
		Text:   string(r[start:end]),
	}
}
