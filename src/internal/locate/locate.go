// Package locate maps citations back to the lines of the source text they
// were extracted from. It is a best-effort search; a miss is not an error.
package locate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"refcheck/src/internal/dates"
	"refcheck/src/internal/names"
	"refcheck/src/internal/schema"
)

// Strategy names, in the order they are tried.
const (
	StrategyRawText = "raw_text"
	StrategyDOI     = "doi"
	StrategyTitle   = "title"
	StrategyAuthor  = "author_year"
)

const (
	// minNeedle is the shortest raw text or title worth searching for.
	minNeedle = 10
	// partialLen is the prefix/suffix length used when raw text is not found whole.
	partialLen = 40
	// yearProximity is how far (in bytes) a year may sit from the author name.
	yearProximity = 200
)

var enumerator = regexp.MustCompile(`^\s*(\[\d+\]|\(\d+\)|\d+[.)]\s|[-*•·]\s)`)

// Locator searches one source text. Build it once per run.
type Locator struct {
	text       string
	lineStarts []int
	// folded is text with whitespace runs collapsed to one space and ASCII
	// lowercased; orig maps each byte of folded back to its offset in text.
	folded string
	orig   []int
}

// New indexes text.
func New(text string) *Locator {
	l := &Locator{text: text, lineStarts: []int{0}}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			l.lineStarts = append(l.lineStarts, i+1)
		}
	}
	var b strings.Builder
	b.Grow(len(text))
	l.orig = make([]int, 0, len(text))
	inSpace := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isSpace(c) {
			if !inSpace {
				b.WriteByte(' ')
				l.orig = append(l.orig, i)
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteByte(lowerASCII(c))
		l.orig = append(l.orig, i)
	}
	l.folded = b.String()
	return l
}

// Locate sets e's character range and 1-based line range. It returns the
// strategy that found it, or "" when none did.
func (l *Locator) Locate(e *schema.Extraction) string {
	if e == nil || e.IsError() || l.text == "" {
		return ""
	}
	strategies := []struct {
		name string
		find func(*schema.Extraction) (int, int, bool)
	}{
		{StrategyRawText, l.byRawText},
		{StrategyDOI, l.byDOI},
		{StrategyTitle, l.byTitle},
		{StrategyAuthor, l.byAuthorYear},
	}
	for _, s := range strategies {
		if start, end, ok := s.find(e); ok {
			e.CharStart, e.CharEnd = start, end
			e.AbsoluteLineStart = l.Line(start)
			e.AbsoluteLineEnd = l.Line(max(start, end-1))
			return s.name
		}
	}
	return ""
}

// Line returns the 1-based line holding byte offset off.
func (l *Locator) Line(off int) int {
	return sort.Search(len(l.lineStarts), func(i int) bool { return l.lineStarts[i] > off })
}

func (l *Locator) byRawText(e *schema.Extraction) (int, int, bool) {
	raw := fold(e.RawText)
	if len(raw) < minNeedle {
		return 0, 0, false
	}
	if s, end, ok := l.find(raw); ok {
		return s, end, true
	}
	if len(raw) <= partialLen {
		return 0, 0, false
	}
	if s, _, ok := l.find(trimPartial(raw[:partialLen])); ok {
		return s, l.entryEnd(s), true
	}
	if _, end, ok := l.find(trimPartial(raw[len(raw)-partialLen:])); ok {
		return l.entryStart(end - 1), end, true
	}
	return 0, 0, false
}

func (l *Locator) byDOI(e *schema.Extraction) (int, int, bool) {
	doi := fold(schema.NormalizeDOI(e.DOI))
	if doi == "" {
		return 0, 0, false
	}
	return l.anchor(doi)
}

func (l *Locator) byTitle(e *schema.Extraction) (int, int, bool) {
	title := fold(strings.TrimRight(e.Title, ". "))
	if len(title) < minNeedle {
		return 0, 0, false
	}
	return l.anchor(title)
}

func (l *Locator) byAuthorYear(e *schema.Extraction) (int, int, bool) {
	family := fold(names.Family(e.FirstAuthor()))
	year := dates.ExtractYear(string(e.Year))
	if utf8.RuneCountInString(family) < 2 || year == 0 {
		return 0, 0, false
	}
	y := strconv.Itoa(year)
	from := 0
	for {
		i := strings.Index(l.folded[from:], family)
		if i < 0 {
			return 0, 0, false
		}
		i += from
		lo, hi := max(0, i-yearProximity), min(len(l.folded), i+len(family)+yearProximity)
		if strings.Contains(l.folded[lo:hi], y) {
			start := l.orig[i]
			return l.entryStart(start), l.entryEnd(start), true
		}
		from = i + len(family)
	}
}

// anchor finds needle and widens the hit to the surrounding entry.
func (l *Locator) anchor(needle string) (int, int, bool) {
	s, end, ok := l.find(needle)
	if !ok {
		return 0, 0, false
	}
	return l.entryStart(s), max(end, l.entryEnd(end-1)), true
}

// find returns the byte range in text of the folded needle.
func (l *Locator) find(needle string) (int, int, bool) {
	if needle == "" {
		return 0, 0, false
	}
	i := strings.Index(l.folded, needle)
	if i < 0 {
		return 0, 0, false
	}
	return l.orig[i], l.orig[i+len(needle)-1] + 1, true
}

// entryStart walks back from off to the first line of its entry: a line led by
// an enumerator, or one that follows a blank line.
func (l *Locator) entryStart(off int) int {
	line := l.Line(off)
	for line > 1 {
		if enumerator.MatchString(l.lineText(line)) || isBlank(l.lineText(line-1)) {
			break
		}
		line--
	}
	start := l.lineStarts[line-1]
	for start < len(l.text) && isSpace(l.text[start]) && l.text[start] != '\n' {
		start++
	}
	return start
}

// entryEnd walks forward from off to the last line before a blank or
// enumerator-led line, returning the offset just past its last non-space byte.
func (l *Locator) entryEnd(off int) int {
	line := l.Line(off)
	for line < len(l.lineStarts) {
		next := l.lineText(line + 1)
		if isBlank(next) || enumerator.MatchString(next) {
			break
		}
		line++
	}
	end := l.lineEnd(line)
	for end > 0 && isSpace(l.text[end-1]) {
		end--
	}
	return end
}

func (l *Locator) lineText(line int) string {
	return l.text[l.lineStarts[line-1]:l.lineEnd(line)]
}

func (l *Locator) lineEnd(line int) int {
	if line < len(l.lineStarts) {
		return l.lineStarts[line] - 1
	}
	return len(l.text)
}

// fold applies the same whitespace collapsing and ASCII lowercasing as the index.
func fold(s string) string {
	var b strings.Builder
	inSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteByte(lowerASCII(c))
	}
	return strings.TrimSpace(b.String())
}

// trimPartial drops a leading or trailing partial UTF-8 sequence and spaces.
func trimPartial(s string) string {
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
