package locate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"refcheck/src/internal/schema"
)

const doc = `References

[1] Smith J, Doe J. Quantum effects on
superconductivity. Nature. 2020;12:806-14.
doi:10.1/x

[2] Brown L. Photosynthesis in algae. J Bot. 1999.
3. Green M. Something else entirely. Science 2001.`

func locate(t *testing.T, raw schema.RawExtraction) (*schema.Extraction, string) {
	t.Helper()
	e := &schema.Extraction{RawExtraction: raw}
	return e, New(doc).Locate(e)
}

func TestLocate_RawTextAcrossLineBreak(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{RawText: "Smith J, Doe J.  Quantum effects on superconductivity."})
	assert.Equal(t, StrategyRawText, how)
	assert.Equal(t, strings.Index(doc, "Smith"), e.CharStart)
	assert.Equal(t, strings.Index(doc, "superconductivity.")+len("superconductivity."), e.CharEnd)
	assert.Equal(t, 3, e.AbsoluteLineStart)
	assert.Equal(t, 4, e.AbsoluteLineEnd)
	assert.True(t, e.Located())
}

func TestLocate_RawTextPrefix(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{RawText: "Brown L. Photosynthesis in algae. J Bot. 1999. with trailing words the text never had"})
	assert.Equal(t, StrategyRawText, how)
	assert.Equal(t, strings.Index(doc, "Brown"), e.CharStart)
	assert.Equal(t, 7, e.AbsoluteLineStart)
	assert.Equal(t, 7, e.AbsoluteLineEnd)
}

func TestLocate_DOIExpandsToEntry(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{DOI: "10.1/X", RawText: "short"})
	assert.Equal(t, StrategyDOI, how)
	assert.Equal(t, strings.Index(doc, "[1]"), e.CharStart)
	assert.Equal(t, 3, e.AbsoluteLineStart)
	assert.Equal(t, 5, e.AbsoluteLineEnd)
}

func TestLocate_TitleStopsAtNextEnumerator(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{Title: "Photosynthesis in Algae."})
	assert.Equal(t, StrategyTitle, how)
	assert.Equal(t, 7, e.AbsoluteLineStart)
	assert.Equal(t, 7, e.AbsoluteLineEnd)
}

func TestLocate_AuthorYear(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{Authors: schema.Authors{"Green, M."}, Year: "2001"})
	assert.Equal(t, StrategyAuthor, how)
	assert.Equal(t, 8, e.AbsoluteLineStart)
	assert.Equal(t, 8, e.AbsoluteLineEnd)

	_, how = locate(t, schema.RawExtraction{Authors: schema.Authors{"Green M"}, Year: "1950"})
	assert.Empty(t, how)
}

func TestLocate_MissesLeaveUnlocated(t *testing.T) {
	e, how := locate(t, schema.RawExtraction{Title: "An entirely absent paper title"})
	assert.Empty(t, how)
	assert.False(t, e.Located())

	errRec := &schema.Extraction{Error: "window failed", RawExtraction: schema.RawExtraction{Title: "Photosynthesis in algae"}}
	assert.Empty(t, New(doc).Locate(errRec))
	assert.Empty(t, New("").Locate(&schema.Extraction{}))
}

func TestLine(t *testing.T) {
	l := New("a\nb\nc")
	assert.Equal(t, 1, l.Line(0))
	assert.Equal(t, 1, l.Line(1))
	assert.Equal(t, 2, l.Line(2))
	assert.Equal(t, 3, l.Line(4))
}
