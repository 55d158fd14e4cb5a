package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcheck/src/internal/schema"
)

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TextSimilarity("Quantum Effects", "quantum effects"))
	assert.Equal(t, 1.0, TextSimilarity("Über Wärme", "uber warme"))
	assert.Equal(t, 0.0, TextSimilarity("", "x"))
	assert.InDelta(t, 0.5, TextSimilarity("a b c", "a b d"), 1e-9)
}

func TestFamilySimilarity(t *testing.T) {
	assert.Equal(t, 1.0, FamilySimilarity("Smith J.", "Smith, John"))
	assert.Equal(t, 1.0, FamilySimilarity("Müller A", "Muller, Anna"))
	assert.InDelta(t, 0.8, FamilySimilarity("Smith", "Smyth"), 1e-9)
	assert.Equal(t, 0.0, FamilySimilarity("", "Smith"))
}

func TestAuthorSimilarity(t *testing.T) {
	a := []string{"Smith J", "Jones K", "Brown L"}
	b := []string{"Smith, John", "Taylor P", "Green M"}
	// first matches, last does not
	assert.InDelta(t, firstAuthorShare, AuthorSimilarity(a, b), 0.2)
	assert.Equal(t, 1.0, AuthorSimilarity([]string{"Smith J"}, b))
	assert.Equal(t, 0.0, AuthorSimilarity(nil, b))
	assert.Equal(t, 1.0, AuthorSimilarity(a, []string{"John Smith", "X Y", "Brown, L."}))
}

func TestNormalizePages(t *testing.T) {
	cases := map[string]string{
		"806-14":      "806-814",
		"806–814":     "806-814",
		"pp. 806--14": "806-814",
		"p. 12":       "12",
		"e1002345":    "e1002345",
		"1299-1300":   "1299-1300",
		"S12-S19":     "s12-s19",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePages(in), in)
	}
}

func TestCalculateMatchScore_DivisorUsesComparedWeightsOnly(t *testing.T) {
	a := schema.Record{Title: "Deep learning", Year: 2015}
	b := schema.Record{Title: "Deep learning", Year: 2015, Journal: "Nature", Volume: "521"}
	ms := CalculateMatchScore(a, b)
	assert.Equal(t, 2, ms.FieldsCompared)
	assert.InDelta(t, 1.0, ms.Overall, 1e-9)
	assert.NotContains(t, ms.Fields, FieldJournal)
}

func TestCalculateMatchScore_NoCommonFields(t *testing.T) {
	ms := CalculateMatchScore(schema.Record{Title: "x"}, schema.Record{Year: 2000})
	assert.Equal(t, 0, ms.FieldsCompared)
	assert.Equal(t, 0.0, ms.Overall)
	assert.Equal(t, schema.StatusMismatch, Verdict(ms.Overall))
}

func TestCalculateMatchScore_HighTitleAuthorYearIsValid(t *testing.T) {
	a := schema.Record{
		Title:   "a b c d e f g h i j k l m n o p q r s",
		Authors: []string{"Smith J"},
		Year:    2020,
	}
	b := a
	b.Title = "a b c d e f g h i j k l m n o p q r s t"
	b.Authors = []string{"Smith, John"}
	ms := CalculateMatchScore(a, b)
	require.InDelta(t, 0.95, ms.Fields[FieldTitle], 1e-9)
	assert.GreaterOrEqual(t, ms.Overall, ValidThreshold)
	assert.Equal(t, schema.StatusValid, Verdict(ms.Overall))
}

func TestCalculateMatchScore_Monotonicity(t *testing.T) {
	a := schema.Record{Title: "Graph neural networks", Authors: []string{"Kipf T"}, Year: 2017}
	b := schema.Record{Title: "Graph convolutional networks", Authors: []string{"Kipf, Thomas"}, Year: 2017}
	base := CalculateMatchScore(a, b).Overall

	a2, b2 := a, b
	a2.Volume, b2.Volume = "12", "12"
	assert.GreaterOrEqual(t, CalculateMatchScore(a2, b2).Overall, base)

	a3, b3 := a, b
	a3.Pages, b3.Pages = "1-10", "20-30"
	assert.Less(t, CalculateMatchScore(a3, b3).Overall, base)
}

func TestVerdict(t *testing.T) {
	assert.Equal(t, schema.StatusValid, Verdict(0.90))
	assert.Equal(t, schema.StatusSuspicious, Verdict(0.70))
	assert.Equal(t, schema.StatusSuspicious, Verdict(0.899))
	assert.Equal(t, schema.StatusMismatch, Verdict(0.69))
}
