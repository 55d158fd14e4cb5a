package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"refcheck/src/internal/pipeline"
	"refcheck/src/internal/schema"
)

func sampleState() *pipeline.State {
	st := pipeline.NewState()
	st.Extractions = []*schema.Extraction{
		{
			RawExtraction: schema.RawExtraction{
				Title:          "Deep learning for citation screening",
				Authors:        schema.Authors{"Smith, John", "Doe JA"},
				Year:           "2020",
				ContainerTitle: "Journal of Testing",
				Volume:         "12",
				Pages:          "100-110",
				DOI:            "10.1000/xyz",
			},
			ID:               "0b6c7f1e-0000-4000-8000-000000000001",
			Index:            0,
			ValidationStatus: schema.StatusValid,
		},
		{
			RawExtraction:     schema.RawExtraction{Title: "A {braced} title", Authors: schema.Authors{"Smith, Jane"}, Year: "2020"},
			ID:                "0b6c7f1e-0000-4000-8000-000000000002",
			Index:             1,
			ValidationStatus:  schema.StatusInvalid,
			ValidationMessage: "not found",
		},
		{
			ID:    "0b6c7f1e-0000-4000-8000-000000000003",
			Index: 2,
			Error: "window 3: timeout",
		},
		{
			RawExtraction:    schema.RawExtraction{Title: "Half a record"},
			ID:               "0b6c7f1e-0000-4000-8000-000000000004",
			Index:            3,
			ValidationStatus: schema.StatusIncomplete,
		},
	}
	return st
}

func TestBuildSummary(t *testing.T) {
	st := sampleState()
	r := Build(st, pipeline.Result{Windows: 3, Removed: []string{"x"}}, "paper.txt")
	assert.Equal(t, st.RunID, r.RunID)
	assert.Len(t, r.Citations, 3)
	assert.Len(t, r.Errors, 1)
	assert.Equal(t, Summary{Total: 3, Valid: 1, Invalid: 1, Incomplete: 1, Errors: 1, Duplicates: 1}, r.Summary)
	assert.Contains(t, SummaryLine(r.Summary), "3 citations: 1 valid")
}

func TestBuildLineIndex(t *testing.T) {
	st := sampleState()
	assert.Nil(t, Build(st, pipeline.Result{}, "").Lines, "no index before rebuild")

	st.Extractions[0].AbsoluteLineStart, st.Extractions[0].AbsoluteLineEnd = 3, 4
	st.Extractions[1].AbsoluteLineStart, st.Extractions[1].AbsoluteLineEnd = 4, 4
	st.Rebuild()
	r := Build(st, pipeline.Result{}, "")
	assert.Equal(t, map[int][]string{
		3: {st.Extractions[0].ID},
		4: {st.Extractions[0].ID, st.Extractions[1].ID},
	}, r.Lines)
	assert.Equal(t, 1, r.Summary.Valid)
}

func TestWriteYAMLAndJSON(t *testing.T) {
	r := Build(sampleState(), pipeline.Result{Windows: 3}, "paper.txt")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "", r))
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "paper.txt", back["source"])
	assert.Len(t, back["citations"], 3)

	buf.Reset()
	require.NoError(t, Write(&buf, "JSON", r))
	var j struct {
		RunID     string `json:"runId"`
		Citations []struct {
			ID               string `json:"id"`
			ValidationStatus string `json:"validationStatus"`
		} `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &j))
	assert.Equal(t, r.RunID, j.RunID)
	require.Len(t, j.Citations, 3)
	assert.Equal(t, "valid", j.Citations[0].ValidationStatus)

	assert.Error(t, Write(&buf, "csv", r))
}

func TestBibTeX(t *testing.T) {
	r := Build(sampleState(), pipeline.Result{}, "")
	out := BibTeX(r.Citations)

	assert.Equal(t, 3, strings.Count(out, "\n@")+1)
	assert.Contains(t, out, "@article{smith2020,\n")
	assert.Contains(t, out, "@misc{smith2020a,\n")
	assert.Contains(t, out, "  author = {Smith, J. and Doe, J. A.},\n")
	assert.Contains(t, out, "  pages = {100--110},\n")
	assert.Contains(t, out, "  journal = {Journal of Testing},\n")
	assert.Contains(t, out, "  title = {A \\{braced\\} title},\n")
	assert.Contains(t, out, "  note = {invalid: not found},\n")
	assert.NotContains(t, out, "timeout")
	// Key falls back to the id when there is no author.
	assert.Contains(t, out, "@misc{0b6c7f1e000040008000000000000004,\n")
	// Last field carries no trailing comma.
	assert.NotContains(t, out, ",\n}")
}

func TestFormatAuthorsTruncated(t *testing.T) {
	assert.Equal(t, "Smith, J. and others", formatAuthors([]string{"Smith J"}, true))
	assert.Equal(t, "", formatAuthors(nil, true))
}
