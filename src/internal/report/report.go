// Package report renders the outcome of a run as YAML, JSON or BibTeX.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"refcheck/src/internal/dates"
	"refcheck/src/internal/pipeline"
	"refcheck/src/internal/schema"
)

// Output formats.
const (
	FormatYAML   = "yaml"
	FormatJSON   = "json"
	FormatBibTeX = "bibtex"
)

// Summary counts citations per verdict. Error records are counted apart.
type Summary struct {
	Total      int `yaml:"total" json:"total"`
	Valid      int `yaml:"valid" json:"valid"`
	Suspicious int `yaml:"suspicious" json:"suspicious"`
	Mismatch   int `yaml:"mismatch" json:"mismatch"`
	Invalid    int `yaml:"invalid" json:"invalid"`
	Incomplete int `yaml:"incomplete" json:"incomplete"`
	Unverified int `yaml:"unverified" json:"unverified"`
	Errors     int `yaml:"errors" json:"errors"`
	Duplicates int `yaml:"duplicates_removed" json:"duplicatesRemoved"`
}

// Report is the document written at the end of a run.
type Report struct {
	RunID     string               `yaml:"run_id" json:"runId"`
	Generated string               `yaml:"generated" json:"generated"`
	Source    string               `yaml:"source,omitempty" json:"source,omitempty"`
	Windows   int                  `yaml:"windows" json:"windows"`
	Cancelled bool                 `yaml:"cancelled,omitempty" json:"cancelled,omitempty"`
	Summary   Summary              `yaml:"summary" json:"summary"`
	Citations []*schema.Extraction `yaml:"citations" json:"citations"`
	Errors    []*schema.Extraction `yaml:"errors,omitempty" json:"errors,omitempty"`
	// Lines maps a 1-based source line to the ids of the citations covering it.
	Lines map[int][]string `yaml:"lines,omitempty" json:"lines,omitempty"`
}

// Build assembles a Report from the final run state.
func Build(st *pipeline.State, res pipeline.Result, source string) Report {
	r := Report{
		RunID:     st.RunID,
		Generated: dates.NowISO(),
		Source:    source,
		Windows:   res.Windows,
		Cancelled: res.Cancelled,
		Citations: []*schema.Extraction{},
	}
	for _, e := range st.Extractions {
		if e.IsError() {
			r.Errors = append(r.Errors, e)
			continue
		}
		r.Citations = append(r.Citations, e)
	}
	r.Summary = fromCounts(st.Counts())
	r.Summary.Errors = len(r.Errors)
	r.Summary.Duplicates = len(res.Removed)
	r.Lines = lineIndex(st, r.Citations)
	return r
}

func fromCounts(counts map[schema.Status]int) Summary {
	var s Summary
	for status, n := range counts {
		s.Total += n
		switch status {
		case schema.StatusValid:
			s.Valid += n
		case schema.StatusSuspicious:
			s.Suspicious += n
		case schema.StatusMismatch:
			s.Mismatch += n
		case schema.StatusInvalid:
			s.Invalid += n
		case schema.StatusIncomplete:
			s.Incomplete += n
		default:
			s.Unverified += n
		}
	}
	return s
}

// lineIndex reads the state's line index for every line a located citation
// covers. It is empty unless the state was rebuilt after location.
func lineIndex(st *pipeline.State, citations []*schema.Extraction) map[int][]string {
	lines := map[int][]string{}
	for _, e := range citations {
		if !e.Located() {
			continue
		}
		for l := e.AbsoluteLineStart; l <= e.AbsoluteLineEnd; l++ {
			if _, ok := lines[l]; ok {
				continue
			}
			if ids := st.IDsOnLine(l); len(ids) > 0 {
				lines[l] = ids
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// Write renders r to w in format. An empty format means YAML.
func Write(w io.Writer, format string, r Report) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report: yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report: json: %w", err)
		}
		return nil
	case FormatBibTeX:
		_, err := io.WriteString(w, BibTeX(r.Citations))
		if err != nil {
			return fmt.Errorf("report: bibtex: %w", err)
		}
		return nil
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// SummaryLine is the one-line human summary printed after a run.
func SummaryLine(s Summary) string {
	return fmt.Sprintf("%d citations: %d valid, %d suspicious, %d mismatch, %d invalid, %d incomplete, %d unverified (%d window errors, %d duplicates removed)",
		s.Total, s.Valid, s.Suspicious, s.Mismatch, s.Invalid, s.Incomplete, s.Unverified, s.Errors, s.Duplicates)
}
