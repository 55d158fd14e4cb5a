package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Position marks which window edge truncated an incomplete extraction.
type Position string

const (
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

// Status is the verification verdict attached to an extraction.
type Status string

const (
	StatusValid      Status = "valid"
	StatusSuspicious Status = "suspicious"
	StatusMismatch   Status = "mismatch"
	StatusInvalid    Status = "invalid"
	StatusIncomplete Status = "incomplete"
)

// Window is a half-open character range [Start, End) of the source text.
type Window struct {
	Index  int    `yaml:"index" json:"index"`
	Start  int    `yaml:"start" json:"start"`
	End    int    `yaml:"end" json:"end"`
	Length int    `yaml:"length" json:"length"`
	Text   string `yaml:"-" json:"-"`
}

// RawExtraction is one citation record as returned by the extraction service.
type RawExtraction struct {
	DOI                string     `yaml:"doi,omitempty" json:"doi,omitempty"`
	PMID               FlexString `yaml:"pmid,omitempty" json:"pmid,omitempty"`
	ISBN               string     `yaml:"isbn,omitempty" json:"isbn,omitempty"`
	Title              string     `yaml:"title,omitempty" json:"title,omitempty"`
	Year               FlexString `yaml:"year,omitempty" json:"year,omitempty"`
	Authors            Authors    `yaml:"authors,omitempty" json:"authors,omitempty"`
	AuthorsTruncated   bool       `yaml:"authors_truncated,omitempty" json:"authors_truncated,omitempty"`
	ContainerTitle     string     `yaml:"container_title,omitempty" json:"container_title,omitempty"`
	Volume             FlexString `yaml:"volume,omitempty" json:"volume,omitempty"`
	Issue              FlexString `yaml:"issue,omitempty" json:"issue,omitempty"`
	Pages              FlexString `yaml:"pages,omitempty" json:"pages,omitempty"`
	RawText            string     `yaml:"raw_text,omitempty" json:"raw_text,omitempty"`
	QueryBibliographic string     `yaml:"query_bibliographic,omitempty" json:"query_bibliographic,omitempty"`
	// Complete is nil when the service omitted the flag, which means complete.
	Complete *bool    `yaml:"complete,omitempty" json:"complete,omitempty"`
	Position Position `yaml:"position,omitempty" json:"position,omitempty"`
	Reason   string   `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// IsComplete reports whether the record was captured whole.
func (r RawExtraction) IsComplete() bool { return r.Complete == nil || *r.Complete }

// MarkComplete sets the complete flag and clears the truncation markers.
func (r *RawExtraction) MarkComplete() {
	t := true
	r.Complete = &t
	r.Position = ""
	r.Reason = ""
}

// FirstAuthor returns the first listed author or "".
func (r RawExtraction) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// Extraction is a RawExtraction after it has been given an identity by the run.
type Extraction struct {
	RawExtraction `yaml:",inline"`

	ID          string `yaml:"id" json:"id"`
	Index       int    `yaml:"index" json:"index"`
	WindowIndex int    `yaml:"window_index" json:"windowIndex"`
	ColorIndex  int    `yaml:"color_index" json:"colorIndex"`

	ValidationStatus  Status      `yaml:"validation_status,omitempty" json:"validationStatus,omitempty"`
	ValidationMessage string      `yaml:"validation_message,omitempty" json:"validationMessage,omitempty"`
	Validation        *Validation `yaml:"validation,omitempty" json:"validation,omitempty"`

	// Error is set only on the synthetic record emitted for a failed window.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	CharStart         int `yaml:"char_start,omitempty" json:"charStart,omitempty"`
	CharEnd           int `yaml:"char_end,omitempty" json:"charEnd,omitempty"`
	AbsoluteLineStart int `yaml:"absolute_line_start,omitempty" json:"absoluteLineStart,omitempty"`
	AbsoluteLineEnd   int `yaml:"absolute_line_end,omitempty" json:"absoluteLineEnd,omitempty"`
}

// IsError reports whether e is a window error record.
func (e *Extraction) IsError() bool { return e.Error != "" }

// Located reports whether the text locator mapped e to source lines.
func (e *Extraction) Located() bool { return e.AbsoluteLineStart > 0 }

// Validation holds the external evidence behind a verdict.
type Validation struct {
	Source    string      `yaml:"source,omitempty" json:"source,omitempty"`
	CrossRef  *Record     `yaml:"crossref,omitempty" json:"crossref,omitempty"`
	PubMed    *Record     `yaml:"pubmed,omitempty" json:"pubmed,omitempty"`
	Score     *MatchScore `yaml:"score,omitempty" json:"score,omitempty"`
	Lookups   []string    `yaml:"lookups,omitempty" json:"lookups,omitempty"`
	LastError string      `yaml:"last_error,omitempty" json:"lastError,omitempty"`
}

// Record is a bibliographic record normalized from either authority.
// Authors are "Family, Given" or "Family G" strings.
type Record struct {
	Source  string   `yaml:"source" json:"source"`
	Title   string   `yaml:"title,omitempty" json:"title,omitempty"`
	Authors []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Year    int      `yaml:"year,omitempty" json:"year,omitempty"`
	Journal string   `yaml:"journal,omitempty" json:"journal,omitempty"`
	Volume  string   `yaml:"volume,omitempty" json:"volume,omitempty"`
	Issue   string   `yaml:"issue,omitempty" json:"issue,omitempty"`
	Pages   string   `yaml:"pages,omitempty" json:"pages,omitempty"`
	DOI     string   `yaml:"doi,omitempty" json:"doi,omitempty"`
	PMID    string   `yaml:"pmid,omitempty" json:"pmid,omitempty"`
}

// MatchScore is the weighted comparison of two records.
type MatchScore struct {
	Overall        float64            `yaml:"overall" json:"overall"`
	Fields         map[string]float64 `yaml:"fields" json:"fields"`
	FieldsCompared int                `yaml:"fields_compared" json:"fieldsCompared"`
}

// FlexString decodes from either a JSON string or a JSON number. Extraction
// services are inconsistent about quoting years, volumes and PMIDs.
type FlexString string

func (f FlexString) String() string { return string(f) }

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar.
func (f *FlexString) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.TrimSpace(value.Value))
	return nil
}

// Int returns the leading integer value or 0.
func (f FlexString) Int() int {
	s := strings.TrimSpace(string(f))
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// Authors is a list of author name strings that decodes from several shapes:
//   - a single string
//   - a sequence of strings
//   - a sequence of {family, given} or {name} objects
type Authors []string

type authorObject struct {
	Family string `json:"family" yaml:"family"`
	Given  string `json:"given" yaml:"given"`
	Name   string `json:"name" yaml:"name"`
}

func (a authorObject) String() string {
	fam := strings.TrimSpace(a.Family)
	giv := strings.TrimSpace(a.Given)
	switch {
	case fam != "" && giv != "":
		return fam + ", " + giv
	case fam != "":
		return fam
	case giv != "":
		return giv
	}
	return strings.TrimSpace(a.Name)
}

func (a *Authors) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = nil
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s == "" {
			*a = nil
			return nil
		}
		*a = Authors{s}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		var out Authors
		for _, it := range items {
			it = bytes.TrimSpace(it)
			if len(it) == 0 {
				continue
			}
			if it[0] == '"' {
				var s string
				if err := json.Unmarshal(it, &s); err != nil {
					return err
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
				continue
			}
			if it[0] == '{' {
				var ao authorObject
				if err := json.Unmarshal(it, &ao); err != nil {
					return err
				}
				if s := ao.String(); s != "" {
					out = append(out, s)
				}
			}
		}
		*a = out
		return nil
	case '{':
		var ao authorObject
		if err := json.Unmarshal(b, &ao); err != nil {
			return err
		}
		if s := ao.String(); s != "" {
			*a = Authors{s}
		} else {
			*a = nil
		}
		return nil
	}
	// Unknown shape; leave nil rather than erroring
	*a = nil
	return nil
}

func (a *Authors) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		s := strings.TrimSpace(value.Value)
		if s == "" || s == "null" {
			*a = nil
			return nil
		}
		*a = Authors{s}
		return nil
	case yaml.SequenceNode:
		var out Authors
		for _, n := range value.Content {
			if n.Kind == yaml.ScalarNode {
				if s := strings.TrimSpace(n.Value); s != "" {
					out = append(out, s)
				}
				continue
			}
			if n.Kind == yaml.MappingNode {
				var ao authorObject
				if err := n.Decode(&ao); err != nil {
					return err
				}
				if s := ao.String(); s != "" {
					out = append(out, s)
				}
			}
		}
		*a = out
		return nil
	case yaml.MappingNode:
		var ao authorObject
		if err := value.Decode(&ao); err != nil {
			return err
		}
		if s := ao.String(); s != "" {
			*a = Authors{s}
		} else {
			*a = nil
		}
		return nil
	default:
		*a = nil
		return nil
	}
}
