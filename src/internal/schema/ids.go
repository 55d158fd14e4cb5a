package schema

import (
	"strings"

	"refcheck/src/internal/sanitize"
)

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips resolver and "doi:" prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(d, p) {
			d = strings.TrimSpace(strings.TrimPrefix(d, p))
		}
	}
	return strings.TrimRight(d, ".,;")
}

// NormalizeISBN removes hyphens and spaces and uppercases the check digit.
func NormalizeISBN(isbn string) string {
	s := strings.ToUpper(strings.TrimSpace(isbn))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// NormalizePMID trims a PMID and drops a leading "PMID:" label.
func NormalizePMID(pmid string) string {
	s := strings.TrimSpace(pmid)
	if len(s) >= 5 && strings.EqualFold(s[:5], "pmid:") {
		s = strings.TrimSpace(s[5:])
	}
	return s
}

// Clean trims and strips control characters from every free-text field of r.
func (r *RawExtraction) Clean() {
	r.DOI = NormalizeDOI(sanitize.CleanString(r.DOI, 256))
	r.PMID = FlexString(NormalizePMID(sanitize.CleanString(string(r.PMID), 32)))
	r.ISBN = sanitize.CleanString(r.ISBN, 32)
	r.Title = sanitize.CleanString(r.Title, 1024)
	r.Year = FlexString(sanitize.CleanString(string(r.Year), 16))
	r.ContainerTitle = sanitize.CleanString(r.ContainerTitle, 512)
	r.Volume = FlexString(sanitize.CleanString(string(r.Volume), 32))
	r.Issue = FlexString(sanitize.CleanString(string(r.Issue), 32))
	r.Pages = FlexString(sanitize.CleanString(string(r.Pages), 32))
	r.RawText = sanitize.CleanString(r.RawText, 0)
	r.QueryBibliographic = sanitize.CleanString(r.QueryBibliographic, 1024)
	r.Reason = sanitize.CleanString(r.Reason, 512)
	authors := r.Authors[:0]
	for _, a := range r.Authors {
		if a = sanitize.CleanString(a, 256); a != "" {
			authors = append(authors, a)
		}
	}
	if len(authors) == 0 {
		authors = nil
	}
	r.Authors = authors
	switch r.Position {
	case PositionStart, PositionEnd:
	default:
		p := Position(strings.ToLower(strings.TrimSpace(string(r.Position))))
		if p != PositionStart && p != PositionEnd {
			p = ""
		}
		r.Position = p
	}
}
