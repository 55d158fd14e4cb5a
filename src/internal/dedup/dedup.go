// Package dedup removes citations extracted twice from overlapping windows.
package dedup

import (
	"sort"

	"refcheck/src/internal/names"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/similarity"
	"refcheck/src/internal/stringsx"
)

// TitleThreshold is the minimum title similarity for identifier-less duplicates.
const TitleThreshold = 0.8

// Quality points.
const (
	pointsValid      = 100
	pointsSuspicious = 50
	pointsIncomplete = 10
	pointsInvalid    = 5
	pointsComplete   = 50
	pointsDOI        = 30
	pointsPMID       = 20
	pointsISBN       = 20
	pointsTitle      = 10
	pointsYear       = 5
	pointsContainer  = 5
	pointsMinor      = 3
	maxAuthorPoints  = 10
	windowBonus      = 0.1
)

// IsDuplicate reports whether a and b are the same work under strict rules:
// identifiers decide when both sides carry the same kind; otherwise title
// similarity, first author and year must all agree.
func IsDuplicate(a, b *schema.Extraction) bool {
	if a.IsError() || b.IsError() {
		return false
	}
	if a.DOI != "" && b.DOI != "" {
		return schema.NormalizeDOI(a.DOI) == schema.NormalizeDOI(b.DOI)
	}
	if a.PMID != "" && b.PMID != "" {
		return schema.NormalizePMID(string(a.PMID)) == schema.NormalizePMID(string(b.PMID))
	}
	if a.ISBN != "" && b.ISBN != "" {
		return schema.NormalizeISBN(a.ISBN) == schema.NormalizeISBN(b.ISBN)
	}
	if len(a.Authors) == 0 || len(b.Authors) == 0 {
		return false
	}
	if similarity.TextSimilarity(a.Title, b.Title) < TitleThreshold {
		return false
	}
	fa := stringsx.Fold(names.Family(a.Authors[0]))
	fb := stringsx.Fold(names.Family(b.Authors[0]))
	if fa == "" || fa != fb {
		return false
	}
	if a.Year != "" && b.Year != "" && a.Year.Int() != b.Year.Int() {
		return false
	}
	return true
}

// Quality scores how much trustworthy information e carries.
func Quality(e *schema.Extraction) float64 {
	var q float64
	switch e.ValidationStatus {
	case schema.StatusValid:
		q += pointsValid
	case schema.StatusSuspicious:
		q += pointsSuspicious
	case schema.StatusIncomplete:
		q += pointsIncomplete
	case schema.StatusInvalid:
		q += pointsInvalid
	}
	if e.IsComplete() {
		q += pointsComplete
	}
	q += present(e.DOI, pointsDOI) + present(string(e.PMID), pointsPMID) + present(e.ISBN, pointsISBN)
	q += present(e.Title, pointsTitle) + present(string(e.Year), pointsYear) + present(e.ContainerTitle, pointsContainer)
	q += present(string(e.Volume), pointsMinor) + present(string(e.Issue), pointsMinor) + present(string(e.Pages), pointsMinor)
	q += float64(min(len(e.Authors), maxAuthorPoints))
	q += windowBonus * float64(e.WindowIndex)
	return q
}

func present(s string, pts float64) float64 {
	if s == "" {
		return 0
	}
	return pts
}

// Run compares every pair of extractions in index order and drops the lower
// quality member of each duplicate pair; ties keep the earlier one. Dropped
// entries are removed from both lists. It returns the filtered lists and the
// removed IDs.
func Run(extractions, results []*schema.Extraction) ([]*schema.Extraction, []*schema.Extraction, []string) {
	ordered := append([]*schema.Extraction(nil), extractions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	dropped := map[string]bool{}
	var removed []string
	for i := 0; i < len(ordered); i++ {
		a := ordered[i]
		if a.IsError() || dropped[a.ID] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			b := ordered[j]
			if b.IsError() || dropped[b.ID] || !IsDuplicate(a, b) {
				continue
			}
			if Quality(b) > Quality(a) {
				dropped[a.ID] = true
				removed = append(removed, a.ID)
				break
			}
			dropped[b.ID] = true
			removed = append(removed, b.ID)
		}
	}
	return filter(extractions, dropped), filter(results, dropped), removed
}

func filter(list []*schema.Extraction, dropped map[string]bool) []*schema.Extraction {
	out := list[:0:0]
	for _, e := range list {
		if !dropped[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
