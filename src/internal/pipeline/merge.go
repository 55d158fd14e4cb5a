package pipeline

import (
	"strings"
	"unicode/utf8"

	"refcheck/src/internal/names"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/stringsx"
)

const (
	minTitleOverlap  = 10
	titlePrefixChars = 15
)

// FieldsMatch is the loose identity rule for adjacent windows: any one shared
// identifier, first author, overlapping title, or year plus container suffices.
func FieldsMatch(a, b schema.RawExtraction) bool {
	if a.DOI != "" && b.DOI != "" && strings.EqualFold(a.DOI, b.DOI) {
		return true
	}
	if a.PMID != "" && b.PMID != "" && a.PMID == b.PMID {
		return true
	}
	if a.ISBN != "" && b.ISBN != "" && schema.NormalizeISBN(a.ISBN) == schema.NormalizeISBN(b.ISBN) {
		return true
	}
	fa, fb := names.Family(a.FirstAuthor()), names.Family(b.FirstAuthor())
	if fa != "" && fb != "" && strings.EqualFold(fa, fb) {
		return true
	}
	if titlesOverlap(a.Title, b.Title) {
		return true
	}
	if a.Year != "" && b.Year != "" && a.Year == b.Year &&
		a.ContainerTitle != "" && b.ContainerTitle != "" && strings.EqualFold(a.ContainerTitle, b.ContainerTitle) {
		return true
	}
	return false
}

func titlesOverlap(a, b string) bool {
	ta := strings.ToLower(strings.TrimSpace(a))
	tb := strings.ToLower(strings.TrimSpace(b))
	shorter := min(utf8.RuneCountInString(ta), utf8.RuneCountInString(tb))
	if shorter < minTitleOverlap {
		return false
	}
	if strings.Contains(ta, tb) || strings.Contains(tb, ta) {
		return true
	}
	n := min(titlePrefixChars, shorter)
	return string([]rune(ta)[:n]) == string([]rune(tb)[:n])
}

// canMerge reports whether start continues the pending end fragment.
func canMerge(end, start schema.RawExtraction) bool {
	return !end.IsComplete() && end.Position == schema.PositionEnd &&
		!start.IsComplete() && start.Position == schema.PositionStart &&
		FieldsMatch(end, start)
}

// supersedes reports whether a complete citation replaces the pending fragment.
func supersedes(end, complete schema.RawExtraction) bool {
	return !end.IsComplete() && end.Position == schema.PositionEnd &&
		complete.IsComplete() && FieldsMatch(end, complete)
}

// Merge folds the start-side fragment into the end-side primary in place.
func Merge(primary *schema.RawExtraction, secondary schema.RawExtraction) {
	primary.MarkComplete()

	switch {
	case primary.RawText != "" && secondary.RawText != "":
		primary.RawText = primary.RawText + "\n" + secondary.RawText
	case primary.RawText == "":
		primary.RawText = secondary.RawText
	}

	primary.Title = stringsx.Longer(primary.Title, secondary.Title)
	primary.ContainerTitle = stringsx.Longer(primary.ContainerTitle, secondary.ContainerTitle)
	primary.QueryBibliographic = stringsx.Longer(primary.QueryBibliographic, secondary.QueryBibliographic)

	fill(&primary.DOI, secondary.DOI)
	fill(&primary.ISBN, secondary.ISBN)
	fillFlex(&primary.PMID, secondary.PMID)
	fillFlex(&primary.Year, secondary.Year)
	fillFlex(&primary.Volume, secondary.Volume)
	fillFlex(&primary.Issue, secondary.Issue)
	fillFlex(&primary.Pages, secondary.Pages)

	if len(secondary.Authors) > len(primary.Authors) {
		primary.Authors = append(schema.Authors(nil), secondary.Authors...)
	}
	primary.AuthorsTruncated = primary.AuthorsTruncated || secondary.AuthorsTruncated
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillFlex(dst *schema.FlexString, src schema.FlexString) {
	if *dst == "" {
		*dst = src
	}
}
