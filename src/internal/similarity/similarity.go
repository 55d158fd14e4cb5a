// Package similarity scores how closely two bibliographic records agree.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"refcheck/src/internal/names"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/stringsx"
)

// Field weights. Only fields present on both sides count toward the divisor.
const (
	WeightTitle   = 0.35
	WeightAuthors = 0.30
	WeightYear    = 0.20
	WeightJournal = 0.05
	WeightVolume  = 0.05
	WeightPages   = 0.05
)

// Verdict thresholds on MatchScore.Overall.
const (
	ValidThreshold      = 0.90
	SuspiciousThreshold = 0.70
)

// Author weighting when both sides list more than one author.
const (
	firstAuthorShare = 0.7
	lastAuthorShare  = 0.3
)

// Field names used as keys in MatchScore.Fields.
const (
	FieldTitle   = "title"
	FieldAuthors = "authors"
	FieldYear    = "year"
	FieldJournal = "journal"
	FieldVolume  = "volume"
	FieldPages   = "pages"
)

// TextSimilarity is the Jaccard overlap of the folded word sets of a and b.
func TextSimilarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	toks := stringsx.Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// FamilySimilarity compares the family names of two author strings by
// normalized edit distance.
func FamilySimilarity(a, b string) float64 {
	fa := stringsx.Fold(names.Family(a))
	fb := stringsx.Fold(names.Family(b))
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	longest := max(utf8.RuneCountInString(fa), utf8.RuneCountInString(fb))
	d := levenshtein.ComputeDistance(fa, fb)
	return 1 - float64(d)/float64(longest)
}

// AuthorSimilarity weighs first-author similarity 70% and last-author 30%
// when both lists have more than one author, else first author alone.
func AuthorSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	first := FamilySimilarity(a[0], b[0])
	if len(a) > 1 && len(b) > 1 {
		last := FamilySimilarity(a[len(a)-1], b[len(b)-1])
		return firstAuthorShare*first + lastAuthorShare*last
	}
	return first
}

// NormalizePages canonicalizes a page range: dashes unified, "pp." dropped,
// and abbreviated end pages expanded ("806-14" -> "806-814").
func NormalizePages(p string) string {
	s := strings.TrimSpace(strings.ToLower(p))
	for _, pre := range []string{"pp.", "pp", "p."} {
		if strings.HasPrefix(s, pre) {
			s = strings.TrimSpace(s[len(pre):])
			break
		}
	}
	s = strings.NewReplacer("–", "-", "—", "-", "‒", "-", "−", "-", " ", "").Replace(s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	start, end, ok := strings.Cut(s, "-")
	if !ok || start == "" || end == "" {
		return strings.Trim(s, "-")
	}
	if isDigits(start) && isDigits(end) && len(end) < len(start) {
		end = start[:len(start)-len(end)] + end
	}
	return start + "-" + end
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// CalculateMatchScore compares a citation against a candidate record. Fields
// missing on either side do not participate; the divisor shrinks instead.
func CalculateMatchScore(citation, candidate schema.Record) schema.MatchScore {
	ms := schema.MatchScore{Fields: map[string]float64{}}
	var sum, weights float64
	add := func(name string, w, v float64) {
		ms.Fields[name] = v
		sum += w * v
		weights += w
		ms.FieldsCompared++
	}

	if both(citation.Title, candidate.Title) {
		add(FieldTitle, WeightTitle, TextSimilarity(citation.Title, candidate.Title))
	}
	if len(citation.Authors) > 0 && len(candidate.Authors) > 0 {
		add(FieldAuthors, WeightAuthors, AuthorSimilarity(citation.Authors, candidate.Authors))
	}
	if citation.Year > 0 && candidate.Year > 0 {
		add(FieldYear, WeightYear, boolScore(citation.Year == candidate.Year))
	}
	if both(citation.Journal, candidate.Journal) {
		add(FieldJournal, WeightJournal, TextSimilarity(citation.Journal, candidate.Journal))
	}
	if both(citation.Volume, candidate.Volume) {
		add(FieldVolume, WeightVolume, boolScore(strings.EqualFold(strings.TrimSpace(citation.Volume), strings.TrimSpace(candidate.Volume))))
	}
	if both(citation.Pages, candidate.Pages) {
		add(FieldPages, WeightPages, boolScore(NormalizePages(citation.Pages) == NormalizePages(candidate.Pages)))
	}

	if weights > 0 {
		ms.Overall = sum / weights
	}
	return ms
}

// Verdict maps an overall score to valid, suspicious or mismatch.
func Verdict(overall float64) schema.Status {
	switch {
	case overall >= ValidThreshold:
		return schema.StatusValid
	case overall >= SuspiciousThreshold:
		return schema.StatusSuspicious
	default:
		return schema.StatusMismatch
	}
}

func both(a, b string) bool { return strings.TrimSpace(a) != "" && strings.TrimSpace(b) != "" }

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
