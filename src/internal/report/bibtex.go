package report

import (
	"bytes"
	"fmt"
	"strings"

	"refcheck/src/internal/names"
	"refcheck/src/internal/schema"
	"refcheck/src/internal/stringsx"
)

// BibTeX renders citations as a BibTeX library in input order. Error
// records are skipped.
func BibTeX(citations []*schema.Extraction) string {
	var buf bytes.Buffer
	used := map[string]int{}
	for _, e := range citations {
		if e == nil || e.IsError() {
			continue
		}
		key := bibKeyFor(e)
		used[key]++
		if n := used[key]; n > 1 {
			key = fmt.Sprintf("%s%c", key, 'a'+rune(n-2))
		}
		buf.WriteString(entryToBibTeX(e, key))
	}
	return buf.String()
}

// entryToBibTeX converts one extraction into a BibTeX record string.
// The verdict goes into the non-standard 'note' and '_status' fields.
func entryToBibTeX(e *schema.Extraction, key string) string {
	w := func(k, v string) string {
		v = strings.TrimSpace(v)
		if v == "" {
			return ""
		}
		return fmt.Sprintf("  %s = {%s},\n", k, escapeBib(v))
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "@%s{%s,\n", bibTypeFor(e), key)
	b.WriteString(w("author", formatAuthors(e.Authors, e.AuthorsTruncated)))
	b.WriteString(w("title", e.Title))
	if bibTypeFor(e) == "article" {
		b.WriteString(w("journal", e.ContainerTitle))
	} else {
		b.WriteString(w("howpublished", e.ContainerTitle))
	}
	b.WriteString(w("volume", e.Volume.String()))
	b.WriteString(w("number", e.Issue.String()))
	b.WriteString(w("pages", strings.ReplaceAll(e.Pages.String(), "-", "--")))
	b.WriteString(w("year", e.Year.String()))
	b.WriteString(w("doi", e.DOI))
	b.WriteString(w("pmid", e.PMID.String()))
	b.WriteString(w("isbn", e.ISBN))
	if e.ValidationStatus != "" {
		note := string(e.ValidationStatus)
		if e.ValidationMessage != "" {
			note += ": " + e.ValidationMessage
		}
		b.WriteString(w("note", note))
		b.WriteString(w("_status", string(e.ValidationStatus)))
	}
	b.WriteString(w("_id", e.ID))
	// Close record; remove trailing comma if present
	out := b.String()
	out = strings.TrimRight(out, "\n")
	out = strings.TrimRight(out, ",")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += "}\n\n"
	return out
}

func escapeBib(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	return strings.TrimSpace(s)
}

func formatAuthors(as []string, truncated bool) string {
	parts := make([]string, 0, len(as)+1)
	for _, a := range as {
		fam, giv := names.Split(a)
		fam, giv = strings.TrimSpace(fam), strings.TrimSpace(giv)
		switch {
		case fam == "" && giv == "":
			continue
		case fam == "":
			parts = append(parts, giv)
		case giv == "":
			parts = append(parts, fam)
		default:
			parts = append(parts, fmt.Sprintf("%s, %s", fam, giv))
		}
	}
	if truncated && len(parts) > 0 {
		parts = append(parts, "others")
	}
	return strings.Join(parts, " and ")
}

func bibTypeFor(e *schema.Extraction) string {
	switch {
	case strings.TrimSpace(e.ISBN) != "" && strings.TrimSpace(e.ContainerTitle) == "":
		return "book"
	case strings.TrimSpace(e.ContainerTitle) != "":
		return "article"
	default:
		return "misc"
	}
}

// bibKeyFor builds an author-year key such as "smith2020", falling back to
// the extraction id without dashes.
func bibKeyFor(e *schema.Extraction) string {
	var sb strings.Builder
	for _, r := range stringsx.Fold(names.Family(e.FirstAuthor())) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() > 0 {
		if y := e.Year.Int(); y > 0 {
			fmt.Fprintf(&sb, "%d", y)
		}
		return sb.String()
	}
	k := strings.ReplaceAll(strings.ToLower(e.ID), "-", "")
	if k == "" {
		k = "entry"
	}
	return k
}
