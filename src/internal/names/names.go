package names

import (
	"strings"
	"unicode"
)

// Initials converts a given name string into spaced initials: "Jane Q" -> "J. Q.".
func Initials(given string) string {
	given = strings.TrimSpace(given)
	if given == "" {
		return ""
	}
	var out []string
	for _, w := range strings.Fields(given) {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		out = append(out, strings.ToUpper(string(r[0]))+".")
	}
	return strings.Join(out, " ")
}

// Split splits a full name into (family, givenInitials). It accepts
// "Family, Given Names", "Family GN" (citation style with trailing initials),
// and "Given Names Family".
func Split(name string) (family, givenInitials string) {
	name = trimEtAl(name)
	if name == "" {
		return "", ""
	}
	if i := strings.Index(name, ","); i >= 0 {
		family = strings.TrimSpace(name[:i])
		given := strings.TrimSpace(name[i+1:])
		return family, Initials(given)
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	// "Smith JA" / "van der Berg J."
	end := len(parts)
	for end > 1 && isInitials(parts[end-1]) {
		end--
	}
	if end < len(parts) {
		return strings.Join(parts[:end], " "), initialsOf(parts[end:])
	}
	family = parts[len(parts)-1]
	given := strings.Join(parts[:len(parts)-1], " ")
	return family, Initials(given)
}

// Family returns the family name of an author string in any of the shapes
// Split understands.
func Family(name string) string {
	f, _ := Split(name)
	return f
}

func trimEtAl(name string) string {
	name = strings.TrimSpace(name)
	low := strings.ToLower(name)
	for _, suf := range []string{"et al.", "et al"} {
		if strings.HasSuffix(low, suf) {
			name = strings.TrimSpace(name[:len(name)-len(suf)])
			break
		}
	}
	return strings.TrimRight(name, " ,;")
}

// isInitials reports whether w looks like "J", "J.", "JA", "J.-P." or "JA.".
func isInitials(w string) bool {
	letters := 0
	for _, r := range w {
		switch {
		case r == '.' || r == '-':
		case unicode.IsUpper(r):
			letters++
		default:
			return false
		}
	}
	return letters > 0 && letters <= 3
}

func initialsOf(words []string) string {
	var out []string
	for _, w := range words {
		for _, r := range w {
			if unicode.IsUpper(r) {
				out = append(out, string(r)+".")
			}
		}
	}
	return strings.Join(out, " ")
}
