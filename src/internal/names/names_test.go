package names

import "testing"

func TestInitials(t *testing.T) {
	if got := Initials("Jane Q"); got != "J. Q." {
		t.Fatalf("Initials: want 'J. Q.', got %q", got)
	}
	if got := Initials(""); got != "" {
		t.Fatalf("Initials empty: want '', got %q", got)
	}
}

func TestSplit(t *testing.T) {
	fam, giv := Split("Doe, Jane Q")
	if fam != "Doe" || giv != "J. Q." {
		t.Fatalf("Split comma: got (%q,%q)", fam, giv)
	}
	fam, giv = Split("Jane Quimby Doe")
	if fam != "Doe" || giv != "J. Q." {
		t.Fatalf("Split space: got (%q,%q)", fam, giv)
	}
	fam, giv = Split("Smith JA")
	if fam != "Smith" || giv != "J. A." {
		t.Fatalf("Split trailing initials: got (%q,%q)", fam, giv)
	}
}

func TestFamily(t *testing.T) {
	cases := map[string]string{
		"Smith J.":           "Smith",
		"Smith, John":        "Smith",
		"John Smith":         "Smith",
		"J. Smith":           "Smith",
		"van der Berg J":     "van der Berg",
		"Smith J, et al.":    "Smith",
		"Smith J et al":      "Smith",
		"Nakamura":           "Nakamura",
		"":                   "",
		"García-Márquez, G.": "García-Márquez",
	}
	for in, want := range cases {
		if got := Family(in); got != want {
			t.Fatalf("Family(%q)=%q want %q", in, got, want)
		}
	}
}
