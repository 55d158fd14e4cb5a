package sanitize

import (
	"testing"
	"unicode/utf8"
)

func TestCleanString(t *testing.T) {
	in := "  \tHello\x00World\n  "
	out := CleanString(in, 100)
	if out != "HelloWorld" {
		t.Fatalf("CleanString unexpected: %q", out)
	}
	if s := CleanString("abcdef", 3); s != "abc" {
		t.Fatalf("CleanString truncation: want 'abc', got %q", s)
	}
	if !utf8.ValidString(out) {
		t.Fatalf("CleanString produced invalid utf8")
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace(" a \n\t b  c "); got != "a b c" {
		t.Fatalf("CollapseSpace: got %q", got)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n[1,2]\n```": "[1,2]",
		"```\n{}\n```":        "{}",
		"  [3]  ":             "[3]",
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q)=%q want %q", in, got, want)
		}
	}
}
