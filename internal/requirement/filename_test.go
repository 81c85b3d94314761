package requirement

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "42 Fix login bug.md", want: "42 Fix login bug.md"},
		{name: "reserved characters", in: `1 a<b>c:d"e/f\g|h?i*j.md`, want: "1 abcdefghij.md"},
		{name: "control characters", in: "3 tab\there\x00\x1f.md", want: "3 tabhere.md"},
		{name: "surrounding whitespace", in: "  5 spaced  ", want: "5 spaced"},
		{name: "only reserved", in: `<>:"/\|?*`, want: ""},
		{name: "whitespace exposed after removal", in: "* name *", want: "name"},
		{name: "unicode kept", in: "9 Überprüfung 日本.md", want: "9 Überprüfung 日本.md"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
			checkSanitized(t, got)
		})
	}
}

func FuzzSanitizeFilename(f *testing.F) {
	for _, seed := range []string{
		"42 Fix login bug.md",
		`1 a<b>c:d"e/f\g|h?i*j.md`,
		"3 tab\there\x00\x1f.md",
		"  5 spaced  ",
		"* name *",
		"9 Überprüfung 日本.md",
		"\x85 next line\u00a0",
		"\xff\xfe invalid",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, in string) {
		checkSanitized(t, SanitizeFilename(in))
	})
}

// checkSanitized asserts the properties every SanitizeFilename result has.
func checkSanitized(t *testing.T, got string) {
	t.Helper()
	if again := SanitizeFilename(got); again != got {
		t.Errorf("not idempotent: %q -> %q", got, again)
	}
	if strings.ContainsAny(got, reservedChars) {
		t.Errorf("result %q contains reserved characters", got)
	}
	for _, r := range got {
		if r <= 31 {
			t.Errorf("result %q contains control character %U", got, r)
		}
	}
	if strings.TrimSpace(got) != got {
		t.Errorf("result %q has surrounding whitespace", got)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(42, "Fix login bug"); got != "42 Fix login bug.md" {
		t.Errorf("Filename() = %q", got)
	}
	if got := Filename(7, "Support a/b: testing?"); got != "7 Support ab testing.md" {
		t.Errorf("Filename() = %q", got)
	}
}
