package naming

import (
	"strings"
	"testing"
)

func TestCleanTitlePassthrough(t *testing.T) {
	if got := CleanTitle("My Clip", "Youtube", "description"); got != "My Clip" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanTitleEmptyDefaults(t *testing.T) {
	if got := CleanTitle("", "Youtube", ""); got != "download" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanTitleInstagramGenericUsesDescription(t *testing.T) {
	desc := "\n  \nFirst real line\nsecond line"
	if got := CleanTitle("Video by someuser", "Instagram", desc); got != "First real line" {
		t.Fatalf("got %q", got)
	}
}

func TestCleanTitleInstagramRealTitleKept(t *testing.T) {
	if got := CleanTitle("Actual Title", "Instagram", "desc"); got != "Actual Title" {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain name", "plain name"},
		{"a/b\\c:d*e?f\"g<h>i|j", "abcdefghij"},
		{"line\none\ttwo", "line one two"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	if got := SanitizeFilename(long); len(got) != maxFilenameLen {
		t.Fatalf("len = %d", len(got))
	}
}

func TestStripStem(t *testing.T) {
	stem := "abc123_1700000000"
	if got := StripStem(stem+"_My Video.mp4", stem); got != "My Video.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestStripStemNoMatchReturnsInput(t *testing.T) {
	if got := StripStem("other_file.mp4", "abc123_1700000000"); got != "other_file.mp4" {
		t.Fatalf("got %q", got)
	}
}
