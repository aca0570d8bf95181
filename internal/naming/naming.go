// Package naming holds the title-cleaning and filename collaborators used by
// the analyze path and the download worker.
package naming

import (
	"regexp"
	"strings"
)

const maxFilenameLen = 200

var (
	whitespaceRe = regexp.MustCompile(`[\n\r\t]+`)
	invalidRe    = regexp.MustCompile(`[\\/:*?"<>|]`)
)

// CleanTitle extracts a meaningful title for a media source. Instagram posts
// often carry a machine-generated title; when one is detected the first
// non-empty description line is used instead.
func CleanTitle(title, extractorKey, description string) string {
	if extractorKey == "Instagram" && description != "" && isGenericTitle(title) {
		for _, line := range strings.Split(description, "\n") {
			if cleaned := strings.TrimSpace(line); cleaned != "" {
				return cleaned
			}
		}
	}
	if title == "" {
		return "download"
	}
	return title
}

func isGenericTitle(title string) bool {
	if title == "" {
		return true
	}
	lower := strings.ToLower(title)
	for _, prefix := range []string{"video by", "image by", "post by"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// SanitizeFilename removes characters that are invalid in filenames and limits
// the length.
func SanitizeFilename(name string) string {
	s := whitespaceRe.ReplaceAllString(name, " ")
	s = invalidRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	return s
}

// StripStem removes the worker-generated "<id>_<unix>" stem from a produced
// file's name and returns the remainder as the display name. The input is
// returned unchanged when the stem does not match.
func StripStem(filename, stem string) string {
	rest, ok := strings.CutPrefix(filename, stem)
	if !ok {
		return filename
	}
	return strings.TrimPrefix(rest, "_")
}
