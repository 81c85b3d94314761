package requirement

import (
	"strconv"
	"strings"
)

const reservedChars = `<>:"/\|?*`

// SanitizeFilename removes ASCII control characters and the characters
// < > : " / \ | ? * from s, then trims surrounding whitespace. It is
// idempotent.
func SanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= 31 || strings.ContainsRune(reservedChars, r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Filename returns the sanitized export filename for an issue.
func Filename(number int, title string) string {
	return SanitizeFilename(strconv.Itoa(number) + " " + title + ".md")
}
