package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeHeaderName canonicalizes a column header for alias matching:
// lowercased, surrounding quotes stripped, whitespace runs collapsed.
func NormalizeHeaderName(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = strings.Trim(s, `"'`)
	return NormalizeSpaces(s)
}

// SanitizeForCSV defuses spreadsheet formula injection in operator-entered
// values before they land in an exported file.
func SanitizeForCSV(text string) string {
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", " "))
	if s == "" {
		return ""
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}

func StringPtr(v string) *string { return &v }

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
