package logging

import (
	"regexp"
	"strings"
)

// sensitiveHeaders are request head fields whose values are never logged.
var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"x-api-key":           {},
}

var bearerPattern = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

// RedactHeadLine masks credentials in a single request head line before it
// is logged. Lines that are not "Name: value" pairs are only scanned for
// bearer tokens.
func RedactHeadLine(line string) string {
	if name, _, ok := strings.Cut(line, ":"); ok {
		if _, sensitive := sensitiveHeaders[strings.ToLower(strings.TrimSpace(name))]; sensitive {
			return name + ": ***"
		}
	}
	return bearerPattern.ReplaceAllString(line, "Bearer ***")
}

// RedactHeadLines applies RedactHeadLine to every line.
func RedactHeadLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = RedactHeadLine(line)
	}
	return out
}
