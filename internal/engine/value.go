package engine

import (
	"regexp"
	"strings"
)

var (
	keyedLineRe = regexp.MustCompile(`(?i)^(?:id|name)\s*:\s*(\S.*)$`)
	commitRe    = regexp.MustCompile(`\b[0-9a-f]{7,40}\b`)
	hexLetterRe = regexp.MustCompile(`[a-f]`)
)

// RepresentativeValue picks the value a step provides from its stdout: the
// only non-empty line; otherwise the value of the first "id:" or "name:"
// line, or the first commit-hash-like token; otherwise the first non-blank
// line. It is a heuristic for typical CLI output, not a parser.
func RepresentativeValue(stdout string) string {
	var lines []string
	for _, l := range strings.Split(stdout, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	switch len(lines) {
	case 0:
		return ""
	case 1:
		return lines[0]
	}

	for _, l := range lines {
		if m := keyedLineRe.FindStringSubmatch(l); m != nil {
			return strings.TrimSpace(m[1])
		}
		for _, h := range commitRe.FindAllString(l, -1) {
			if hexLetterRe.MatchString(h) {
				return h
			}
		}
	}
	return lines[0]
}
