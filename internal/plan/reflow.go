package plan

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// commandLineRe finds the last command field opened on a line. Text before
// the field, such as the plan's opening braces, is kept in the prefix.
var commandLineRe = regexp.MustCompile(`^(.*"(?:command|rollback_command)"\s*:\s*)"(.*)$`)

// reflowHeredocs rewrites command values whose heredoc body was emitted with
// raw newlines. The opening line, the body and the terminator line are merged
// into a single escaped JSON string. changed is false when nothing matched.
func reflowHeredocs(text string) (out string, changed bool) {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i := 0; i < len(lines); i++ {
		merged, consumed, ok := reflowAt(lines, i)
		if ok {
			changed = true
			b.WriteString(merged)
			i += consumed - 1
		} else {
			b.WriteString(lines[i])
		}
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String(), changed
}

// reflowAt tries to merge the heredoc opened on lines[i]. consumed counts the
// lines folded into merged, including the opening and terminator lines.
func reflowAt(lines []string, i int) (merged string, consumed int, ok bool) {
	m := commandLineRe.FindStringSubmatch(lines[i])
	if m == nil {
		return "", 0, false
	}
	prefix, first := m[1], strings.TrimRight(m[2], " \t\r")
	if firstUnescapedQuote(first, 0) >= 0 {
		return "", 0, false
	}
	terms := reflowTerminators(first)
	if terms == nil {
		return "", 0, false
	}

	for j := i + 1; j < len(lines); j++ {
		line := strings.TrimRight(lines[j], "\r")
		trimmed := strings.TrimLeft(line, " \t")
		term, found := matchingTerminator(trimmed, terms)
		if !found {
			continue
		}
		q := firstUnescapedQuote(line, len(line)-len(trimmed)+len(term))
		if q < 0 {
			return "", 0, false
		}
		value := make([]string, 0, j-i+1)
		value = append(value, decodeLoose(first))
		for _, body := range lines[i+1 : j] {
			value = append(value, strings.TrimRight(body, "\r"))
		}
		value = append(value, decodeLoose(line[:q]))
		encoded, err := encodeString(strings.Join(value, "\n"))
		if err != nil {
			return "", 0, false
		}
		return prefix + encoded + line[q+1:], j - i + 1, true
	}
	return "", 0, false
}

// reflowTerminators returns the accepted terminators for a first line that
// ends in a PowerShell here-string opener or contains a bash heredoc marker.
func reflowTerminators(first string) []string {
	switch {
	case strings.HasSuffix(first, "@'"):
		return []string{"'@"}
	case strings.HasSuffix(first, `@\"`):
		return []string{`\"@`, `"@`}
	}
	for i := strings.Index(first, "<<"); i >= 0; {
		if term, n := heredocOpener(first[i:]); n > 0 {
			return []string{term}
		}
		j := strings.Index(first[i+2:], "<<")
		if j < 0 {
			break
		}
		i += 2 + j
	}
	return nil
}

func matchingTerminator(s string, terms []string) (string, bool) {
	for _, t := range terms {
		if matchesTerminator(s, t) {
			return t, true
		}
	}
	return "", false
}

// firstUnescapedQuote returns the index of the first double quote at or
// after from that is not preceded by an odd run of backslashes, or -1.
func firstUnescapedQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == '"' && !escaped(s, i) {
			return i
		}
	}
	return -1
}

func escaped(s string, i int) bool {
	n := 0
	for k := i - 1; k >= 0 && s[k] == '\\'; k-- {
		n++
	}
	return n%2 == 1
}

// decodeLoose undoes the common JSON escapes. Unknown escapes are kept as is.
func decodeLoose(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func encodeString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
