package chain

import (
	"regexp"
	"strings"
)

var (
	switchRe = regexp.MustCompile(`^/[A-Za-z0-9?]{1,2}(:.*)?$`)
	mkdirRe  = regexp.MustCompile(`(?i)^mkdir\s+-p\s+(.+)$`)
)

// NormalizeConsole rewrites a command for cmd.exe: path-like arguments get
// native separators and "mkdir -p" becomes a chain of create-if-absent
// commands, one per path component.
func NormalizeConsole(command string) string {
	return rewriteMkdir(sanitizePaths(command))
}

// SanitizePath converts one path argument to native form. Quoted paths stay
// quoted; paths containing whitespace are quoted.
func SanitizePath(p string) string {
	quoted := len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"'
	inner := strings.Trim(p, `"`)
	inner = strings.ReplaceAll(inner, "/", `\`)

	unc := strings.HasPrefix(inner, `\\`)
	for strings.Contains(inner, `\\`) {
		inner = strings.ReplaceAll(inner, `\\`, `\`)
	}
	if unc {
		inner = `\` + inner
	}

	trimmed := strings.TrimRight(inner, `\`)
	switch {
	case trimmed == "":
		inner = `\`
	case isDrive(trimmed) && len(trimmed) < len(inner):
		inner = trimmed + `\`
	default:
		inner = trimmed
	}

	if quoted || strings.ContainsAny(inner, " \t") {
		return `"` + inner + `"`
	}
	return inner
}

func sanitizePaths(command string) string {
	var b strings.Builder
	for _, tok := range splitTokens(command) {
		if isPathLike(tok) {
			b.WriteString(SanitizePath(tok))
		} else {
			b.WriteString(tok)
		}
	}
	return b.String()
}

// splitTokens splits s into alternating runs of whitespace and words.
// Double-quoted sections stay inside their word. Joining the result gives s
// back unchanged.
func splitTokens(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote, inSpace := false, false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		space := !inQuote && (r == ' ' || r == '\t')
		if space != inSpace {
			flush()
			inSpace = space
		}
		if r == '"' {
			inQuote = !inQuote
		}
		cur.WriteRune(r)
	}
	flush()
	return tokens
}

func isPathLike(tok string) bool {
	inner := strings.Trim(tok, `"`)
	switch {
	case strings.TrimSpace(inner) == "":
		return false
	case strings.HasPrefix(inner, "-"):
		return false
	case strings.Contains(inner, "://"):
		return false
	case strings.ContainsAny(inner, "<>|&"):
		return false
	case !strings.ContainsAny(inner, `/\`):
		return false
	case switchRe.MatchString(inner):
		return false
	}
	return true
}

func isDrive(s string) bool {
	return len(s) == 2 && s[1] == ':' &&
		(s[0] >= 'A' && s[0] <= 'Z' || s[0] >= 'a' && s[0] <= 'z')
}

// rewriteMkdir expands each "mkdir -p" segment of an && chain.
func rewriteMkdir(command string) string {
	segments := strings.Split(command, "&&")
	changed := false
	for i, seg := range segments {
		m := mkdirRe.FindStringSubmatch(strings.TrimSpace(seg))
		if m == nil {
			continue
		}
		var cmds []string
		for _, tok := range splitTokens(m[1]) {
			if strings.TrimSpace(tok) == "" {
				continue
			}
			cmds = append(cmds, createDirs(strings.Trim(tok, `"`))...)
		}
		if len(cmds) == 0 {
			continue
		}
		segments[i] = strings.Join(cmds, " && ")
		changed = true
	}
	if !changed {
		return command
	}
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	return strings.Join(segments, " && ")
}

// createDirs returns one create-if-absent command per path component. A bare
// drive is never created.
func createDirs(path string) []string {
	var cmds []string
	current := ""
	if strings.HasPrefix(path, `\`) && !strings.HasPrefix(path, `\\`) {
		current = `\`
	}
	for _, part := range strings.Split(path, `\`) {
		if part == "" {
			continue
		}
		switch current {
		case "":
			current = part
		case `\`:
			current += part
		default:
			current += `\` + part
		}
		if isDrive(current) {
			continue
		}
		cmds = append(cmds, `if not exist "`+current+`" md "`+current+`"`)
	}
	return cmds
}
