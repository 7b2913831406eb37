package plan

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

// Extract recovers the first JSON object in text that carries both a
// "version" and a "steps" key. Text around the object (prose, code fences)
// is ignored. Braces and quotes inside JSON strings and inside shell heredoc
// bodies embedded in those strings do not count.
//
// When the direct scan finds nothing, heredoc bodies written with raw
// newlines are re-escaped into proper JSON strings and the scan is retried.
func Extract(text string) (string, error) {
	if obj, ok := scan(text); ok {
		return obj, nil
	}
	if reflowed, changed := reflowHeredocs(text); changed {
		if obj, ok := scan(reflowed); ok {
			return obj, nil
		}
	}
	return "", sprenerrors.NewExtractionError("could not find a valid JSON plan", text)
}

type state int

const (
	stateNormal state = iota
	stateInString
	stateInHeredoc
)

type tokenKind int

const (
	tokOpenBrace tokenKind = iota
	tokCloseBrace
	tokQuote
	tokEscape
	tokHeredocOpen
	tokHeredocClose
	tokOther
)

type action int

const (
	actNone action = iota
	actPush
	actPop
	actEnterHeredoc
	actLeaveHeredoc
)

type transition struct {
	next state
	act  action
}

// transitions is keyed by (state, token). Pairs missing from the table keep
// the current state and do nothing.
var transitions = map[state]map[tokenKind]transition{
	stateNormal: {
		tokOpenBrace:  {stateNormal, actPush},
		tokCloseBrace: {stateNormal, actPop},
		tokQuote:      {stateInString, actNone},
	},
	stateInString: {
		tokQuote:       {stateNormal, actNone},
		tokEscape:      {stateInString, actNone},
		tokHeredocOpen: {stateInHeredoc, actEnterHeredoc},
	},
	stateInHeredoc: {
		tokEscape:       {stateInHeredoc, actNone},
		tokHeredocClose: {stateInString, actLeaveHeredoc},
	},
}

func step(s state, k tokenKind) transition {
	if t, ok := transitions[s][k]; ok {
		return t
	}
	return transition{next: s, act: actNone}
}

type token struct {
	kind  tokenKind
	width int
	term  string // heredoc terminator, set on tokHeredocOpen
}

// scanner walks one candidate object starting at an opening brace.
type scanner struct {
	text      string
	pos       int
	state     state
	depth     int
	term      string
	lineStart bool
	heredocs  bool
}

// scan tries each opening brace in turn and returns the first candidate
// object that satisfies the plan key check.
func scan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		obj, end, ok := scanObject(text, start)
		if ok {
			return obj, true
		}
		// A marker closed only by later prose swallows the string's closing
		// quote; the same brace is retried with heredocs ignored.
		if obj, _, ok := scanWith(text, start, false); ok {
			return obj, true
		}
		next := start + 1
		if end > start {
			next = end
		}
		i := strings.IndexByte(text[next:], '{')
		if i < 0 {
			return "", false
		}
		start = next + i
	}
	return "", false
}

// scanObject scans from the brace at start until depth returns to zero.
// end is the index just past the balanced candidate, or -1 when the text ran
// out first.
func scanObject(text string, start int) (obj string, end int, ok bool) {
	return scanWith(text, start, true)
}

func scanWith(text string, start int, heredocs bool) (obj string, end int, ok bool) {
	s := &scanner{text: text, pos: start, heredocs: heredocs}
	for s.pos < len(text) {
		tok := s.next()
		t := step(s.state, tok.kind)
		s.state = t.next
		switch t.act {
		case actPush:
			s.depth++
		case actPop:
			s.depth--
		case actEnterHeredoc:
			s.term = tok.term
		case actLeaveHeredoc:
			s.term = ""
		}
		s.advance(tok)

		if t.act == actPop && s.depth == 0 {
			candidate := text[start:s.pos]
			if plan, found := planObject(candidate); found {
				return plan, s.pos, true
			}
			return "", s.pos, false
		}
	}
	return "", -1, false
}

// advance moves past tok and keeps track of whether the next byte begins a
// line, counting both real newlines and escaped "\n" sequences.
func (s *scanner) advance(tok token) {
	lexeme := s.text[s.pos : s.pos+tok.width]
	s.pos += tok.width
	switch {
	case lexeme == "\n" || lexeme == `\n`:
		s.lineStart = true
	case lexeme == " " || lexeme == "\t" || lexeme == "\r":
	default:
		s.lineStart = false
	}
}

func (s *scanner) next() token {
	rest := s.text[s.pos:]
	c := rest[0]
	switch s.state {
	case stateNormal:
		switch c {
		case '{':
			return token{kind: tokOpenBrace, width: 1}
		case '}':
			return token{kind: tokCloseBrace, width: 1}
		case '"':
			return token{kind: tokQuote, width: 1}
		}
	case stateInString:
		if s.heredocs {
			if term, n := heredocOpener(rest); n > 0 && hasTerminator(rest[n:], term) {
				return token{kind: tokHeredocOpen, width: n, term: term}
			}
		}
		switch c {
		case '\\':
			return token{kind: tokEscape, width: escapeWidth(rest)}
		case '"':
			return token{kind: tokQuote, width: 1}
		}
	case stateInHeredoc:
		if s.lineStart && c != ' ' && c != '\t' && matchesTerminator(rest, s.term) {
			return token{kind: tokHeredocClose, width: len(s.term)}
		}
		if c == '\\' {
			return token{kind: tokEscape, width: escapeWidth(rest)}
		}
	}
	return token{kind: tokOther, width: 1}
}

func escapeWidth(rest string) int {
	if len(rest) < 2 {
		return 1
	}
	return 2
}

var bashHeredocRe = regexp.MustCompile(`^<<-?[ \t]*(?:'([A-Za-z_][A-Za-z0-9_]*)'|\\"([A-Za-z_][A-Za-z0-9_]*)\\"|"([A-Za-z_][A-Za-z0-9_]*)"|([A-Za-z_][A-Za-z0-9_]*))`)

// heredocOpener reports the terminator and width of a heredoc marker at the
// start of rest. PowerShell here-strings must be followed by the end of the
// line, either a real newline or an escaped one.
func heredocOpener(rest string) (term string, width int) {
	switch {
	case strings.HasPrefix(rest, "@'"):
		term, width = "'@", 2
	case strings.HasPrefix(rest, `@\"`):
		term, width = `\"@`, 3
	case strings.HasPrefix(rest, `@"`):
		term, width = `"@`, 2
	case strings.HasPrefix(rest, "<<"):
		m := bashHeredocRe.FindStringSubmatch(rest)
		if m == nil {
			return "", 0
		}
		for _, g := range m[1:] {
			if g != "" {
				return g, len(m[0])
			}
		}
		return "", 0
	default:
		return "", 0
	}
	if !atLineEnd(rest[width:]) {
		return "", 0
	}
	return term, width
}

func atLineEnd(s string) bool {
	s = strings.TrimLeft(s, " \t")
	return strings.HasPrefix(s, "\n") || strings.HasPrefix(s, "\r\n") ||
		strings.HasPrefix(s, `\n`) || strings.HasPrefix(s, `\r\n`)
}

// hasTerminator reports whether term appears at the start of some later
// line. Markers that are never closed are treated as ordinary text.
func hasTerminator(rest, term string) bool {
	for _, sep := range []string{"\n", `\n`} {
		lines := strings.Split(rest, sep)
		for _, line := range lines[1:] {
			if matchesTerminator(strings.TrimLeft(line, " \t"), term) {
				return true
			}
		}
	}
	return false
}

// matchesTerminator reports whether s starts with term. A word terminator
// must not run on into more word characters.
func matchesTerminator(s, term string) bool {
	if term == "" || !strings.HasPrefix(s, term) {
		return false
	}
	if !isWordByte(term[len(term)-1]) || len(s) == len(term) {
		return true
	}
	return !isWordByte(s[len(term)])
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// planObject checks a balanced candidate. A {"intent": ..., "details": {...}}
// envelope yields its details object.
func planObject(candidate string) (string, bool) {
	if !gjson.Valid(candidate) {
		return "", false
	}
	if hasPlanKeys(gjson.Parse(candidate)) {
		return candidate, true
	}
	details := gjson.Get(candidate, "details")
	if details.IsObject() && hasPlanKeys(details) {
		return details.Raw, true
	}
	return "", false
}

func hasPlanKeys(v gjson.Result) bool {
	return v.Get("version").Exists() && v.Get("steps").Exists()
}
