package template

import (
	"fmt"
	"regexp"
)

var varRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Refs returns the variable names referenced as ${name} in s, in order of
// first appearance.
func Refs(s string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range varRefRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Resolve replaces every ${name} in s whose name is present in vars. Tokens
// for unknown names are left untouched, since they are usually shell
// variables. Each name in required must be present in vars.
func Resolve(s string, vars map[string]string, required ...string) (string, error) {
	for _, name := range required {
		if name == "" {
			continue
		}
		if _, ok := vars[name]; !ok {
			return "", fmt.Errorf("unresolved variable %q", name)
		}
	}

	return varRefRe.ReplaceAllStringFunc(s, func(match string) string {
		name := varRefRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	}), nil
}
