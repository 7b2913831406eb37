package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/shell"
	"github.com/stevehiehn/spren/internal/template"
)

// Preview renders the plan and its aggregate impact. It has no side effects
// and may be called in any state.
func (e *Executor) Preview() string {
	return Preview(e.chain, e.profile)
}

// Preview renders c for display without an executor.
func Preview(c *chain.CommandChain, profile shell.Profile) string {
	var b strings.Builder
	if c.Explanation != "" {
		fmt.Fprintf(&b, "Plan: %s\n", c.Explanation)
	}
	fmt.Fprintf(&b, "Shell: %s\n\n", profile.Name())

	for i, s := range c.Steps {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, s.Description)
		fmt.Fprintf(&b, "    $ %s\n", s.Command)

		var tags []string
		if s.Dangerous {
			tags = append(tags, "DANGEROUS")
		}
		if s.RequiresConfirmation {
			tags = append(tags, "confirm")
		}
		if s.DependentOn != "" {
			tags = append(tags, "needs ${"+s.DependentOn+"}")
		}
		if s.Provides != "" {
			tags = append(tags, "provides ${"+s.Provides+"}")
		}
		if s.ValidateOutput != "" {
			tags = append(tags, fmt.Sprintf("expects /%s/", s.ValidateOutput))
		}
		if len(tags) > 0 {
			fmt.Fprintf(&b, "    [%s]\n", strings.Join(tags, ", "))
		}
		if s.RollbackCommand != "" {
			fmt.Fprintf(&b, "    rollback: %s\n", s.RollbackCommand)
		}
		fmt.Fprintf(&b, "    impact: %s\n", FormatImpact(s.Impact))
	}

	fmt.Fprintf(&b, "\nTotal impact: %s\n", FormatImpact(c.TotalImpact))
	return b.String()
}

// FormatImpact renders a resource estimate on one line.
func FormatImpact(r chain.ResourceImpact) string {
	return fmt.Sprintf("cpu %.0f%% | memory %.1f MB | disk %.1f MB | network %.1f MB | ~%s",
		r.CPUUsage, r.MemoryMB, r.DiskMB, r.NetworkMB, r.EstimatedDuration.Round(100*time.Millisecond))
}

// Invocation is the exact process a step would launch.
type Invocation struct {
	Step    int      `json:"step"`
	Command string   `json:"command"`
	Argv    []string `json:"argv"`
}

// Invocations lists the process each step of c would launch under profile.
// Variables already in the context are substituted; the rest stay as
// ${name} placeholders.
func Invocations(c *chain.CommandChain, profile shell.Profile) []Invocation {
	bin, flags := profile.Invocation()
	out := make([]Invocation, 0, len(c.Steps))
	for i, s := range c.Steps {
		cmd, _ := template.Resolve(s.Command, c.Context)
		argv := append([]string{bin}, flags...)
		argv = append(argv, profile.Format(cmd))
		out = append(out, Invocation{Step: i + 1, Command: cmd, Argv: argv})
	}
	return out
}
