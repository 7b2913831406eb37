package chain

import (
	"time"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
	"github.com/stevehiehn/spren/internal/plan"
	"github.com/stevehiehn/spren/internal/shell"
)

// Options tune interpretation.
type Options struct {
	// DangerousPatterns are extra lower-case substrings that mark a command
	// as dangerous on top of the profile's built-in list.
	DangerousPatterns []string
}

// Interpret converts a validated plan into a chain for profile. On the
// Windows console every command and rollback command is rewritten into
// native path syntax.
func Interpret(p *plan.Plan, profile shell.Profile, opts Options) (*CommandChain, error) {
	if len(p.Steps) == 0 {
		return nil, sprenerrors.NewValidationError("steps: plan has no steps", "")
	}

	c := &CommandChain{
		Steps:       make([]CommandStep, 0, len(p.Steps)),
		Explanation: p.Explanation,
		Context:     map[string]string{},
	}
	for _, s := range p.Steps {
		cmd, rollback := s.Command, s.RollbackCommand
		if profile == shell.WindowsConsole {
			cmd = NormalizeConsole(cmd)
			if rollback != "" {
				rollback = NormalizeConsole(rollback)
			}
		}
		c.Steps = append(c.Steps, CommandStep{
			Command:              cmd,
			Description:          s.Explanation,
			Dangerous:            s.IsDangerous || profile.IsDangerous(cmd, opts.DangerousPatterns),
			RequiresConfirmation: s.RequiresConfirmation,
			DependentOn:          s.DependentOn,
			Provides:             s.Provides,
			ValidateOutput:       s.ValidateOutput,
			Impact:               impactOf(s.EstimatedImpact),
			RollbackCommand:      rollback,
		})
	}
	c.TotalImpact = TotalImpact(c.Steps)
	return c, nil
}

func impactOf(im plan.Impact) ResourceImpact {
	return ResourceImpact{
		CPUUsage:          im.CPUPercentage,
		MemoryMB:          im.MemoryMB,
		DiskMB:            im.DiskMB,
		NetworkMB:         im.NetworkMB,
		EstimatedDuration: time.Duration(im.DurationSeconds * float64(time.Second)),
	}
}
