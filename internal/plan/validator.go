package plan

import (
	"fmt"
	"regexp"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

var varNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the version and the structure of a decoded plan. The first
// violation is returned as a VALIDATION_ERROR naming the offending field.
func Validate(p *Plan) error {
	if p.Version != SupportedVersion {
		return sprenerrors.NewValidationError(
			fmt.Sprintf("unsupported version %q", p.Version),
			fmt.Sprintf("Only version %q is accepted", SupportedVersion),
		)
	}
	if len(p.Steps) == 0 {
		return sprenerrors.NewValidationError("steps: plan has no steps", "")
	}

	for i, s := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if s.Command == "" {
			return sprenerrors.NewValidationError(field+".command is empty", "")
		}
		if s.Explanation == "" {
			return sprenerrors.NewValidationError(field+".explanation is empty", "")
		}
		if err := validateImpact(field+".estimated_impact", s.EstimatedImpact); err != nil {
			return err
		}
		if s.DependentOn != "" && !varNameRe.MatchString(s.DependentOn) {
			return sprenerrors.NewValidationError(
				fmt.Sprintf("%s.dependent_on: invalid variable name %q", field, s.DependentOn),
				"Variable names use letters, digits and underscores",
			)
		}
		if s.Provides != "" && !varNameRe.MatchString(s.Provides) {
			return sprenerrors.NewValidationError(
				fmt.Sprintf("%s.provides: invalid variable name %q", field, s.Provides),
				"Variable names use letters, digits and underscores",
			)
		}
		if s.ValidateOutput != "" {
			if _, err := regexp.Compile(s.ValidateOutput); err != nil {
				return sprenerrors.NewValidationError(
					fmt.Sprintf("%s.validate_output: %v", field, err), "",
				)
			}
		}
	}
	return nil
}

func validateImpact(field string, im Impact) error {
	checks := []struct {
		name string
		v    float64
	}{
		{"cpu_percentage", im.CPUPercentage},
		{"memory_mb", im.MemoryMB},
		{"disk_mb", im.DiskMB},
		{"network_mb", im.NetworkMB},
		{"duration_seconds", im.DurationSeconds},
	}
	for _, c := range checks {
		if c.v < 0 {
			return sprenerrors.NewValidationError(
				fmt.Sprintf("%s.%s must be non-negative, got %g", field, c.name, c.v), "",
			)
		}
	}
	if im.CPUPercentage > 100 {
		return sprenerrors.NewValidationError(
			fmt.Sprintf("%s.cpu_percentage must be at most 100, got %g", field, im.CPUPercentage), "",
		)
	}
	return nil
}
