// Package chain holds the executable form of a plan: steps with their safety
// flags, data-flow names and rollback commands, already normalised for the
// active shell.
package chain

import "time"

// CommandChain is an ordered, non-empty list of steps plus the variables
// produced while it runs.
type CommandChain struct {
	Steps       []CommandStep     `json:"steps"`
	Explanation string            `json:"explanation"`
	TotalImpact ResourceImpact    `json:"total_impact"`
	Context     map[string]string `json:"context"`
}

// CommandStep is one unit of work. Empty optional fields mean "none".
type CommandStep struct {
	Command              string         `json:"command"`
	Description          string         `json:"description"`
	Dangerous            bool           `json:"dangerous"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	DependentOn          string         `json:"dependent_on,omitempty"`
	Provides             string         `json:"provides,omitempty"`
	ValidateOutput       string         `json:"validate_output,omitempty"`
	Impact               ResourceImpact `json:"impact"`
	RollbackCommand      string         `json:"rollback_command,omitempty"`
}

// NeedsConfirmation reports whether the step must pass the confirmation gate.
func (s CommandStep) NeedsConfirmation() bool {
	return s.Dangerous || s.RequiresConfirmation
}

// ResourceImpact is an estimate for display only. Sizes are megabytes.
type ResourceImpact struct {
	CPUUsage          float64       `json:"cpu_usage"`
	MemoryMB          float64       `json:"memory_mb"`
	DiskMB            float64       `json:"disk_mb"`
	NetworkMB         float64       `json:"network_mb"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Add returns the field-wise sum.
func (r ResourceImpact) Add(o ResourceImpact) ResourceImpact {
	return ResourceImpact{
		CPUUsage:          r.CPUUsage + o.CPUUsage,
		MemoryMB:          r.MemoryMB + o.MemoryMB,
		DiskMB:            r.DiskMB + o.DiskMB,
		NetworkMB:         r.NetworkMB + o.NetworkMB,
		EstimatedDuration: r.EstimatedDuration + o.EstimatedDuration,
	}
}

// TotalImpact sums the impact of every step.
func TotalImpact(steps []CommandStep) ResourceImpact {
	var total ResourceImpact
	for _, s := range steps {
		total = total.Add(s.Impact)
	}
	return total
}
