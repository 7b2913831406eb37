package plan

// SupportedVersion is the only plan version accepted by Validate.
const SupportedVersion = "1.0"

// Plan is the versioned wire shape a model returns. Saved plans use the same
// field names in YAML.
type Plan struct {
	Version     string `json:"version" yaml:"version"`
	Steps       []Step `json:"steps" yaml:"steps"`
	Explanation string `json:"explanation" yaml:"explanation"`
}

// Step is a single shell operation. Optional string fields are empty when
// absent or null.
type Step struct {
	Command              string `json:"command" yaml:"command"`
	Explanation          string `json:"explanation" yaml:"explanation"`
	IsDangerous          bool   `json:"is_dangerous" yaml:"is_dangerous"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty" yaml:"requires_confirmation,omitempty"`
	DependentOn          string `json:"dependent_on,omitempty" yaml:"dependent_on,omitempty"`
	Provides             string `json:"provides,omitempty" yaml:"provides,omitempty"`
	ValidateOutput       string `json:"validate_output,omitempty" yaml:"validate_output,omitempty"` // regexp matched against stdout
	EstimatedImpact      Impact `json:"estimated_impact" yaml:"estimated_impact"`
	RollbackCommand      string `json:"rollback_command,omitempty" yaml:"rollback_command,omitempty"`
}

// Impact is a step's resource estimate. Sizes are megabytes.
type Impact struct {
	CPUPercentage   float64 `json:"cpu_percentage" yaml:"cpu_percentage"`
	MemoryMB        float64 `json:"memory_mb" yaml:"memory_mb"`
	DiskMB          float64 `json:"disk_mb" yaml:"disk_mb"`
	NetworkMB       float64 `json:"network_mb" yaml:"network_mb"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
}
