package engine

import (
	"fmt"
	"time"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

// Record is the outcome of one step or rollback command. Step is 1-based.
type Record struct {
	Step     int           `json:"step"`
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Rollback bool          `json:"rollback,omitempty"`

	err error
}

func (r *Record) artifactName() string {
	if r.Rollback {
		return fmt.Sprintf("%d.rollback", r.Step)
	}
	return fmt.Sprintf("%d", r.Step)
}

// Result is the structured summary of a run, written as result.json and
// printed by --json.
type Result struct {
	RunID      string                 `json:"run_id"`
	Status     Status                 `json:"status"`
	Success    bool                   `json:"success"`
	Completed  int                    `json:"completed"`
	Total      int                    `json:"total"`
	FailedStep int                    `json:"failed_step,omitempty"`
	Elapsed    string                 `json:"elapsed"`
	WorkDir    string                 `json:"work_dir,omitempty"`
	Steps      []Record               `json:"steps"`
	Context    map[string]string      `json:"context,omitempty"`
	Artifacts  []string               `json:"artifacts,omitempty"`
	Errors     []sprenerrors.RunError `json:"errors,omitempty"`
	Diagnosis  string                 `json:"diagnosis,omitempty"`
}

// Result summarises the executor's current state. runErr, when it carries a
// RunError, is included in Errors.
func (e *Executor) Result(runErr error) *Result {
	done, total := e.Progress()
	r := &Result{
		RunID:     e.runID,
		Status:    e.status,
		Success:   e.status == Complete && runErr == nil,
		Completed: done,
		Total:     total,
		Elapsed:   e.Elapsed().Round(time.Millisecond).String(),
		WorkDir:   e.workDir,
		Steps:     e.records,
		Context:   e.chain.Context,
	}
	if idx, ok := e.FailedStep(); ok {
		r.FailedStep = idx + 1
	}
	if e.store != nil {
		r.Artifacts = []string{e.store.BaseDir}
	}
	if re, ok := sprenerrors.As(runErr); ok {
		r.Errors = append(r.Errors, *re)
	} else if runErr != nil {
		r.Errors = append(r.Errors, sprenerrors.RunError{Type: sprenerrors.StepFailed, Message: runErr.Error()})
	}
	return r
}
