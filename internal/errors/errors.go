package errors

import (
	stderrors "errors"
	"fmt"
)

// Error type constants
const (
	ExtractionError   = "EXTRACTION_ERROR"
	ValidationError   = "VALIDATION_ERROR"
	DependencyError   = "DEPENDENCY_ERROR"
	UserDeclined      = "USER_DECLINED"
	StepFailed        = "STEP_FAILED"
	RollbackFailed    = "ROLLBACK_FAILED"
	NetworkError      = "NETWORK_ERROR"
	RateLimited       = "RATE_LIMIT"
	AuthError         = "AUTH_ERROR"
	MalformedResponse = "MALFORMED_RESPONSE"
	APIError          = "API_ERROR"
	InvalidState      = "INVALID_STATE"
)

// RunError is a structured error for plan extraction, validation and execution.
// Step is the 1-based step number, 0 when the error is not tied to a step.
type RunError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Step      int    `json:"step,omitempty"`
	Retryable bool   `json:"retryable"`
	Hint      string `json:"hint,omitempty"`
	Err       error  `json:"-"`
}

func (e *RunError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("[%s] step %d: %s", e.Type, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// As returns the first RunError in err's chain.
func As(err error) (*RunError, bool) {
	var re *RunError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Is reports whether err carries a RunError of the given type.
func Is(err error, typ string) bool {
	re, ok := As(err)
	return ok && re.Type == typ
}

// IsRetryable reports whether err is a RunError marked retryable.
func IsRetryable(err error) bool {
	re, ok := As(err)
	return ok && re.Retryable
}

// NewExtractionError reports that no plan object could be recovered from text.
// Only a bounded prefix of the text is kept in the message.
func NewExtractionError(msg, text string) *RunError {
	return &RunError{
		Type:      ExtractionError,
		Message:   fmt.Sprintf("%s. Response text: %s", msg, Truncate(text, 200)),
		Retryable: true,
		Hint:      "Try rephrasing the request",
	}
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewDependencyError(step int, name string) *RunError {
	return &RunError{
		Type:    DependencyError,
		Step:    step,
		Message: fmt.Sprintf("missing dependency %q", name),
		Hint:    fmt.Sprintf("An earlier step must provide %q before this step runs", name),
	}
}

func NewDeclinedError(step int) *RunError {
	return &RunError{
		Type:    UserDeclined,
		Step:    step,
		Message: "skipped by user",
		Hint:    "Skip the step explicitly to continue with the rest of the chain",
	}
}

func NewStepError(step int, msg string, err error) *RunError {
	return &RunError{Type: StepFailed, Step: step, Message: msg, Err: err, Hint: "Run rollback to undo completed steps"}
}

func NewRollbackError(step int, msg string, err error) *RunError {
	return &RunError{
		Type:    RollbackFailed,
		Step:    step,
		Message: msg,
		Err:     err,
		Hint:    "Steps before this one were not rolled back",
	}
}

func NewStateError(msg string) *RunError {
	return &RunError{Type: InvalidState, Message: msg}
}

// NewRequestError builds a model-request failure. Network, rate-limit and
// malformed-response failures are retryable; the rest are fatal.
func NewRequestError(typ, msg string, err error) *RunError {
	re := &RunError{Type: typ, Message: msg, Err: err}
	switch typ {
	case NetworkError, RateLimited, MalformedResponse:
		re.Retryable = true
	case AuthError:
		re.Hint = "Check the API key in the config file or environment"
	}
	return re
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
