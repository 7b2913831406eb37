package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/artifact"
	"github.com/stevehiehn/spren/internal/confirm"
	"github.com/stevehiehn/spren/internal/runner"
)

// Runner launches one command and waits for it. runner.Shell is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, command, workDir string) *runner.Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, command, workDir string) *runner.Result

func (f RunnerFunc) Run(ctx context.Context, command, workDir string) *runner.Result {
	return f(ctx, command, workDir)
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner replaces the process runner. Defaults to the profile's shell.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithConfirmer sets the confirmation channel. Without one, every step that
// needs confirmation is declined.
func WithConfirmer(c confirm.Confirmer) Option {
	return func(e *Executor) { e.confirmer = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkDir sets the directory steps start in. A "cd" step changes it.
func WithWorkDir(dir string) Option {
	return func(e *Executor) { e.workDir = dir }
}

// WithDangerousPatterns adds substrings checked against each command after
// variable resolution.
func WithDangerousPatterns(patterns []string) Option {
	return func(e *Executor) { e.patterns = patterns }
}

// WithArtifacts stores each step's output under the run directory.
func WithArtifacts(s *artifact.Store) Option {
	return func(e *Executor) { e.store = s }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(e *Executor) { e.runID = id }
}
