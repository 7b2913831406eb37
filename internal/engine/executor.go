package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/artifact"
	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/confirm"
	sprenerrors "github.com/stevehiehn/spren/internal/errors"
	"github.com/stevehiehn/spren/internal/runner"
	"github.com/stevehiehn/spren/internal/shell"
	"github.com/stevehiehn/spren/internal/template"
)

// Status is the executor's position in its lifecycle.
type Status int

const (
	NotStarted Status = iota
	Running
	Paused
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "not_started"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Executor runs a chain one step at a time. It owns the chain, its cursor
// and its context; it is not safe for concurrent use.
type Executor struct {
	chain     *chain.CommandChain
	profile   shell.Profile
	runner    Runner
	confirmer confirm.Confirmer
	logger    *zap.Logger
	store     *artifact.Store
	workDir   string
	patterns  []string
	runID     string

	status   Status
	cursor   int
	failed   int
	started  time.Time
	finished time.Time
	records  []Record
}

// New returns an executor for c. The chain's context map is created if nil.
func New(c *chain.CommandChain, profile shell.Profile, opts ...Option) *Executor {
	e := &Executor{
		chain:   c,
		profile: profile,
		failed:  -1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = runner.Shell{Profile: profile}
	}
	if e.confirmer == nil {
		e.confirmer = confirm.Policy(false)
	}
	if e.runID == "" {
		e.runID = uuid.New().String()
	}
	if c.Context == nil {
		c.Context = map[string]string{}
	}
	return e
}

// ExecuteNext runs the step under the cursor. It returns nil, nil once every
// step has run.
//
// Nothing is launched when the step's dependency is missing, the
// confirmation channel declines or ctx is done; in those cases the cursor,
// the context and the status are left as they were. ctx is only checked
// before launch: a step that has started always runs to completion.
func (e *Executor) ExecuteNext(ctx context.Context) (*Record, error) {
	switch e.status {
	case Failed:
		return nil, sprenerrors.NewStateError("chain has failed; roll back before running further steps")
	case Complete:
		return nil, nil
	}
	if e.cursor >= len(e.chain.Steps) {
		e.finish(Complete)
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.started.IsZero() {
		e.started = time.Now()
	}

	idx := e.cursor
	n := idx + 1
	step := e.chain.Steps[idx]

	command, err := template.Resolve(step.Command, e.chain.Context, step.DependentOn)
	if err != nil {
		return nil, sprenerrors.NewDependencyError(n, step.DependentOn)
	}

	if step.NeedsConfirmation() || e.profile.IsDangerous(command, e.patterns) {
		ok, err := e.confirmer.Confirm(ctx, confirm.Request{
			Step:        n,
			Total:       len(e.chain.Steps),
			Command:     command,
			Description: step.Description,
			Dangerous:   step.Dangerous || e.profile.IsDangerous(command, e.patterns),
		})
		if err != nil {
			return nil, fmt.Errorf("confirming step %d: %w", n, err)
		}
		if !ok {
			e.logger.Info("step declined", zap.Int("step", n), zap.String("command", command))
			return nil, sprenerrors.NewDeclinedError(n)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	e.status = Running
	rec := e.run(ctx, n, command, false)
	if !rec.Success {
		e.fail(idx)
		return rec, sprenerrors.NewStepError(n, failureMessage(rec), rec.err)
	}

	if step.ValidateOutput != "" {
		re, err := regexp.Compile(step.ValidateOutput)
		if err != nil || !re.MatchString(rec.Stdout) {
			rec.Success = false
			e.records[len(e.records)-1].Success = false
			e.fail(idx)
			return rec, sprenerrors.NewStepError(n, fmt.Sprintf("output did not match %q", step.ValidateOutput), err)
		}
	}

	if step.Provides != "" {
		value := RepresentativeValue(rec.Stdout)
		e.chain.Context[step.Provides] = value
		e.logger.Debug("context updated", zap.String("name", step.Provides), zap.String("value", value))
	}

	e.cursor++
	if e.cursor == len(e.chain.Steps) {
		e.finish(Complete)
	}
	return rec, nil
}

// ExecuteAll runs steps until the chain completes or a step returns an
// error. Records of the steps that ran are returned either way.
func (e *Executor) ExecuteAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	for {
		rec, err := e.ExecuteNext(ctx)
		if rec != nil {
			recs = append(recs, *rec)
		}
		if err != nil {
			return recs, err
		}
		if rec == nil {
			return recs, nil
		}
	}
}

// Rollback walks the cursor back to the first step, running each declared
// rollback command on the way. Steps at or after the cursor never ran and
// are not rolled back. The first rollback failure stops the walk and leaves
// the executor Failed with the cursor on the step that could not be undone.
func (e *Executor) Rollback(ctx context.Context) ([]Record, error) {
	var recs []Record
	for e.cursor > 0 {
		idx := e.cursor - 1
		step := e.chain.Steps[idx]
		if step.RollbackCommand != "" {
			command, _ := template.Resolve(step.RollbackCommand, e.chain.Context)
			rec := e.run(ctx, idx+1, command, true)
			recs = append(recs, *rec)
			if !rec.Success {
				e.status = Failed
				if e.failed < 0 {
					e.failed = idx
				}
				e.logger.Warn("rollback stopped", zap.Int("step", idx+1))
				return recs, sprenerrors.NewRollbackError(idx+1, "rollback "+failureMessage(rec), rec.err)
			}
		}
		e.cursor--
	}

	e.status = NotStarted
	e.failed = -1
	e.started, e.finished = time.Time{}, time.Time{}
	e.logger.Info("rollback complete", zap.Int("rolled_back", len(recs)))
	return recs, nil
}

// Pause moves a running chain to Paused. Other states are unchanged.
func (e *Executor) Pause() {
	if e.status == Running {
		e.status = Paused
	}
}

// Resume moves a paused chain back to Running. Other states are unchanged.
func (e *Executor) Resume() {
	if e.status == Paused {
		e.status = Running
	}
}

// SkipStep advances the cursor without running the step.
func (e *Executor) SkipStep() error {
	if e.status == Failed {
		return sprenerrors.NewStateError("chain has failed; roll back before skipping")
	}
	if e.cursor >= len(e.chain.Steps) {
		return sprenerrors.NewStateError("no step left to skip")
	}
	e.logger.Info("step skipped", zap.Int("step", e.cursor+1))
	e.cursor++
	if e.cursor == len(e.chain.Steps) {
		e.finish(Complete)
	}
	return nil
}

func (e *Executor) Status() Status { return e.status }

// Progress returns the number of steps behind the cursor and the total.
func (e *Executor) Progress() (done, total int) {
	return e.cursor, len(e.chain.Steps)
}

// Elapsed is the time since the first step started, frozen once the chain
// completes or fails.
func (e *Executor) Elapsed() time.Duration {
	switch {
	case e.started.IsZero():
		return 0
	case !e.finished.IsZero():
		return e.finished.Sub(e.started)
	default:
		return time.Since(e.started)
	}
}

// CurrentStep returns the 0-based index of the next step to run.
func (e *Executor) CurrentStep() int { return e.cursor }

// FailedStep returns the 0-based index of the step that failed.
func (e *Executor) FailedStep() (int, bool) {
	return e.failed, e.failed >= 0
}

// Context returns the variables produced so far. The map is owned by the
// executor; callers must not modify it.
func (e *Executor) Context() map[string]string { return e.chain.Context }

// WorkDir is the directory the next step runs in.
func (e *Executor) WorkDir() string { return e.workDir }

func (e *Executor) RunID() string { return e.runID }

func (e *Executor) Chain() *chain.CommandChain { return e.chain }

// Records returns every step and rollback record produced so far.
func (e *Executor) Records() []Record { return e.records }

func (e *Executor) fail(idx int) {
	e.failed = idx
	e.finish(Failed)
}

func (e *Executor) finish(s Status) {
	e.status = s
	if !e.started.IsZero() {
		e.finished = time.Now()
	}
}

// run launches one command, or changes directory in-process for a bare cd.
func (e *Executor) run(ctx context.Context, n int, command string, rollback bool) *Record {
	log := e.logger.With(zap.Int("step", n), zap.Bool("rollback", rollback))
	log.Debug("running", zap.String("command", command), zap.String("dir", e.workDir))

	start := time.Now()
	var res *runner.Result
	if dir, ok := cdTarget(command); ok {
		res = e.changeDir(dir)
	} else {
		res = e.runner.Run(context.WithoutCancel(ctx), command, e.workDir)
	}

	rec := &Record{
		Step:     n,
		Command:  command,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Success:  res.Success(),
		Duration: time.Since(start),
		Rollback: rollback,
		err:      res.Err,
	}
	e.records = append(e.records, *rec)

	if e.store != nil {
		if err := e.store.WriteStepOutput(rec.artifactName(), rec.Stdout, rec.Stderr); err != nil {
			log.Warn("writing step artifacts", zap.Error(err))
		}
	}

	if rec.Success {
		log.Info("step finished", zap.Duration("duration", rec.Duration))
	} else {
		log.Warn("step failed", zap.Int("exit_code", rec.ExitCode), zap.String("stderr", sprenerrors.Truncate(rec.Stderr, 200)))
	}
	return rec
}

var cdRe = regexp.MustCompile(`^cd(?:\s+/d)?\s+(.+)$`)

// cdTarget recognises a step that only changes directory. A cd inside a
// compound command is left to the shell.
func cdTarget(command string) (string, bool) {
	command = strings.TrimSpace(command)
	if strings.ContainsAny(command, "&|;") {
		return "", false
	}
	m := cdRe.FindStringSubmatch(command)
	if m == nil {
		return "", false
	}
	dir := strings.TrimSpace(m[1])
	if len(dir) >= 2 && (dir[0] == '"' || dir[0] == '\'') && dir[len(dir)-1] == dir[0] {
		dir = dir[1 : len(dir)-1]
	}
	return dir, dir != ""
}

func (e *Executor) changeDir(dir string) *runner.Result {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	if !filepath.IsAbs(dir) {
		base := e.workDir
		if base == "" {
			base, _ = os.Getwd()
		}
		dir = filepath.Join(base, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &runner.Result{ExitCode: 1, Stderr: fmt.Sprintf("cd: %v\n", err)}
	}
	if !info.IsDir() {
		return &runner.Result{ExitCode: 1, Stderr: fmt.Sprintf("cd: %s: not a directory\n", dir)}
	}
	e.workDir = dir
	return &runner.Result{}
}

func failureMessage(rec *Record) string {
	if rec.err != nil {
		return fmt.Sprintf("could not start command: %v", rec.err)
	}
	msg := fmt.Sprintf("command exited with code %d", rec.ExitCode)
	if s := strings.TrimSpace(rec.Stderr); s != "" {
		msg += ": " + sprenerrors.Truncate(s, 200)
	}
	return msg
}
