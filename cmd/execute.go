package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/artifact"
	"github.com/stevehiehn/spren/internal/confirm"
	"github.com/stevehiehn/spren/internal/engine"
	sprenerrors "github.com/stevehiehn/spren/internal/errors"
	"github.com/stevehiehn/spren/internal/history"
	"github.com/stevehiehn/spren/internal/plan"
	"github.com/stevehiehn/spren/internal/shell"
)

// errRunFailed is returned after a failed run has already been reported.
var errRunFailed = errors.New("run failed")

type execOptions struct {
	query    string
	rollback bool
}

// executePlan previews p, runs it step by step and reports the result.
func executePlan(cmd *cobra.Command, p *plan.Plan, prof shell.Profile, opts execOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	c, err := interpret(p, prof)
	if err != nil {
		return err
	}
	if cfg.Security.RequireConfirmation {
		for i := range c.Steps {
			c.Steps[i].RequiresConfirmation = true
		}
	}
	if !jsonOutput {
		fmt.Fprintln(out, engine.Preview(c, prof))
	}

	runID := uuid.NewString()
	engineOpts := []engine.Option{
		engine.WithRunID(runID),
		engine.WithWorkDir(workDir()),
		engine.WithConfirmer(confirmer(cmd)),
		engine.WithDangerousPatterns(cfg.Security.DangerousCommands),
		engine.WithLogger(logger),
	}
	var store *artifact.Store
	if cfg.Artifacts.Enabled {
		if store, err = artifact.New(cfg.Artifacts.Dir, runID); err != nil {
			return err
		}
		if err := store.WritePlan(p); err != nil {
			logger.Warn("writing plan artifact", zap.Error(err))
		}
		engineOpts = append(engineOpts, engine.WithArtifacts(store))
	}
	ex := engine.New(c, prof, engineOpts...)

	started := time.Now()
	recs, runErr := ex.ExecuteAll(ctx)
	var diagnosis string
	if sprenerrors.Is(runErr, sprenerrors.StepFailed) && len(recs) > 0 {
		diagnosis = diagnose(ctx, prof, recs[len(recs)-1])
	}
	if runErr != nil && opts.rollback && ex.Status() == engine.Failed {
		logger.Info("rolling back", zap.String("run_id", runID))
		if _, rbErr := ex.Rollback(ctx); rbErr != nil {
			runErr = rbErr
		}
	}

	result := ex.Result(runErr)
	result.Diagnosis = diagnosis
	if store != nil {
		if err := store.WriteResult(result); err != nil {
			logger.Warn("writing result artifact", zap.Error(err))
		}
	}
	recordHistory(context.WithoutCancel(ctx), history.Entry{
		RunID:      runID,
		Query:      opts.query,
		Shell:      prof.String(),
		Status:     result.Status.String(),
		Total:      result.Total,
		Completed:  result.Completed,
		FailedStep: result.FailedStep,
		Error:      errorText(runErr),
		StartedAt:  started,
		Duration:   ex.Elapsed(),
		WorkDir:    ex.WorkDir(),
	})

	if jsonOutput {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		printSummary(out, result)
	}
	if !result.Success {
		return errRunFailed
	}
	return nil
}

// diagnose asks the model to explain a failed step. It returns "" when
// diagnosis is off, no provider key is set or the request fails.
func diagnose(ctx context.Context, prof shell.Profile, rec engine.Record) string {
	if !cfg.AI.Diagnose || cfg.AI.APIKey() == "" || ctx.Err() != nil {
		return ""
	}
	pl, err := plannerFactory(prof)
	if err != nil {
		logger.Debug("diagnosis unavailable", zap.Error(err))
		return ""
	}
	text, err := pl.Diagnose(ctx, rec)
	if err != nil {
		logger.Warn("diagnosing failed step", zap.Int("step", rec.Step), zap.Error(err))
		return ""
	}
	return text
}

// confirmer prompts on an interactive stdin and otherwise answers with
// --yes.
func confirmer(cmd *cobra.Command) confirm.Confirmer {
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return confirm.Auto(f, cmd.ErrOrStderr(), assumeYes)
	}
	return confirm.Policy(assumeYes)
}

func recordHistory(ctx context.Context, e history.Entry) {
	if !cfg.History.Enabled {
		return
	}
	h, err := openHistory()
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer h.Close()
	if err := h.Record(ctx, e); err != nil {
		logger.Warn("recording history", zap.Error(err))
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printSummary(w io.Writer, r *engine.Result) {
	for _, rec := range r.Steps {
		label := fmt.Sprintf("[%d]", rec.Step)
		if rec.Rollback {
			label = fmt.Sprintf("[%d rollback]", rec.Step)
		}
		fmt.Fprintf(w, "%s $ %s\n", label, rec.Command)
		for _, line := range strings.Split(strings.TrimRight(rec.Stdout, "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
		if !rec.Success && rec.Stderr != "" {
			fmt.Fprintf(w, "    stderr: %s\n", sprenerrors.Truncate(strings.TrimSpace(rec.Stderr), 500))
		}
	}

	if r.Success {
		fmt.Fprintf(w, "\nCompleted %d/%d steps in %s.\n", r.Completed, r.Total, r.Elapsed)
	} else {
		fmt.Fprintf(w, "\nStopped after %d/%d steps (%s).\n", r.Completed, r.Total, r.Status)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  Error: %s\n", e.Error())
			if e.Hint != "" {
				fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
			}
		}
	}
	if r.Diagnosis != "" {
		fmt.Fprintf(w, "\nDiagnosis:\n%s\n", r.Diagnosis)
	}
	if len(r.Artifacts) > 0 {
		fmt.Fprintf(w, "Artifacts: %s\n", r.Artifacts[0])
	}
	fmt.Fprintf(w, "Run ID: %s\n", r.RunID)
}
