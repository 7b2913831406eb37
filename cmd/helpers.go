package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/history"
	"github.com/stevehiehn/spren/internal/plan"
	"github.com/stevehiehn/spren/internal/planner"
	"github.com/stevehiehn/spren/internal/provider"
	"github.com/stevehiehn/spren/internal/shell"
)

func profile() (shell.Profile, error) {
	return shell.Parse(cfg.Shell.Profile)
}

// plannerFactory builds the planner used by run, mcp and failure diagnosis.
var plannerFactory = newPlanner

func newPlanner(p shell.Profile) (*planner.Planner, error) {
	client, err := provider.New(cfg.AI)
	if err != nil {
		return nil, err
	}
	return planner.New(client, p,
		planner.WithModel(cfg.AI.ModelName()),
		planner.WithMaxTokens(cfg.AI.MaxTokens),
		planner.WithTimeout(cfg.AI.Timeout),
		planner.WithRetry(cfg.Retry),
		planner.WithDangerousPatterns(cfg.Security.DangerousCommands),
		planner.WithLogger(logger),
	), nil
}

// readPlan reads a plan file, or stdin when path is "-". The content may be
// JSON, YAML or a model reply with a plan inside.
func readPlan(path string, stdin io.Reader) (*plan.Plan, error) {
	var (
		p   *plan.Plan
		err error
	)
	if path == "-" {
		data, rerr := io.ReadAll(stdin)
		if rerr != nil {
			return nil, fmt.Errorf("reading stdin: %w", rerr)
		}
		p, err = plan.Load(data)
	} else {
		p, err = plan.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func interpret(p *plan.Plan, prof shell.Profile) (*chain.CommandChain, error) {
	return chain.Interpret(p, prof, chain.Options{DangerousPatterns: cfg.Security.DangerousCommands})
}

func openHistory() (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
