package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRoot is where run directories go, relative to the working directory.
const DefaultRoot = ".spren/runs"

// Store keeps the files of one run under <root>/<run_id>: the plan as
// received, each step's output and the final result.
type Store struct {
	RunID   string
	BaseDir string
}

// New creates the run directory.
func New(root, runID string) (*Store, error) {
	if root == "" {
		root = DefaultRoot
	}
	base := filepath.Join(root, runID)
	if err := os.MkdirAll(filepath.Join(base, "steps"), 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{RunID: runID, BaseDir: base}, nil
}

// WriteStepOutput writes steps/<name>.stdout and steps/<name>.stderr. Empty
// streams are skipped.
func (s *Store) WriteStepOutput(name, stdout, stderr string) error {
	if stdout != "" {
		if err := os.WriteFile(s.stepPath(name, "stdout"), []byte(stdout), 0o644); err != nil {
			return err
		}
	}
	if stderr != "" {
		if err := os.WriteFile(s.stepPath(name, "stderr"), []byte(stderr), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// WritePlan writes plan.json.
func (s *Store) WritePlan(p any) error {
	return s.writeJSON("plan.json", p)
}

// WriteResult writes result.json.
func (s *Store) WriteResult(result any) error {
	return s.writeJSON("result.json", result)
}

func (s *Store) stepPath(name, stream string) string {
	return filepath.Join(s.BaseDir, "steps", name+"."+stream)
}

func (s *Store) writeJSON(file string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", file, err)
	}
	return os.WriteFile(filepath.Join(s.BaseDir, file), data, 0o644)
}
