package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesRunDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "runs")
	store, err := New(root, "run-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.BaseDir != filepath.Join(root, "run-123") {
		t.Errorf("unexpected base dir %q", store.BaseDir)
	}
	info, err := os.Stat(filepath.Join(store.BaseDir, "steps"))
	if err != nil {
		t.Fatalf("steps dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected steps to be a directory")
	}
}

func TestWriteStepOutput(t *testing.T) {
	store, _ := New(t.TempDir(), "run-456")

	if err := store.WriteStepOutput("1", "out-data", "err-data"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stdout, _ := os.ReadFile(filepath.Join(store.BaseDir, "steps", "1.stdout"))
	if string(stdout) != "out-data" {
		t.Errorf("expected stdout 'out-data', got %q", string(stdout))
	}
	stderr, _ := os.ReadFile(filepath.Join(store.BaseDir, "steps", "1.stderr"))
	if string(stderr) != "err-data" {
		t.Errorf("expected stderr 'err-data', got %q", string(stderr))
	}
}

func TestWriteStepOutputSkipsEmptyStreams(t *testing.T) {
	store, _ := New(t.TempDir(), "run-empty")
	if err := store.WriteStepOutput("2.rollback", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BaseDir, "steps", "2.rollback.stdout")); !os.IsNotExist(err) {
		t.Errorf("expected no stdout file, stat err = %v", err)
	}
}

func TestWritePlanAndResult(t *testing.T) {
	store, _ := New(t.TempDir(), "run-789")

	if err := store.WritePlan(map[string]string{"version": "1.0"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.WriteResult(map[string]string{"status": "complete"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for file, key := range map[string]string{"plan.json": "version", "result.json": "status"} {
		data, err := os.ReadFile(filepath.Join(store.BaseDir, file))
		if err != nil {
			t.Fatalf("reading %s: %v", file, err)
		}
		var obj map[string]string
		if err := json.Unmarshal(data, &obj); err != nil {
			t.Fatalf("decoding %s: %v", file, err)
		}
		if obj[key] == "" {
			t.Errorf("%s: missing %q", file, key)
		}
	}
}

func TestWriteResultRejectsUnencodable(t *testing.T) {
	store, _ := New(t.TempDir(), "run-bad")
	if err := store.WriteResult(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected encoding error")
	}
}
