package runner

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stevehiehn/spren/internal/shell"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
}

func TestRunEchoHello(t *testing.T) {
	skipOnWindows(t)
	r := Run("echo hello", "")
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if strings.TrimSpace(r.Stdout) != "hello" {
		t.Errorf("expected stdout 'hello', got %q", r.Stdout)
	}
}

func TestRunCaptureStderr(t *testing.T) {
	skipOnWindows(t)
	r := Run("echo error >&2", "")
	if r.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", r.ExitCode)
	}
	if strings.TrimSpace(r.Stderr) != "error" {
		t.Errorf("expected stderr 'error', got %q", r.Stderr)
	}
}

func TestRunNonZeroExitCode(t *testing.T) {
	skipOnWindows(t)
	r := Run("exit 42", "")
	if r.ExitCode != 42 {
		t.Errorf("expected exit code 42, got %d", r.ExitCode)
	}
	if r.Success() {
		t.Error("expected failure")
	}
	if r.Err != nil {
		t.Errorf("non-zero exit is not a launch failure: %v", r.Err)
	}
}

func TestRunInWorkDir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	r := Run("pwd", dir)
	if !r.Success() {
		t.Fatalf("pwd failed: %s", r.Stderr)
	}
	if !strings.HasSuffix(strings.TrimSpace(r.Stdout), dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("expected to run in %s, got %q", dir, r.Stdout)
	}
}

func TestRunReplacesInvalidUTF8(t *testing.T) {
	skipOnWindows(t)
	r := Run(`printf 'ok\377\n'`, "")
	if !r.Success() {
		t.Fatalf("printf failed: %s", r.Stderr)
	}
	if !strings.Contains(r.Stdout, "ok�") {
		t.Errorf("expected replacement character, got %q", r.Stdout)
	}
}

func TestRunLaunchFailure(t *testing.T) {
	r := Shell{Profile: shell.Profile(99)}.Run(context.Background(), "true", "/nonexistent-dir-for-spren")
	if r.Err == nil {
		t.Fatal("expected launch failure for missing work dir")
	}
	if r.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", r.ExitCode)
	}
}

func TestCommandUsesProfileInvocation(t *testing.T) {
	cmd := Shell{Profile: shell.PowerShell}.Command(context.Background(), "Write-Output 'x'", "")
	got := strings.Join(cmd.Args, " ")
	want := "powershell -NoProfile -NonInteractive -Command Invoke-Expression 'Write-Output ''x'''"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
