package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/stevehiehn/spren/internal/shell"
)

// Result holds the output of one process launch.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error // launch failure; ExitCode is -1
}

// Success reports a clean exit.
func (r *Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Shell runs commands through a profile's interpreter.
type Shell struct {
	Profile shell.Profile
}

// Command builds the process for command without starting it.
func (s Shell) Command(ctx context.Context, command, workDir string) *exec.Cmd {
	bin, args := s.Profile.Invocation()
	args = append(append([]string{}, args...), s.Profile.Format(command))
	cmd := exec.CommandContext(ctx, bin, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd
}

// Run executes command and captures stdout/stderr in full. It blocks until
// the child exits.
func (s Shell) Run(ctx context.Context, command, workDir string) *Result {
	cmd := s.Command(ctx, command, workDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: lossy(stdout.Bytes()),
		Stderr: lossy(stderr.Bytes()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Err = err
		}
	}
	return res
}

// Run executes command with the POSIX profile.
func Run(command, workDir string) *Result {
	return Shell{Profile: shell.Posix}.Run(context.Background(), command, workDir)
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
