package planner

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevehiehn/spren/internal/engine"
	sprenerrors "github.com/stevehiehn/spren/internal/errors"
	"github.com/stevehiehn/spren/internal/provider"
	"github.com/stevehiehn/spren/internal/retry"
	"github.com/stevehiehn/spren/internal/shell"
)

const twoStep = `Sure! Here is the plan:

{"version": "1.0", "explanation": "make and inspect a dir",
 "steps": [
  {"command": "mkdir -p demo && echo id: demo", "explanation": "create dir", "provides": "id",
   "estimated_impact": {"disk_mb": 1}},
  {"command": "ls ${id}", "explanation": "list it", "dependent_on": "id"}
 ]}

Let me know if you need anything else.`

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestPlan(t *testing.T) {
	client := provider.NewStatic(twoStep)
	p := New(client, shell.Posix, WithModel("m"), WithMaxTokens(123), WithRetry(fastRetry()))

	c, err := p.Plan(context.Background(), "make a demo dir")
	require.NoError(t, err)
	require.Len(t, c.Steps, 2)
	assert.Equal(t, "id", c.Steps[0].Provides)
	assert.Equal(t, "id", c.Steps[1].DependentOn)
	assert.Equal(t, "make and inspect a dir", c.Explanation)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "m", reqs[0].Model)
	assert.Equal(t, 123, reqs[0].MaxTokens)
	assert.Contains(t, reqs[0].Prompt, "User request: make a demo dir")
	assert.Contains(t, reqs[0].System, "POSIX shell")
}

func TestPlanRetriesUnparseableReply(t *testing.T) {
	client := provider.NewStatic("I cannot produce JSON today.", twoStep)
	p := New(client, shell.Posix, WithRetry(fastRetry()))

	c, err := p.Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, c.Steps, 2)
	assert.Len(t, client.Requests(), 2)
}

func TestPlanRetriesTransientErrors(t *testing.T) {
	client := provider.NewStatic(
		sprenerrors.NewRequestError(sprenerrors.RateLimited, "slow down", nil),
		twoStep,
	)
	_, err := New(client, shell.Posix, WithRetry(fastRetry())).Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, client.Requests(), 2)
}

func TestPlanGivesUpAfterRetries(t *testing.T) {
	client := provider.NewStatic("no json")
	_, err := New(client, shell.Posix, WithRetry(fastRetry())).Plan(context.Background(), "q")
	assert.True(t, sprenerrors.Is(err, sprenerrors.ExtractionError))
	assert.Len(t, client.Requests(), 3)
}

func TestPlanDoesNotRetryFatalErrors(t *testing.T) {
	client := provider.NewStatic(sprenerrors.NewRequestError(sprenerrors.AuthError, "bad key", nil))
	_, err := New(client, shell.Posix, WithRetry(fastRetry())).Plan(context.Background(), "q")
	assert.True(t, sprenerrors.Is(err, sprenerrors.AuthError))
	assert.Len(t, client.Requests(), 1)
}

func TestPlanDoesNotRetryValidation(t *testing.T) {
	client := provider.NewStatic(`{"version": "2.0", "steps": [{"command": "ls", "explanation": "x"}]}`)
	_, err := New(client, shell.Posix, WithRetry(fastRetry())).Plan(context.Background(), "q")
	assert.True(t, sprenerrors.Is(err, sprenerrors.ValidationError))
	assert.Len(t, client.Requests(), 1)
}

func TestPlanTimesOutEachAttempt(t *testing.T) {
	var calls atomic.Int32
	slow := provider.ClientFunc(func(ctx context.Context, _ provider.Request) (string, error) {
		calls.Add(1)
		<-ctx.Done()
		return "", sprenerrors.NewRequestError(sprenerrors.NetworkError, "timed out", ctx.Err())
	})
	cfg := fastRetry()
	cfg.MaxRetries = 1

	_, err := New(slow, shell.Posix, WithRetry(cfg), WithTimeout(10*time.Millisecond)).
		Plan(context.Background(), "q")
	assert.True(t, sprenerrors.Is(err, sprenerrors.NetworkError))
	assert.EqualValues(t, 2, calls.Load())
}

func TestPlanConsoleNormalizesPaths(t *testing.T) {
	client := provider.NewStatic(`{"version": "1.0", "steps": [
	  {"command": "mkdir -p build/out", "explanation": "make dirs"}]}`)
	c, err := New(client, shell.WindowsConsole, WithRetry(fastRetry())).Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.NotContains(t, c.Steps[0].Command, "-p")
	assert.Contains(t, c.Steps[0].Command, `build\out`)
}

func TestPlanDangerousPatterns(t *testing.T) {
	client := provider.NewStatic(`{"version": "1.0", "steps": [
	  {"command": "terraform destroy", "explanation": "tear down"}]}`)
	c, err := New(client, shell.Posix, WithRetry(fastRetry()),
		WithDangerousPatterns([]string{"terraform destroy"})).Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, c.Steps[0].Dangerous)
}

func TestUserPromptPerShell(t *testing.T) {
	assert.Contains(t, UserPrompt("q", shell.PowerShell), "here-string")
	assert.Contains(t, UserPrompt("q", shell.PowerShell), `";"`)
	assert.Contains(t, UserPrompt("q", shell.Posix), "heredoc")
	assert.Contains(t, UserPrompt("q", shell.WindowsConsole), "Command Prompt")
	assert.Contains(t, SystemPrompt(shell.PowerShell), "PowerShell")
}

func TestDiagnose(t *testing.T) {
	client := provider.NewStatic(
		sprenerrors.NewRequestError(sprenerrors.NetworkError, "reset", nil),
		"\n1. Problem: notes.txt does not exist\n",
	)
	p := New(client, shell.Posix, WithModel("m"), WithRetry(fastRetry()))

	text, err := p.Diagnose(context.Background(), engine.Record{
		Step:     2,
		Command:  "cat notes.txt",
		Stderr:   "cat: notes.txt: No such file or directory\n",
		ExitCode: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "1. Problem: notes.txt does not exist", text)

	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "m", reqs[1].Model)
	assert.Contains(t, reqs[1].Prompt, "Command: cat notes.txt")
	assert.Contains(t, reqs[1].Prompt, "No such file or directory")
	assert.NotContains(t, reqs[1].System, "JSON")
}

func TestDiagnoseFatalError(t *testing.T) {
	client := provider.NewStatic(sprenerrors.NewRequestError(sprenerrors.AuthError, "bad key", nil))
	_, err := New(client, shell.Posix, WithRetry(fastRetry())).
		Diagnose(context.Background(), engine.Record{Command: "false", ExitCode: 1})
	assert.True(t, sprenerrors.Is(err, sprenerrors.AuthError))
	assert.Len(t, client.Requests(), 1)
}

func TestDiagnosisPromptTruncatesOutput(t *testing.T) {
	long := strings.Repeat("x", outputLimit+100)
	prompt := DiagnosisPrompt("make", long, "", shell.Posix)
	assert.Contains(t, prompt, strings.Repeat("x", outputLimit)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", outputLimit+1))
}
