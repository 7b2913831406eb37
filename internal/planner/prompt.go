package planner

import (
	"fmt"
	"strings"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
	"github.com/stevehiehn/spren/internal/shell"
)

// SystemPrompt frames the model as a planner for profile's shell.
func SystemPrompt(profile shell.Profile) string {
	return fmt.Sprintf("You are Spren, an expert in creating %s command sequences. "+
		"Break tasks into small, safe steps. Prioritize safety and best practices. "+
		"Respond with a single JSON object and nothing else.", profile.Name())
}

// UserPrompt wraps query with the plan wire format and shell-specific rules.
func UserPrompt(query string, profile shell.Profile) string {
	var b strings.Builder
	b.WriteString(`Return a JSON plan in exactly this format:
{
  "version": "1.0",
  "explanation": "what the whole plan does",
  "steps": [
    {
      "command": "string",
      "explanation": "string",
      "is_dangerous": false,
      "requires_confirmation": false,
      "dependent_on": "variable name this step reads as ${name}, or omit",
      "provides": "variable name this step's output defines, or omit",
      "validate_output": "regular expression the output must match, or omit",
      "estimated_impact": {
        "cpu_percentage": 0,
        "memory_mb": 0,
        "disk_mb": 0,
        "network_mb": 0,
        "duration_seconds": 0
      },
      "rollback_command": "command that undoes this step, or omit"
    }
  ]
}

Rules:
- Mark any command that deletes, overwrites or needs elevated rights with "is_dangerous": true.
- Impact numbers are non-negative; cpu_percentage is at most 100.
- A step that "provides" a value must print it on stdout.
`)
	fmt.Fprintf(&b, "- Commands run in %s; join commands inside one step with %q.\n",
		profile.Name(), profile.SequenceOperator())
	switch profile {
	case shell.PowerShell:
		b.WriteString("- Write multi-line file content with a here-string (@' ... '@) and Set-Content.\n")
	case shell.WindowsConsole:
		b.WriteString("- Use backslash paths and cmd.exe built-ins; write files one line at a time with echo.\n")
	default:
		b.WriteString("- Write multi-line file content with a quoted heredoc (cat <<'EOF' > file).\n")
	}
	fmt.Fprintf(&b, "\nUser request: %s", query)
	return b.String()
}

// DiagnosisSystemPrompt frames the model as a troubleshooter for profile's
// shell.
func DiagnosisSystemPrompt(profile shell.Profile) string {
	return fmt.Sprintf("You are Spren, an expert in %s. "+
		"Explain command failures briefly and concretely.", profile.Name())
}

// outputLimit caps how much of a failed step's output is sent back.
const outputLimit = 4000

// DiagnosisPrompt asks for an analysis of a failed command.
func DiagnosisPrompt(command, stdout, stderr string, profile shell.Profile) string {
	return fmt.Sprintf(`A %s command failed. Analyze the result and suggest a fix.
Command: %s
Stdout: %s
Stderr: %s

Answer in plain text using this outline:
1. Problem
2. Root cause
3. Solution steps
4. Prevention tips`, profile.Name(), command,
		sprenerrors.Truncate(stdout, outputLimit), sprenerrors.Truncate(stderr, outputLimit))
}
