// Package shell abstracts the differences between the POSIX shell, the
// Windows console (cmd.exe) and PowerShell: how a single command string is
// handed to the interpreter, how it is quoted, and which commands count as
// dangerous.
//
// A Profile is detected once at startup and passed explicitly to every
// component that needs it.
package shell

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
)

// Profile identifies the active command interpreter.
type Profile int

const (
	Posix Profile = iota
	WindowsConsole
	PowerShell
)

// Detect inspects the host environment.
func Detect() Profile {
	return DetectFrom(runtime.GOOS, os.Getenv)
}

// DetectFrom picks a profile from an OS name and an environment lookup.
// POSIX is the default whenever no Windows-specific signal is found.
func DetectFrom(goos string, getenv func(string) string) Profile {
	if goos != "windows" {
		return Posix
	}
	// MSYS, Cygwin and Git Bash export SHELL; native Windows shells do not.
	if getenv("SHELL") != "" {
		return Posix
	}
	if getenv("PSModulePath") != "" {
		return PowerShell
	}
	return WindowsConsole
}

// Parse maps a config value to a profile. "auto" and "" detect.
func Parse(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Detect(), nil
	case "posix", "sh", "bash":
		return Posix, nil
	case "cmd", "console", "windows":
		return WindowsConsole, nil
	case "powershell", "pwsh":
		return PowerShell, nil
	}
	return Posix, fmt.Errorf("unknown shell profile %q", name)
}

func (p Profile) String() string {
	switch p {
	case WindowsConsole:
		return "cmd"
	case PowerShell:
		return "powershell"
	default:
		return "posix"
	}
}

// Name is the human-readable interpreter name used in prompts and previews.
func (p Profile) Name() string {
	switch p {
	case WindowsConsole:
		return "Command Prompt"
	case PowerShell:
		return "PowerShell"
	default:
		return "POSIX shell"
	}
}

// Invocation returns the interpreter binary and the fixed flags for
// "run one command string and exit". The formatted command is appended as
// the final argument.
//
// PowerShell joins everything after -Command into one script, so the
// single-quoted literal produced by Format is evaluated by Invoke-Expression.
func (p Profile) Invocation() (string, []string) {
	switch p {
	case WindowsConsole:
		return "cmd", []string{"/C"}
	case PowerShell:
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", "Invoke-Expression"}
	default:
		return "sh", []string{"-c"}
	}
}

// Format applies interpreter-specific quoting to command.
func (p Profile) Format(command string) string {
	switch p {
	case PowerShell:
		return "'" + strings.ReplaceAll(command, "'", "''") + "'"
	case WindowsConsole:
		return strings.ReplaceAll(command, `"`, `\"`)
	default:
		return command
	}
}

// SequenceOperator joins commands that must run one after another.
func (p Profile) SequenceOperator() string {
	if p == PowerShell {
		return ";"
	}
	return "&&"
}

// Windows reports whether the profile targets a native Windows interpreter.
func (p Profile) Windows() bool {
	return p == WindowsConsole || p == PowerShell
}

var (
	posixDangerous = []string{"rm -rf", "rm -fr", "mkfs", "dd if=", "> /dev/sd", ":(){", "chmod -r 777 /", "shutdown", "reboot"}
	cmdDangerous   = []string{"rmdir /s", "rd /s", "del /f", "del /s", "shutdown", "diskpart"}
	psDangerous    = []string{"format-volume", "stop-computer", "restart-computer", "clear-disk"}

	cmdFormatRe      = regexp.MustCompile(`(^|[\s&|;])format\s+[a-z]:`)
	psRemoveItemRe   = regexp.MustCompile(`\b(remove-item|rm|del|ri)\b`)
	psRecurseFlagsRe = regexp.MustCompile(`\s-r\w*`)
)

// IsDangerous reports whether command matches any caller-supplied pattern or
// the profile's built-in list. Matching is case-insensitive.
func (p Profile) IsDangerous(command string, extra []string) bool {
	lower := strings.ToLower(command)
	for _, pattern := range extra {
		if pattern = strings.ToLower(strings.TrimSpace(pattern)); pattern != "" && strings.Contains(lower, pattern) {
			return true
		}
	}

	switch p {
	case WindowsConsole:
		return containsAny(lower, cmdDangerous) || cmdFormatRe.MatchString(lower)
	case PowerShell:
		if psRemoveItemRe.MatchString(lower) && psRecurseFlagsRe.MatchString(lower) {
			return true
		}
		return containsAny(lower, psDangerous)
	default:
		return containsAny(lower, posixDangerous)
	}
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
