// Package cli provides terminal mode checks for commands that take over the screen.
package cli

import "os"

// IsNonInteractive reports whether the watch view must not be started:
// --non-interactive, PULSE_NON_INTERACTIVE, or no TTY on stdin and stdout.
func IsNonInteractive() bool {
	if nonInteractive {
		return true
	}
	if _, ok := os.LookupEnv("PULSE_NON_INTERACTIVE"); ok {
		return true
	}
	return !hasTTY()
}

// requireTerminal fails with a PreflightError when command cannot own the
// terminal, either because the session is non-interactive or because machine
// output was requested.
func requireTerminal(command, fallback string) error {
	reason := ""
	switch {
	case IsJSONOutput() || IsJSONLOutput():
		reason = "--json and --jsonl write machine output"
	case IsNonInteractive():
		reason = "stdin and stdout must be a TTY"
	default:
		return nil
	}
	return &PreflightError{
		Message:  command + " needs an interactive terminal",
		Hint:     reason,
		NextStep: fallback,
	}
}
