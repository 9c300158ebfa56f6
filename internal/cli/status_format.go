package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencode-ai/pulse/internal/models"
)

func formatActionState(state models.ActionState, dependent bool) string {
	label, color := statusLabelForAction(state)
	return colorize(formatStatusLabel(label, state.Label(dependent)), color)
}

func statusLabelForAction(state models.ActionState) (string, string) {
	switch state {
	case models.ActionStateRunning:
		return "RUN", colorGreen
	case models.ActionStateScheduled:
		return "SCHED", colorCyan
	case models.ActionStatePending:
		return "WAIT", colorYellow
	case models.ActionStateNonActive:
		return "IDLE", ""
	default:
		return "WARN", colorMagenta
	}
}

func formatStatusLabel(label, status string) string {
	normalized := strings.TrimSpace(status)
	if normalized != "" {
		normalized = strings.ReplaceAll(normalized, "_", " ")
	}
	if normalized == "" {
		return label
	}
	return fmt.Sprintf("%s %s", label, normalized)
}

func formatMillis(ms uint64) string {
	if ms == 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}
