// Package components provides reusable watch view components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/pulse/internal/models"
	"github.com/opencode-ai/pulse/internal/tui/styles"
)

// RenderActionStateBadge renders an action state with icon and color.
// Dependents use the CHILD_ labels.
func RenderActionStateBadge(styleSet styles.Styles, state models.ActionState, dependent bool) string {
	icon, style := stateDescriptor(styleSet, state)
	return style.Render(fmt.Sprintf("%s %s", icon, state.Label(dependent)))
}

func stateDescriptor(styleSet styles.Styles, state models.ActionState) (string, lipgloss.Style) {
	switch state {
	case models.ActionStateRunning:
		return ">", styleSet.StatusRunning
	case models.ActionStateScheduled:
		return "~", styleSet.StatusScheduled
	case models.ActionStatePending:
		return "||", styleSet.StatusPending
	case models.ActionStateNonActive:
		return "-", styleSet.StatusIdle
	default:
		return "?", styleSet.Muted
	}
}
