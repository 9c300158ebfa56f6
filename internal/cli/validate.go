package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencode-ai/pulse/internal/config"
	"github.com/opencode-ai/pulse/internal/models"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

// actionSummary is one row of pulse validate output.
type actionSummary struct {
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Handler    string   `json:"handler"`
	IntervalMs uint64   `json:"interval_ms"`
	DurationMs uint64   `json:"duration_ms"`
	TimeoutMs  uint64   `json:"timeout_ms"`
	Frozen     bool     `json:"frozen"`
	Autostart  bool     `json:"autostart"`
	Parent     string   `json:"parent,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
}

type validateReport struct {
	File    string          `json:"file,omitempty"`
	Valid   bool            `json:"valid"`
	Actions []actionSummary `json:"actions"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and list the configured actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		report, err := buildValidateReport(cfg)
		if err != nil {
			return err
		}
		return writeValidateReport(os.Stdout, report)
	},
}

// buildValidateReport builds the registry the same way pulse run does, so
// every registry rule is checked, not only the config schema.
func buildValidateReport(cfg *config.Config) (*validateReport, error) {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}

	autostart := make(map[string]bool)
	for _, name := range cfg.AutostartNames() {
		autostart[name] = true
	}
	handlerTypes := make(map[string]string, len(cfg.Actions))
	for _, ac := range cfg.Actions {
		handlerTypes[strings.TrimSpace(ac.Name)] = ac.Handler.Type
	}

	report := &validateReport{File: cfg.File, Valid: true}
	for _, a := range registry.Actions() {
		summary := actionSummary{
			Name:       a.Name(),
			State:      string(a.State()),
			Handler:    handlerTypes[a.Name()],
			IntervalMs: a.Interval(),
			DurationMs: a.Duration(),
			TimeoutMs:  a.Timeout(),
			Frozen:     a.Frozen(),
			Autostart:  autostart[a.Name()],
		}
		if summary.Handler == "" {
			summary.Handler = "log"
		}
		if p := a.Parent(); p != nil {
			summary.Parent = p.Name()
		}
		for _, d := range a.Dependents() {
			summary.Dependents = append(summary.Dependents, d.Name())
		}
		report.Actions = append(report.Actions, summary)
	}
	return report, nil
}

func writeValidateReport(out io.Writer, report *validateReport) error {
	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(out, report)
	}

	source := report.File
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(out, "%s %s\n", colorize("Configuration OK:", colorGreen), source)
	if len(report.Actions) == 0 {
		fmt.Fprintln(out, "No actions configured.")
		return nil
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(report.Actions))
	for _, a := range report.Actions {
		parent := a.Parent
		if parent == "" {
			parent = "-"
		}
		rows = append(rows, []string{
			a.Name,
			a.Handler,
			formatMillis(a.IntervalMs),
			formatMillis(a.DurationMs),
			formatMillis(a.TimeoutMs),
			formatYesNo(a.Frozen),
			formatYesNo(a.Autostart),
			parent,
			formatActionState(models.ActionState(a.State), a.Parent != ""),
		})
	}
	return writeTable(out, []string{"NAME", "HANDLER", "INTERVAL", "DURATION", "TIMEOUT", "FROZEN", "AUTOSTART", "PARENT", "STATE"}, rows)
}
