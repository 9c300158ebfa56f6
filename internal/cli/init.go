package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/pulse/internal/config"
	"github.com/spf13/cobra"
)

const configFileName = "pulse.yaml"

var (
	initForce  bool
	initGlobal bool

	// configDirFunc returns the directory pulse init writes into.
	configDirFunc = func() string {
		if initGlobal {
			return defaultConfigDir()
		}
		return "."
	}
)

type initResult struct {
	name    string
	status  string // done, skipped, failed
	message string
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing pulse.yaml")
	initCmd.Flags().BoolVarP(&initGlobal, "global", "g", false, "write to the user config directory instead of the working directory")
}

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a starter pulse.yaml",
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		results := []initResult{
			checkPrerequisites(),
			createConfigFile(),
		}

		if IsJSONOutput() || IsJSONLOutput() {
			out := make([]map[string]string, 0, len(results))
			for _, r := range results {
				out = append(out, map[string]string{"step": r.name, "status": r.status, "message": r.message})
			}
			return WriteOutput(os.Stdout, out)
		}

		failed := false
		for _, r := range results {
			var mark string
			switch r.status {
			case "done":
				mark = colorize("ok", colorGreen)
			case "skipped":
				mark = colorize("skip", colorYellow)
			default:
				mark = colorize("FAIL", colorRed)
				failed = true
			}
			fmt.Printf("[%s] %s: %s\n", mark, r.name, r.message)
		}
		if failed {
			return fmt.Errorf("init did not complete")
		}
		fmt.Println()
		fmt.Println("Next: edit pulse.yaml, then run 'pulse validate' and 'pulse run'.")
		return nil
	},
}

func checkPrerequisites() initResult {
	result := initResult{name: "Check prerequisites"}
	path, err := exec.LookPath("sh")
	if err != nil {
		result.status = "failed"
		result.message = "sh not found in PATH (needed by exec handlers)"
		return result
	}
	result.status = "done"
	result.message = "sh found at " + path
	return result
}

func createConfigFile() initResult {
	result := initResult{name: "Create config"}
	dir := configDirFunc()
	path := filepath.Join(dir, configFileName)

	if _, err := os.Stat(path); err == nil && !initForce {
		result.status = "skipped"
		result.message = path + " already exists (use --force to overwrite)"
		return result
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("create %s: %v", dir, err)
		return result
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("write %s: %v", path, err)
		return result
	}

	result.status = "done"
	result.message = "wrote " + path
	return result
}

func defaultConfigDir() string {
	return config.DefaultConfigDir()
}

var configTemplate = strings.TrimLeft(`
# Pulse Configuration File
#
# Durations use Go syntax (250ms, 1s, 1m30s) and must be whole
# milliseconds. Every key can be overridden with PULSE_<SECTION>_<KEY>,
# e.g. PULSE_SCHEDULER_POLL_INTERVAL=50ms.

logging:
  level: info      # trace, debug, info, warn, error
  format: console  # console or json

scheduler:
  poll_interval: 10ms
  capacity: 0      # 0 sizes the registry to the action list
  max_passes: 0    # 0 runs until interrupted

journal:
  enabled: true
  path: ~/.pulse/journal.db
  record_ticks: false

tui:
  theme: default   # default or high-contrast
  refresh_interval: 250ms

actions:
  # Runs for 5s every time it is scheduled, ticking each pass.
  - name: heartbeat
    duration: 5s
    autostart: true
    handler:
      type: log
    dependents: [report]

  # Starts and stops with heartbeat.
  - name: report
    handler:
      type: exec
      command: "echo pulse $PULSE_ACTION $PULSE_CALLBACK $REPORT_TARGET {{.channel}}"
      timeout: 5s
      on: [start, stop]
      env: ["REPORT_TARGET=ops"]   # KEY=VALUE, case preserved
      vars: ["channel=alerts"]     # template fields

  # Waits 1s after its last stop before it may start again.
  - name: cooldown
    interval: 1s
    duration: 500ms
    handler:
      type: log
`, "\n")
