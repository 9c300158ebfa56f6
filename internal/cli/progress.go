// Package cli provides one-line progress reports for slow startup steps.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressOut receives progress lines. Replaced in tests.
var progressOut io.Writer = os.Stderr

// progressStep prints "label... ok (12ms)". A nil step is inert, so callers
// never check whether progress is enabled.
type progressStep struct {
	out     io.Writer
	started time.Time
}

func startProgress(label string) *progressStep {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(progressOut, "%s... ", label)
	return &progressStep{out: progressOut, started: time.Now()}
}

func (p *progressStep) Done() {
	p.finish("ok", "")
}

func (p *progressStep) Fail(err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	p.finish("failed", detail)
}

func (p *progressStep) finish(status, detail string) {
	if p == nil {
		return
	}
	if detail == "" {
		detail = roundElapsed(time.Since(p.started)).String()
	}
	fmt.Fprintf(p.out, "%s (%s)\n", status, detail)
}

func progressEnabled() bool {
	if noProgress || IsJSONOutput() || IsJSONLOutput() {
		return false
	}
	for _, name := range []string{"PULSE_NO_PROGRESS", "NO_PROGRESS"} {
		if _, ok := os.LookupEnv(name); ok {
			return false
		}
	}
	return true
}

// roundElapsed keeps millisecond precision below a second and drops it above.
func roundElapsed(d time.Duration) time.Duration {
	switch {
	case d < time.Millisecond:
		return d
	case d < time.Second:
		return d.Round(time.Millisecond)
	default:
		return d.Round(10 * time.Millisecond)
	}
}
