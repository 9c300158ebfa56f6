// Command pulse runs the cooperative action scheduler.
package main

import "github.com/opencode-ai/pulse/internal/cli"

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Execute(version, commit, date)
}
