package probe

import (
	"os"
)

// ShowHelp prints usage information for the probe tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Lifeboat Probe
==============

Drives a running predictor with generated passengers and checks that
valid passengers are scored consistently and invalid ones are rejected
with the offending field named.

Usage:
  go run ./cmd/probe [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -passengers int
        Number of passengers to generate (default 1000)
  -invalid float
        Share of passengers with one broken field (default 0.2)
  -repeat int
        Times each valid passenger is scored (default 2)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every failed check
  -help
        Show this help message

Exit status is 1 when any check fails.
`)
}
