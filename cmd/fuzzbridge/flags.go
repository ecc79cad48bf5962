package main

import "time"

// GlobalFlags holds persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds overrides for a harness run. Each one is bound to a config
// key, so an unset flag falls through to env, file and defaults.
type RunFlags struct {
	MaxInput       int
	TargetCmd      string
	TargetArgs     []string
	Timeout        time.Duration
	LogLevel       string
	LogFormat      string
	HistoryDSN     string
	MetricsFile    string
	MetricsPushURL string
}

// HistoryFlags holds flags for the history command
type HistoryFlags struct {
	DSN   string
	Limit int
	JSON  bool
}

// runFlagKeys maps run flags onto config keys.
var runFlagKeys = map[string]string{
	"max-input":        "input.max_bytes",
	"target-cmd":       "target.command",
	"target-arg":       "target.args",
	"timeout":          "target.timeout",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"history-dsn":      "history.dsn",
	"metrics-textfile": "metrics.textfile",
	"metrics-push-url": "metrics.push_url",
}
