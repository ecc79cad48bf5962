package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/loykin/fuzzbridge/internal/bridge"
	"github.com/loykin/fuzzbridge/internal/input"
	"github.com/loykin/fuzzbridge/internal/logger"
)

func writeTOML(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fuzzbridge.toml")
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Input.MaxBytes != input.DefaultMaxCapacity {
		t.Fatalf("max_bytes = %d", c.Input.MaxBytes)
	}
	if c.Target.Command != bridge.DefaultCommand || len(c.Target.Args) != 1 || c.Target.Args[0] != bridge.DefaultScript {
		t.Fatalf("unexpected default target: %+v", c.Target)
	}
	if c.Target.Timeout != 0 {
		t.Fatalf("default timeout should be 0, got %s", c.Target.Timeout)
	}
	if c.Log.MaxSizeMB != logger.DefaultMaxSizeMB || c.Metrics.Job != "fuzzbridge" {
		t.Fatalf("unexpected defaults: %+v %+v", c.Log, c.Metrics)
	}
	if c.HistoryDSN() != "" {
		t.Fatalf("history should be off by default")
	}
}

func TestLoad_File(t *testing.T) {
	p := writeTOML(t, `
[input]
max_bytes = 4096

[target]
command = "/usr/bin/env"
args = ["python3", "-u", "harness.py"]
workdir = "/srv/fuzz"
env = ["ASAN_OPTIONS=abort_on_error=1"]
timeout = "30s"

[log]
level = "debug"
format = "json"
file = "/var/log/fuzzbridge.log"
target_dir = "/var/log/fuzzbridge"
max_backups = 9

[history]
enabled = true

[metrics]
textfile = "/var/lib/node_exporter/fuzzbridge.prom"
sample_interval = "50ms"
`)
	c, err := LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Input.MaxBytes != 4096 || c.Target.Command != "/usr/bin/env" || len(c.Target.Args) != 3 {
		t.Fatalf("unexpected: %+v", c)
	}
	if c.Target.Timeout != 30*time.Second || c.Target.WorkDir != "/srv/fuzz" {
		t.Fatalf("unexpected target: %+v", c.Target)
	}
	if c.HistoryDSN() != DefaultHistoryDSN {
		t.Fatalf("enabled history should use default DSN, got %q", c.HistoryDSN())
	}
	lc := c.Logger()
	if lc.Level != "debug" || lc.Format != "json" || lc.File.Path != "/var/log/fuzzbridge.log" || lc.File.Dir != "/var/log/fuzzbridge" || lc.File.MaxBackups != 9 {
		t.Fatalf("unexpected logger config: %+v", lc)
	}
	if c.Metrics.Textfile == "" || c.Metrics.SampleInterval != 50*time.Millisecond {
		t.Fatalf("metrics section not decoded: %+v", c.Metrics)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"empty command":     "[target]\ncommand = \" \"\n",
		"negative timeout":  "[target]\ntimeout = \"-1s\"\n",
		"negative size":     "[input]\nmax_bytes = -1\n",
		"bad format":        "[log]\nformat = \"xml\"\n",
		"negative sampling": "[metrics]\nsample_interval = \"-5ms\"\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeTOML(t, data))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestPrecedence_FlagOverEnvOverFileOverDefault(t *testing.T) {
	p := writeTOML(t, "[target]\ncommand = \"from-file\"\ntimeout = \"5s\"\n[input]\nmax_bytes = 10\n")

	t.Setenv("FUZZBRIDGE_TARGET_COMMAND", "from-env")
	t.Setenv("FUZZBRIDGE_TARGET_TIMEOUT", "7s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("target-cmd", "", "")
	fs.Duration("timeout", 0, "")
	fs.Int("max-input", 0, "")
	if err := fs.Parse([]string{"--target-cmd", "from-flag"}); err != nil {
		t.Fatal(err)
	}

	v := NewViper()
	_ = v.BindPFlag("target.command", fs.Lookup("target-cmd"))
	_ = v.BindPFlag("target.timeout", fs.Lookup("timeout"))
	_ = v.BindPFlag("input.max_bytes", fs.Lookup("max-input"))
	c, err := Load(v, p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Target.Command != "from-flag" {
		t.Fatalf("flag should win, got %q", c.Target.Command)
	}
	if c.Target.Timeout != 7*time.Second {
		t.Fatalf("env should beat file, got %s", c.Target.Timeout)
	}
	if c.Input.MaxBytes != 10 {
		t.Fatalf("file should beat default, got %d", c.Input.MaxBytes)
	}
	if c.Log.Level != "info" {
		t.Fatalf("default level expected, got %q", c.Log.Level)
	}
}

func TestTargetEnv(t *testing.T) {
	c, err := Load(NewViper(), "")
	if err != nil {
		t.Fatal(err)
	}
	envList, err := c.TargetEnv()
	if err != nil || envList != nil {
		t.Fatalf("expected inherited env (nil), got %v %v", envList, err)
	}

	dir := t.TempDir()
	envFile := filepath.Join(dir, "target.env")
	if err := os.WriteFile(envFile, []byte("UBSAN_OPTIONS=halt_on_error=1\nMODE=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FUZZBRIDGE_CFG_MARKER", "os")
	c.Target.EnvFiles = []string{envFile}
	c.Target.Env = []string{"MODE=inline-${FUZZBRIDGE_CFG_MARKER}"}
	envList, err = c.TargetEnv()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, kv := range envList {
		got[kv] = true
	}
	for _, want := range []string{"UBSAN_OPTIONS=halt_on_error=1", "MODE=inline-os", "FUZZBRIDGE_CFG_MARKER=os"} {
		if !got[want] {
			t.Fatalf("missing %q in %v", want, envList)
		}
	}

	c.Target.EnvFiles = []string{filepath.Join(dir, "missing.env")}
	if _, err := c.TargetEnv(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing env file, got %v", err)
	}
}

func TestBridgeTarget(t *testing.T) {
	p := writeTOML(t, "[target]\ncommand = \"/bin/sh\"\nargs = [\"-c\", \"exit 0\"]\nworkdir = \"/tmp\"\ntimeout = \"2s\"\n")
	c, err := LoadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	tg, err := c.BridgeTarget()
	if err != nil {
		t.Fatal(err)
	}
	if tg.Command != "/bin/sh" || len(tg.Args) != 2 || tg.Dir != "/tmp" || tg.Timeout != 2*time.Second || tg.Env != nil {
		t.Fatalf("unexpected target: %+v", tg)
	}
	tg.Args[0] = "mutated"
	if c.Target.Args[0] != "-c" {
		t.Fatalf("target args must not alias config")
	}
}

func TestHistoryDSN_ExplicitWins(t *testing.T) {
	c := &Config{History: HistoryConfig{DSN: "postgres://u:p@db/fuzz"}}
	if c.HistoryDSN() != "postgres://u:p@db/fuzz" {
		t.Fatalf("got %q", c.HistoryDSN())
	}
}
