package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "session", "leads"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
	root = NewRootCmd("")
	if root.Version != "dev" {
		t.Errorf("empty version: got %q, want dev", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestStartCmdFlags(t *testing.T) {
	root := NewRootCmd("")
	start, _, err := root.Find([]string{"start"})
	if err != nil {
		t.Fatalf("start command not found: %v", err)
	}
	for _, name := range []string{
		"port", "foreground", "dev", "pprof", "env-file",
		"session-ttl", "sweep-interval", "db-driver", "db-url",
		"llm-url", "llm-key", "llm-model", "otel",
	} {
		if start.Flags().Lookup(name) == nil {
			t.Errorf("start missing flag --%s", name)
		}
	}
	if got := start.Flags().Lookup("port").DefValue; got != "3764" {
		t.Errorf("default port = %s, want 3764", got)
	}
	if got := start.Flags().Lookup("db-driver").DefValue; got != "sqlite" {
		t.Errorf("default db-driver = %s, want sqlite", got)
	}
}

func TestSessionCmdSubcommands(t *testing.T) {
	root := NewRootCmd("")
	sess, _, err := root.Find([]string{"session"})
	if err != nil {
		t.Fatalf("session command not found: %v", err)
	}
	names := make(map[string]bool)
	for _, c := range sess.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "show", "end"} {
		if !names[want] {
			t.Errorf("expected session subcommand %q", want)
		}
	}
}

func TestStatusNotRunning(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"status", "--home", t.TempDir()})
	if err := root.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(strings.ToLower(buf.String()), "not running") {
		t.Errorf("status output should say not running; got:\n%s", buf.String())
	}
}
