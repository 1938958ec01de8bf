package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"render", "layout", "visualize", "browse", "serve", "member", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootVersion(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "downline version ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestVerboseOverridesConfiguredLevel(t *testing.T) {
	c, _ := testCLI(t)
	mustRun(t, c, "cache", "path", "-v")
	if c.Logger.GetLevel() != LogDebug {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}

	c, _ = testCLI(t)
	mustRun(t, c, "cache", "path")
	if c.Logger.GetLevel() != log.WarnLevel {
		t.Errorf("level = %v, want the configured warn", c.Logger.GetLevel())
	}
}

func TestRootCommandKeepsConfigPath(t *testing.T) {
	c, dir := testCLI(t)
	want := c.configPath
	c.RootCommand()
	if c.configPath != want {
		t.Fatalf("configPath = %q after RootCommand, want %q", c.configPath, want)
	}

	// Without --config the configured path still applies.
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "path"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != filepath.Join(dir, "cache") {
		t.Errorf("cache path = %q, want the test config's", got)
	}
}

func TestMissingConfigFile(t *testing.T) {
	isolate(t)
	c := New(io.Discard, LogInfo)
	c.configPath = "/nonexistent/downline.toml"
	if _, err := run(t, c, "cache", "path"); err == nil {
		t.Error("an explicit config path that does not exist should fail")
	}
}

func TestCompletion(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash", "--config", "/nonexistent/downline.toml"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "downline") {
		t.Error("completion script should mention the command")
	}
}
