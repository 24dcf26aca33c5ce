package cmd

import (
	"testing"
)

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	if rootCmd.Version != "1.2.3-test" {
		t.Errorf("rootCmd.Version = %q, want 1.2.3-test", rootCmd.Version)
	}
	if GetVersion() != "1.2.3-test" {
		t.Errorf("GetVersion() = %q, want 1.2.3-test", GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "capstan" {
		t.Errorf("Use = %q, want capstan", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Short description not set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("SilenceUsage should be true")
	}
}

func TestRootSubcommands(t *testing.T) {
	want := []string{"serve", "list", "get", "sync", "history", "check", "version", "self-update"}

	registered := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		registered[sub.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootPersistentFlags(t *testing.T) {
	for _, name := range []string{"endpoint", "config-path"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not registered", name)
		}
	}
}
