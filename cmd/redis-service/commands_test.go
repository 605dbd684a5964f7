package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestLoadConfigArgs tests positional argument handling
func TestLoadConfigArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantService string
		wantConfig  string
	}{
		{name: "defaults", args: nil, wantService: "Redis", wantConfig: "redis.conf"},
		{name: "service name only", args: []string{"Cache"}, wantService: "Cache", wantConfig: "redis.conf"},
		{name: "both", args: []string{"Cache", "cache.conf"}, wantService: "Cache", wantConfig: "cache.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(tt.args, &GlobalFlags{})
			if err != nil {
				t.Fatalf("loadConfig() error = %v", err)
			}
			if cfg.ServiceName != tt.wantService || cfg.ConfigPath != tt.wantConfig {
				t.Errorf("loadConfig() = (%q, %q), want (%q, %q)",
					cfg.ServiceName, cfg.ConfigPath, tt.wantService, tt.wantConfig)
			}
		})
	}
}

// TestServiceArguments tests the argument list recorded at install time
func TestServiceArguments(t *testing.T) {
	cfg, err := loadConfig([]string{"Cache", "cache.conf"}, &GlobalFlags{})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	args, err := serviceArguments(cfg, &GlobalFlags{})
	if err != nil {
		t.Fatalf("serviceArguments() error = %v", err)
	}
	if strings.Join(args, " ") != "Cache cache.conf" {
		t.Errorf("serviceArguments() = %v, want [Cache cache.conf]", args)
	}

	settings := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(settings, []byte("redis:\n  port: 6380\n"), 0644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}
	flags := &GlobalFlags{SettingsFile: settings}
	args, err = serviceArguments(cfg, flags)
	if err != nil {
		t.Fatalf("serviceArguments() error = %v", err)
	}
	if len(args) != 4 || args[2] != "--settings" || !filepath.IsAbs(args[3]) {
		t.Errorf("serviceArguments() = %v, want absolute --settings path appended", args)
	}
}

// TestServiceNameArg tests the default service name for admin commands
func TestServiceNameArg(t *testing.T) {
	if got := serviceNameArg(nil); got != "Redis" {
		t.Errorf("serviceNameArg(nil) = %q, want Redis", got)
	}
	if got := serviceNameArg([]string{"Cache"}); got != "Cache" {
		t.Errorf("serviceNameArg([Cache]) = %q, want Cache", got)
	}
}

// TestRootRejectsExtraArgs tests that more than two positional arguments fail
func TestRootRejectsExtraArgs(t *testing.T) {
	exitCode := 0
	root := buildRoot(&exitCode)
	root.SetArgs([]string{"Redis", "redis.conf", "extra"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Fatal("Execute() expected error for three positional arguments")
	}
}

// TestRootCommands tests that the admin subcommands are registered
func TestRootCommands(t *testing.T) {
	exitCode := 0
	root := buildRoot(&exitCode)

	for _, name := range []string{"install", "uninstall", "start", "stop", "status"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not found (got %v, err %v)", name, cmd, err)
		}
	}
}
