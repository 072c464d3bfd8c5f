package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/quickblock/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", ".quickblock")

		out, err := execute(t, "init", "-o", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Created configuration file") {
			t.Errorf("unexpected output %q", out)
		}

		file, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("template does not load: %v", err)
		}
		cfg := config.NewConfig()
		file.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			t.Errorf("template does not validate: %v", err)
		}
		if cfg.DebounceDelay != config.DefaultDebounceDelay {
			t.Errorf("debounce = %v, want %v", cfg.DebounceDelay, config.DefaultDebounceDelay)
		}
		if cfg.Headers["Accept-Language"] == "" {
			t.Error("expected Accept-Language header from template")
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".quickblock")
		if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := execute(t, "init", "-o", path)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".quickblock")
		if err := os.WriteFile(path, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := execute(t, "init", "-o", path, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "route_settle:") {
			t.Error("expected file to be overwritten with the template")
		}
	})
}
