package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/storage"
	"github.com/spf13/cobra"
)

func TestBlockAndUnblock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	out, err := execute(t, "block", "--data-dir", dir, "@SomeCreator", "Some Other", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Blocked SomeCreator", "Blocked Some Other", "Skipped empty channel name"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "block", "--data-dir", dir, "somecreator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Already blocked: somecreator") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "list", "--data-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "SomeCreator\nSome Other\n" {
		t.Errorf("list = %q", out)
	}

	out, err = execute(t, "unblock", "--data-dir", dir, "@SOMECREATOR", "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Unblocked SOMECREATOR") || !strings.Contains(out, "Not blocked: nobody") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "list", "--data-dir", dir, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !slices.Equal(ids, []string{"Some Other"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestListEmpty(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "list", "--data-dir", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "No blocked channels\n" {
		t.Errorf("list = %q", out)
	}
}

func TestArgsRequired(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"block", "unblock", "import", "filter", "replay"} {
		if _, err := execute(t, name, "--data-dir", t.TempDir()); err == nil {
			t.Errorf("%s: expected error without arguments", name)
		}
	}
}

func TestExportImport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := execute(t, "block", "--data-dir", dir, "alpha", "beta"); err != nil {
		t.Fatal(err)
	}

	t.Run("export to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "list.json")
		out, err := execute(t, "export", "--data-dir", dir, "-o", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Exported 2 channels to "+path) {
			t.Errorf("unexpected output %q", out)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[\n  \"alpha\",\n  \"beta\"\n]\n" {
			t.Errorf("export = %q", data)
		}
	})

	t.Run("export to stdout", func(t *testing.T) {
		out, err := execute(t, "export", "--data-dir", dir, "-o", "-")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "[\n  \"alpha\"") {
			t.Errorf("export = %q", out)
		}
	})

	t.Run("import merges", func(t *testing.T) {
		t.Parallel()

		target := t.TempDir()
		if _, err := execute(t, "block", "--data-dir", target, "Beta"); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "in.json")
		if err := os.WriteFile(path, []byte(`["alpha", "beta", 3, ""]`), 0600); err != nil {
			t.Fatal(err)
		}

		out, err := execute(t, "import", "--data-dir", target, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Imported 1 new, 3 duplicates skipped") {
			t.Errorf("unexpected output %q", out)
		}

		out, err = execute(t, "list", "--data-dir", target)
		if err != nil {
			t.Fatal(err)
		}
		if out != "Beta\nalpha\n" {
			t.Errorf("list = %q", out)
		}
	})

	t.Run("import rejects non-array", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "in.json")
		if err := os.WriteFile(path, []byte(`{"alpha": true}`), 0600); err != nil {
			t.Fatal(err)
		}
		_, err := execute(t, "import", "--data-dir", t.TempDir(), path)
		if err == nil || !strings.Contains(err.Error(), "invalid format: expected an array") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("import missing file", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "import", "--data-dir", t.TempDir(), filepath.Join(t.TempDir(), "nope.json"))
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestFollowChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cfg := config.NewConfig()
	cfg.DataDir = dir
	e, err := openStore(cmd, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer e.close()

	var seen [][]string
	followChanges(e, func() {
		seen = append(seen, e.store.List())
	})

	other, err := storage.OpenSQLite(dir, storage.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if err := other.SetValue(ctx, blocklist.DefaultKey, `["alpha","beta"]`); err != nil {
		t.Fatal(err)
	}

	if err := e.db.Poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(seen) != 1 || !slices.Equal(seen[0], []string{"alpha", "beta"}) {
		t.Errorf("seen = %v", seen)
	}

	// A malformed payload keeps the current list and is not reported.
	if err := other.SetValue(ctx, blocklist.DefaultKey, `not json`); err != nil {
		t.Fatal(err)
	}
	if err := e.db.Poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(seen) != 1 {
		t.Errorf("malformed payload should not be reported, seen = %v", seen)
	}
	if e.store.Len() != 2 {
		t.Errorf("len = %d, want 2", e.store.Len())
	}
}
