package blocklist

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/quickblock/internal/storage"
)

func newStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	s := New(mem)
	s.Load(context.Background())
	return s, mem
}

func stored(t *testing.T, mem *storage.Memory) string {
	t.Helper()
	v, err := mem.GetValue(context.Background(), DefaultKey, "")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// TestNormalize tests the matching key of identities.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"SomeCreator", "somecreator"},
		{"  somecreator \t", "somecreator"},
		{"Café", "café"},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestStoreAdd tests adding identities.
func TestStoreAdd(t *testing.T) {
	t.Parallel()

	t.Run("normalization-equal identities are blocked", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)

		if _, err := s.Add("SomeCreator"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, probe := range []string{"somecreator", " SOMECREATOR ", "SomeCreator"} {
			if !s.IsBlocked(probe) {
				t.Errorf("expected %q to be blocked", probe)
			}
		}
		if s.IsBlocked("othercreator") {
			t.Error("expected unrelated identity to be unblocked")
		}
	})

	t.Run("add is idempotent", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)

		first, _ := s.Add("x")
		afterFirst := stored(t, mem)
		second, _ := s.Add(" X ")

		if !first || second {
			t.Errorf("expected first add to change and second not, got %v %v", first, second)
		}
		if got := s.List(); len(got) != 1 || got[0] != "x" {
			t.Errorf("expected [x], got %v", got)
		}
		if stored(t, mem) != afterFirst {
			t.Error("expected persisted copy unchanged by duplicate add")
		}
	})

	t.Run("persists verbatim in insertion order", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)

		_, _ = s.Add("B Channel")
		_, _ = s.Add("@alpha")

		if got := stored(t, mem); got != `["B Channel","@alpha"]` {
			t.Errorf("unexpected persisted value %s", got)
		}
	})

	t.Run("blank identity is ignored", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		changed, err := s.Add("   ")
		if changed || err != nil || s.Len() != 0 {
			t.Errorf("expected no-op, got changed=%v err=%v len=%d", changed, err, s.Len())
		}
	})

	t.Run("persistence failure keeps memory state", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)
		_ = mem.Close()

		changed, err := s.Add("x")
		if !changed {
			t.Error("expected in-memory change")
		}
		if !errors.Is(err, ErrPersist) {
			t.Errorf("expected ErrPersist, got %v", err)
		}
		if !s.IsBlocked("x") {
			t.Error("expected x blocked in memory")
		}
	})
}

// TestStoreRemove tests removing identities.
func TestStoreRemove(t *testing.T) {
	t.Parallel()

	t.Run("remove is the inverse of add", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)
		_, _ = s.Add("Keep")
		_, _ = s.Add("Drop")

		n, err := s.Remove(" drop")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 removed, got %d", n)
		}
		if s.IsBlocked("drop") {
			t.Error("expected drop unblocked")
		}
		if !s.IsBlocked("keep") {
			t.Error("expected keep still blocked")
		}
		if got := stored(t, mem); got != `["Keep"]` {
			t.Errorf("unexpected persisted value %s", got)
		}
	})

	t.Run("removing unknown identity is a no-op", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		var changes int
		s.OnChange(func(Change) { changes++ })

		n, err := s.Remove("ghost")
		if n != 0 || err != nil || changes != 0 {
			t.Errorf("expected no-op, got n=%d err=%v changes=%d", n, err, changes)
		}
	})
}

// TestStoreLoad tests reading the persisted list.
func TestStoreLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"valid list", `["a","b"]`, 2},
		{"malformed degrades to empty", `{broken`, 0},
		{"wrong type degrades to empty", `{"a":1}`, 0},
		{"duplicates collapse", `["a"," A ","b"]`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem := storage.NewMemory()
			_ = mem.SetValue(context.Background(), DefaultKey, tt.payload)

			s := New(mem)
			s.Load(context.Background())

			if s.Len() != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, s.Len())
			}
		})
	}
}

// TestStoreSync tests applying lists delivered by other sessions.
func TestStoreSync(t *testing.T) {
	t.Parallel()

	t.Run("replaces list and index without persisting", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)
		_, _ = s.Add("old")
		before := stored(t, mem)

		var kinds []ChangeKind
		s.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

		if err := s.Sync(`["New"]`); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.IsBlocked("old") || !s.IsBlocked("new") {
			t.Errorf("expected index rebuilt, got %v", s.List())
		}
		if stored(t, mem) != before {
			t.Error("expected sync not to write back")
		}
		if len(kinds) != 1 || kinds[0] != Replaced {
			t.Errorf("expected one Replaced change, got %v", kinds)
		}
	})

	t.Run("malformed payload leaves state untouched", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		_, _ = s.Add("stay")

		if err := s.Sync(`not json`); err == nil {
			t.Error("expected error")
		}
		if !s.IsBlocked("stay") || s.Len() != 1 {
			t.Errorf("expected state untouched, got %v", s.List())
		}
	})

	t.Run("non-array payloads leave state untouched", func(t *testing.T) {
		t.Parallel()
		for _, payload := range []string{`null`, ` null `, `{"a":1}`, `"keepme"`, `42`} {
			s, _ := newStore(t)
			_, _ = s.Add("keepme")

			var changes int
			s.OnChange(func(Change) { changes++ })

			if err := s.Sync(payload); err == nil {
				t.Errorf("Sync(%q): expected error", payload)
			}
			if !s.IsBlocked("keepme") || s.Len() != 1 {
				t.Errorf("Sync(%q): expected state untouched, got %v", payload, s.List())
			}
			if changes != 0 {
				t.Errorf("Sync(%q): expected no change notification, got %d", payload, changes)
			}
		}
	})

	t.Run("empty array clears the list", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		_, _ = s.Add("gone")

		if err := s.Sync(` [] `); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("expected empty list, got %v", s.List())
		}
	})
}

// TestStoreOnChange tests listener delivery.
func TestStoreOnChange(t *testing.T) {
	t.Parallel()

	s, mem := newStore(t)
	var persistedAtNotify string
	var got []Change
	s.OnChange(func(c Change) {
		got = append(got, c)
		persistedAtNotify = stored(t, mem)
	})

	_, _ = s.Add("Chan")
	_, _ = s.Remove("chan")

	if len(got) != 2 || got[0].Kind != Added || got[1].Kind != Removed {
		t.Fatalf("unexpected changes %v", got)
	}
	if got[0].Identity != "Chan" {
		t.Errorf("expected verbatim identity, got %q", got[0].Identity)
	}
	if persistedAtNotify != `[]` {
		t.Errorf("expected persistence before notification, got %s", persistedAtNotify)
	}
}

// TestExportImport tests the exchange format.
func TestExportImport(t *testing.T) {
	t.Parallel()

	t.Run("round trip into empty store", func(t *testing.T) {
		t.Parallel()
		src, _ := newStore(t)
		for _, id := range []string{"@Alpha", "Beta Channel", "gamma"} {
			_, _ = src.Add(id)
		}

		var buf bytes.Buffer
		if err := src.Export(&buf); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		dst, _ := newStore(t)
		res, err := dst.Import(&buf)
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if res.Added != 3 || res.Skipped != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		want := src.List()
		got := dst.List()
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("entry %d: want %q, got %q", i, want[i], got[i])
			}
		}
	})

	t.Run("export is indented", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		_, _ = s.Add("a")
		var buf bytes.Buffer
		_ = s.Export(&buf)
		if buf.String() != "[\n  \"a\"\n]\n" {
			t.Errorf("unexpected export %q", buf.String())
		}
	})

	t.Run("duplicates against store and payload are skipped", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		_, _ = s.Add("a")

		res, err := s.Import(strings.NewReader(`["A","a","B"]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Added != 1 || res.Skipped != 2 {
			t.Errorf("unexpected result %+v", res)
		}
		if res.String() != "1 new, 2 duplicates skipped" {
			t.Errorf("unexpected message %q", res.String())
		}
		if got := s.List(); len(got) != 2 || got[1] != "B" {
			t.Errorf("expected [a B], got %v", got)
		}
	})

	t.Run("non-array is rejected without mutation", func(t *testing.T) {
		t.Parallel()
		s, mem := newStore(t)
		_, _ = s.Add("a")
		before := stored(t, mem)

		_, err := s.Import(strings.NewReader(`{"not":"an array"}`))
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
		if err != nil && err.Error() != "invalid format: expected an array" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if s.Len() != 1 || stored(t, mem) != before {
			t.Error("expected no mutation")
		}
	})

	t.Run("unparsable payload is rejected", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		_, err := s.Import(strings.NewReader(`[`))
		if !errors.Is(err, ErrMalformedJSON) {
			t.Errorf("expected ErrMalformedJSON, got %v", err)
		}
	})

	t.Run("non-string entries are skipped", func(t *testing.T) {
		t.Parallel()
		s, _ := newStore(t)
		res, err := s.Import(strings.NewReader(`["ok", 3, null, ""]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Added != 1 || res.Skipped != 3 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("export file name carries the date", func(t *testing.T) {
		t.Parallel()
		ts := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
		if got := ExportFileName(ts); got != "youtube-blocklist-2024-03-09.json" {
			t.Errorf("unexpected name %q", got)
		}
	})
}
