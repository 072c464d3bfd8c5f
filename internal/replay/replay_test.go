package replay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/suppress"
)

const watchPage = `<html><body>
<div id="content">
  <div id="primary">
    <ytd-comments id="comments">
      <ytd-comment-thread-renderer id="t1"><ytd-comment-view-model><div id="header-author"><a id="author-text" href="/@SomeCreator">Some Creator</a></div></ytd-comment-view-model></ytd-comment-thread-renderer>
      <ytd-comment-thread-renderer id="t2"><ytd-comment-view-model><div id="header-author"><a id="author-text" href="/@Friendly">Friendly</a></div></ytd-comment-view-model></ytd-comment-thread-renderer>
    </ytd-comments>
  </div>
  <div id="secondary">
    <ytd-compact-video-renderer id="cv1"><div><a href="/@other">Other</a></div></ytd-compact-video-renderer>
  </div>
</div>
</body></html>`

const thread3 = `<ytd-comment-thread-renderer id="t3"><ytd-comment-view-model><div id="header-author"><a id="author-text" href="/@SomeCreator">Some Creator</a></div></ytd-comment-view-model></ytd-comment-thread-renderer>`

var epoch = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func newReplayer(opts ...Option) *Replayer {
	base := []Option{
		WithStart(epoch),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func hidden(t *testing.T, res *Result, id string) bool {
	t.Helper()
	n := res.Document.Query("#" + id)
	if n == nil {
		t.Fatalf("element %q missing", id)
	}
	return suppress.IsHidden(n)
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("block, unblock and sync", func(t *testing.T) {
		t.Parallel()

		s := &model.Session{
			Location:  "https://www.youtube.com/watch?v=abc",
			HTML:      watchPage,
			Blocklist: []string{"SomeCreator"},
			Steps: []model.Step{
				{Action: model.ActionWait, Duration: time.Second},
				{Action: model.ActionInsert, Target: "#comments", HTML: thread3},
				{Action: model.ActionWait, Duration: 300 * time.Millisecond},
			},
		}
		res, err := newReplayer().Run(context.Background(), s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, id := range []string{"t1", "t3"} {
			if !hidden(t, res, id) {
				t.Errorf("%s should be hidden", id)
			}
		}
		if hidden(t, res, "t2") {
			t.Error("t2 should be visible")
		}
		if len(res.Report.Suppressed) != 2 {
			t.Errorf("suppressed = %d, want 2", len(res.Report.Suppressed))
		}
		if res.Report.Source != s.Location {
			t.Errorf("source = %q, want location", res.Report.Source)
		}
		if !res.Report.DateFiltered.After(epoch) {
			t.Error("report should carry the virtual end time")
		}

		s.Steps = append(s.Steps,
			model.Step{Action: model.ActionClick, Target: "#t2 .yt-quick-block-btn"},
			model.Step{Action: model.ActionUnblock, Identity: "somecreator"},
		)
		res, err = newReplayer().Run(context.Background(), s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hidden(t, res, "t1") || hidden(t, res, "t3") {
			t.Error("unblocked channel should be visible again")
		}
		if !hidden(t, res, "t2") {
			t.Error("clicked channel should be hidden")
		}
		if !slices.Equal(res.Blocklist, []string{"Friendly"}) {
			t.Errorf("blocklist = %v", res.Blocklist)
		}

		s.Steps = append(s.Steps, model.Step{Action: model.ActionSync, Identities: []string{"other"}})
		res, err = newReplayer().Run(context.Background(), s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hidden(t, res, "t2") {
			t.Error("sync should replace the blocklist")
		}
		if !hidden(t, res, "cv1") {
			t.Error("synced channel should be hidden")
		}
		if res.Stats.Syncs != 1 {
			t.Errorf("syncs = %d, want 1", res.Stats.Syncs)
		}
		if len(res.Report.Suppressed) != 1 || res.Report.Suppressed[0].Tag != "compact" {
			t.Errorf("suppressed = %+v", res.Report.Suppressed)
		}
	})

	t.Run("route change re-scans", func(t *testing.T) {
		t.Parallel()

		s := &model.Session{
			Location:  "https://www.youtube.com/watch?v=abc",
			HTML:      watchPage,
			Blocklist: []string{"SomeCreator"},
			Steps: []model.Step{
				{Action: model.ActionWait, Duration: time.Second},
				{Action: model.ActionNavigate, URL: "https://www.youtube.com/watch?v=def"},
				{Action: model.ActionReplace, Target: "#comments", HTML: thread3},
				{Action: model.ActionWait, Duration: time.Second},
			},
		}
		res, err := newReplayer().Run(context.Background(), s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !hidden(t, res, "t3") {
			t.Error("t3 should be hidden after the route settles")
		}
		if res.Stats.RouteChanges != 1 {
			t.Errorf("route changes = %d, want 1", res.Stats.RouteChanges)
		}
		if res.Report.Location != "https://www.youtube.com/watch?v=def" {
			t.Errorf("location = %q", res.Report.Location)
		}
	})

	t.Run("remove detaches matches", func(t *testing.T) {
		t.Parallel()

		s := &model.Session{
			Location: "https://www.youtube.com/watch?v=abc",
			HTML:     watchPage,
			Steps: []model.Step{
				{Action: model.ActionRemove, Target: "ytd-comment-thread-renderer"},
			},
		}
		res, err := newReplayer().Run(context.Background(), s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Document.Query("#t1") != nil {
			t.Error("t1 should be removed")
		}
	})

	t.Run("failing step keeps partial result", func(t *testing.T) {
		t.Parallel()

		s := &model.Session{
			Location: "https://www.youtube.com/watch?v=abc",
			HTML:     watchPage,
			Steps: []model.Step{
				{Action: model.ActionBlock, Identity: "other"},
				{Action: model.ActionClick, Target: "#missing"},
			},
		}
		res, err := newReplayer().Run(context.Background(), s)
		if !errors.Is(err, ErrTargetNotFound) {
			t.Fatalf("err = %v, want ErrTargetNotFound", err)
		}
		if !strings.Contains(err.Error(), "step 2 (click)") {
			t.Errorf("err = %v", err)
		}
		if res == nil || !res.Report.Failed() {
			t.Fatal("expected a failed partial report")
		}
		if !hidden(t, res, "cv1") {
			t.Error("steps before the failure should have applied")
		}
	})

	t.Run("invalid session", func(t *testing.T) {
		t.Parallel()

		res, err := newReplayer().Run(context.Background(), &model.Session{HTML: watchPage})
		if !errors.Is(err, model.ErrInvalidSession) {
			t.Errorf("err = %v, want ErrInvalidSession", err)
		}
		if res != nil {
			t.Error("no result expected")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &model.Session{
			Location: "https://www.youtube.com/watch?v=abc",
			HTML:     watchPage,
			Steps:    []model.Step{{Action: model.ActionBlock, Identity: "other"}},
		}
		if _, err := newReplayer().Run(ctx, s); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestRunFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "watch.html"), []byte(watchPage), 0600); err != nil {
		t.Fatal(err)
	}
	script := `location: https://www.youtube.com/watch?v=abc
page: watch.html
blocklist:
  - other
steps:
  - action: wait
    duration: 1s
  - action: insert
    target: "#comments"
    html: '` + thread3 + `'
  - action: block
    identity: SomeCreator
`
	path := filepath.Join(dir, "session.yaml")
	if err := os.WriteFile(path, []byte(script), 0600); err != nil {
		t.Fatal(err)
	}

	res, err := newReplayer().RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Report.Source != path {
		t.Errorf("source = %q, want %q", res.Report.Source, path)
	}
	for _, id := range []string{"t1", "t3", "cv1"} {
		if !hidden(t, res, id) {
			t.Errorf("%s should be hidden", id)
		}
	}

	t.Run("missing page", func(t *testing.T) {
		t.Parallel()

		bad := filepath.Join(t.TempDir(), "session.yaml")
		if err := os.WriteFile(bad, []byte("location: https://www.youtube.com/\npage: nope.html\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := newReplayer().RunFile(context.Background(), bad); err == nil {
			t.Error("expected error for missing page")
		}
	})

	t.Run("malformed script", func(t *testing.T) {
		t.Parallel()

		bad := filepath.Join(t.TempDir(), "session.yaml")
		if err := os.WriteFile(bad, []byte("steps: [oops"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSession(bad); !errors.Is(err, model.ErrInvalidSession) {
			t.Errorf("err = %v, want ErrInvalidSession", err)
		}
	})
}
