package model

import (
	"errors"
	"testing"
	"time"
)

// TestPassStats tests accumulation of pass counters.
func TestPassStats(t *testing.T) {
	t.Parallel()

	var total PassStats
	total.Add(PassStats{Fragments: 3, Evaluated: 2, Cached: 1, Suppressed: 1})
	total.Add(PassStats{Fragments: 2, Evaluated: 1, Unattributable: 1})

	want := PassStats{Fragments: 5, Evaluated: 3, Cached: 1, Suppressed: 1, Unattributable: 1}
	if total != want {
		t.Errorf("expected %+v, got %+v", want, total)
	}
	if got := total.String(); got != "5 fragments, 3 evaluated, 1 cached, 1 suppressed, 1 unattributable" {
		t.Errorf("unexpected summary %q", got)
	}
}

// TestSummarize tests report aggregation.
func TestSummarize(t *testing.T) {
	t.Parallel()

	reports := []*FilterReport{
		{Stats: PassStats{Fragments: 4, Suppressed: 2}, Suppressed: make([]SuppressedItem, 2), Controls: 3},
		{Error: "fetch failed"},
		nil,
		{Stats: PassStats{Fragments: 1}, Controls: 1},
	}

	s := Summarize(reports)
	if s.Pages != 3 || s.Failed != 1 || s.Suppressed != 2 || s.Controls != 4 || s.Stats.Fragments != 5 {
		t.Errorf("unexpected summary %+v", s)
	}
}

// TestSessionValidate tests session script validation.
func TestSessionValidate(t *testing.T) {
	t.Parallel()

	base := func(steps ...Step) *Session {
		return &Session{Location: "https://www.youtube.com/", HTML: "<html></html>", Steps: steps}
	}

	tests := []struct {
		name    string
		session *Session
		wantErr bool
	}{
		{"valid", base(
			Step{Action: ActionInsert, Target: "#contents", HTML: "<p></p>"},
			Step{Action: ActionWait, Duration: 300 * time.Millisecond},
			Step{Action: ActionSync},
		), false},
		{"missing location", &Session{HTML: "x"}, true},
		{"missing page", &Session{Location: "https://www.youtube.com/"}, true},
		{"insert without html", base(Step{Action: ActionInsert, Target: "#x"}), true},
		{"click without target", base(Step{Action: ActionClick}), true},
		{"navigate without url", base(Step{Action: ActionNavigate}), true},
		{"block without identity", base(Step{Action: ActionBlock}), true},
		{"zero wait", base(Step{Action: ActionWait}), true},
		{"unknown action", base(Step{Action: "scroll"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSession) {
				t.Errorf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}
