package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSession is returned when a session script cannot be replayed.
var ErrInvalidSession = errors.New("invalid session")

// Action is what a session step does.
type Action string

// Session step actions.
const (
	// ActionInsert appends HTML under Target.
	ActionInsert Action = "insert"
	// ActionReplace swaps the children of Target, like a route re-render.
	ActionReplace Action = "replace"
	// ActionRemove detaches every element matching Target.
	ActionRemove Action = "remove"
	// ActionNavigate changes the navigation target to URL.
	ActionNavigate Action = "navigate"
	// ActionBlock adds Identity to the blocklist.
	ActionBlock Action = "block"
	// ActionUnblock removes Identity from the blocklist.
	ActionUnblock Action = "unblock"
	// ActionClick activates the block control matching Target.
	ActionClick Action = "click"
	// ActionSync delivers Identities as a change made by another session.
	ActionSync Action = "sync"
	// ActionWait advances the clock by Duration.
	ActionWait Action = "wait"
)

// Session is a scripted browsing session.
type Session struct {
	// Location is the initial navigation target.
	Location string `yaml:"location" json:"location"`

	// Page is the initial document, as a file path relative to the script.
	Page string `yaml:"page" json:"page,omitempty"`

	// HTML is the initial document inline. Used when Page is empty.
	HTML string `yaml:"html" json:"html,omitempty"`

	// Blocklist seeds the store before the session starts.
	Blocklist []string `yaml:"blocklist" json:"blocklist,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one scripted event.
type Step struct {
	Action     Action        `yaml:"action" json:"action"`
	Target     string        `yaml:"target,omitempty" json:"target,omitempty"`
	HTML       string        `yaml:"html,omitempty" json:"html,omitempty"`
	URL        string        `yaml:"url,omitempty" json:"url,omitempty"`
	Identity   string        `yaml:"identity,omitempty" json:"identity,omitempty"`
	Identities []string      `yaml:"identities,omitempty" json:"identities,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Validate checks that every step carries the fields its action needs.
func (s *Session) Validate() error {
	if s.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidSession)
	}
	if s.Page == "" && s.HTML == "" {
		return fmt.Errorf("%w: page or html is required", ErrInvalidSession)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: step %d: %w", ErrInvalidSession, i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Action {
	case ActionInsert, ActionReplace:
		if st.Target == "" || st.HTML == "" {
			return fmt.Errorf("%s needs target and html", st.Action)
		}
	case ActionRemove, ActionClick:
		if st.Target == "" {
			return fmt.Errorf("%s needs target", st.Action)
		}
	case ActionNavigate:
		if st.URL == "" {
			return fmt.Errorf("%s needs url", st.Action)
		}
	case ActionBlock, ActionUnblock:
		if st.Identity == "" {
			return fmt.Errorf("%s needs identity", st.Action)
		}
	case ActionSync:
		// An empty list is a valid sync payload.
	case ActionWait:
		if st.Duration <= 0 {
			return fmt.Errorf("%s needs a positive duration", st.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}
