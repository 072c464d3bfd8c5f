package reconcile

import (
	"sync"
	"time"
)

// RoutePoller watches the navigation target by polling it.
//
// The host page changes its URL through the history API without any event
// the engine can subscribe to, so the target is compared every interval.
// onChange runs once per distinct change, with the value seen before and
// the new one; a change reverted between two polls goes unnoticed.
type RoutePoller struct {
	clock    Clock
	interval time.Duration

	// current reads the navigation target.
	current func() string
	// onChange is called with the previous and the new target.
	onChange func(prev, next string)
	// run executes each poll. The loop sets it to post so that polls run
	// on the goroutine that owns the document.
	run func(func())

	mu      sync.Mutex
	last    string
	timer   Timer
	running bool
}

// NewRoutePoller polls current every interval and calls onChange with the
// previous and new value whenever it differs from the last one seen.
func NewRoutePoller(clock Clock, interval time.Duration, current func() string, onChange func(prev, next string)) *RoutePoller {
	return &RoutePoller{
		clock:    clock,
		interval: interval,
		current:  current,
		onChange: onChange,
		run:      func(f func()) { f() },
		last:     current(),
	}
}

// Check compares the navigation target with the last one seen and reports
// whether it changed.
func (p *RoutePoller) Check() bool {
	next := p.current()

	p.mu.Lock()
	prev := p.last
	if next == prev {
		p.mu.Unlock()
		return false
	}
	p.last = next
	p.mu.Unlock()

	p.onChange(prev, next)
	return true
}

// Last returns the last navigation target seen.
func (p *RoutePoller) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Start begins polling. Starting a running poller is a no-op.
func (p *RoutePoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.scheduleLocked()
}

// Stop ends polling.
func (p *RoutePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *RoutePoller) scheduleLocked() {
	p.timer = p.clock.AfterFunc(p.interval, func() {
		p.run(func() {
			p.mu.Lock()
			running := p.running
			p.mu.Unlock()
			if !running {
				return
			}

			p.Check()

			p.mu.Lock()
			if p.running {
				p.scheduleLocked()
			}
			p.mu.Unlock()
		})
	})
}
