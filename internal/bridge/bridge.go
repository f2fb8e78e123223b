// Package bridge owns the open rule session for a callback-driven front end.
// Input callbacks, renders and save results may arrive on different
// goroutines, so every session access goes through one lock. Redraw
// notifications raised while the lock is held are deferred until it is
// released, which lets the notified code call straight back into the bridge.
package bridge

import (
	"errors"
	"sync"

	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/rules"
)

// ErrNotOpen is returned when no camera session is attached.
var ErrNotOpen = errors.New("no camera open")

type Bridge struct {
	mu      sync.Mutex
	session *rules.Session
	notify  func()
	pending bool
}

func New() *Bridge { return &Bridge{} }

// OnRedraw sets the function run after any session change that needs a
// redraw. fn runs without the bridge lock held.
func (b *Bridge) OnRedraw(fn func()) {
	b.mu.Lock()
	b.notify = fn
	b.mu.Unlock()
}

// Attach makes s the open session, replacing any previous one. The new
// session always triggers a redraw.
func (b *Bridge) Attach(s *rules.Session) {
	b.mu.Lock()
	if b.session != nil {
		b.session.Editor().OnChange(nil)
	}
	b.session = s
	s.Editor().OnChange(func(editor.State) {
		b.pending = true
	})
	b.pending = true
	b.unlock()
}

// Do runs fn with the open session under the bridge lock.
func (b *Bridge) Do(fn func(s *rules.Session) any) (any, error) {
	b.mu.Lock()
	defer b.unlock()
	if b.session == nil {
		return nil, ErrNotOpen
	}
	return fn(b.session), nil
}

// Apply hands a save result back to s. It reports false when the result is
// stale or s is no longer the open session.
func (b *Bridge) Apply(s *rules.Session, res rules.SaveResult) bool {
	b.mu.Lock()
	defer b.unlock()
	if b.session != s {
		return false
	}
	return s.Apply(res)
}

// unlock releases the lock and then delivers a pending redraw.
func (b *Bridge) unlock() {
	fn := b.notify
	fire := b.pending && fn != nil
	b.pending = false
	b.mu.Unlock()
	if fire {
		fn()
	}
}
