// Package media holds the shared arbiter that keeps recording and playback
// mutually exclusive for one editor session. Both controllers must win the
// arbiter before leaving Idle; losing is a fail-fast rejection, never a
// queued wait.
package media

import "sync"

// Arbiter is a non-blocking exclusivity token.
type Arbiter struct {
	mu     sync.Mutex
	holder string
}

func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// TryAcquire claims the token for who. Returns false if someone else holds
// it. Re-acquiring while already holding also fails: a controller releases
// before it starts again.
func (a *Arbiter) TryAcquire(who string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder != "" {
		return false
	}
	a.holder = who
	return true
}

// Release returns the token. Only the current holder can release; anything
// else is a no-op so a late double-release can't free someone else's claim.
func (a *Arbiter) Release(who string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == who {
		a.holder = ""
	}
}

// Holder reports who currently owns the token, empty when free.
func (a *Arbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}
