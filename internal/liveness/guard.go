// Package liveness gates hardware access behind a revocable reference count.
//
// Every code path that touches device registers first acquires a token from
// the device's Guard. Once the device has been permanently removed,
// acquisition fails and the remover waits for outstanding tokens to drain, so
// no register access can race a teardown.
package liveness

import (
	"errors"
	"sync"
)

// ErrRemoved is returned by Acquire after the device has been marked removed.
var ErrRemoved = errors.New("liveness: device removed")

// Guard is the reference-counted gate. The zero value is not usable; call
// NewGuard.
type Guard struct {
	mu      sync.Mutex
	drained *sync.Cond
	active  int
	removed bool
}

func NewGuard() *Guard {
	g := &Guard{}
	g.drained = sync.NewCond(&g.mu)
	return g
}

// Acquire returns a token holding the device alive for the duration of a
// hardware access. It fails once the device is removed.
func (g *Guard) Acquire() (*Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.removed {
		return nil, ErrRemoved
	}
	g.active++
	return &Token{g: g}, nil
}

// Removed reports whether the device has been marked removed.
func (g *Guard) Removed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removed
}

// Shutdown marks the device removed and blocks until every outstanding token
// has been released. It is idempotent; concurrent callers all block until the
// drain completes.
func (g *Guard) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = true
	for g.active > 0 {
		g.drained.Wait()
	}
}

// Token represents one in-flight hardware access.
type Token struct {
	g    *Guard
	once sync.Once
}

// Release returns the token. Releasing twice is a no-op.
func (t *Token) Release() {
	t.once.Do(func() {
		t.g.mu.Lock()
		t.g.active--
		if t.g.active == 0 {
			t.g.drained.Broadcast()
		}
		t.g.mu.Unlock()
	})
}
