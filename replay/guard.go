// Package replay implements single-use tracking of signature nonces with a
// time-bounded retention window.
package replay

import (
	"sync"
	"time"

	"github.com/sage-x-project/agent-gateway/internal/metrics"
)

// Result is the outcome of checking a nonce against the guard's table.
type Result int

const (
	// Fresh means the nonce had not been seen before and is now recorded.
	Fresh Result = iota
	// Replay means the nonce is already present in the table.
	Replay
)

// entry is a single tracked nonce and the time it was first seen.
type entry struct {
	firstSeenAt time.Time
}

// Guard provides single-use nonce tracking with a time-bounded retention
// window and periodic eviction. The zero value is not usable; construct
// with NewGuard.
type Guard struct {
	ttl time.Duration

	mu        sync.Mutex
	nonces    map[string]entry
	now       func() time.Time
	stopSweep chan struct{}
}

// NewGuard creates a Guard with the given retention TTL. Callers should
// call StartSweep to run the periodic eviction goroutine, and StopSweep to
// shut it down on process exit.
func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		ttl:       ttl,
		nonces:    make(map[string]entry),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}
}

// CheckAndRecord implements the guard's sole public contract: if nonce is
// already present, it returns Replay; otherwise it inserts the nonce and
// returns Fresh. A nonce present but past its TTL and not yet swept is
// still treated as used.
func (g *Guard) CheckAndRecord(nonce string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, used := g.nonces[nonce]; used {
		metrics.ReplayRejections.Inc()
		return Replay
	}

	g.nonces[nonce] = entry{firstSeenAt: g.now()}
	return Fresh
}

// Size returns the current number of tracked nonces.
func (g *Guard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nonces)
}

// Sweep removes every entry older than the guard's TTL. It is safe to call
// concurrently with CheckAndRecord.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for nonce, e := range g.nonces {
		if now.Sub(e.firstSeenAt) > g.ttl {
			delete(g.nonces, nonce)
		}
	}
	metrics.NonceTableSize.Set(float64(len(g.nonces)))
}

// StartSweep runs Sweep on the given interval until StopSweep is called or
// the process exits.
func (g *Guard) StartSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep()
			case <-g.stopSweep:
				return
			}
		}
	}()
}

// StopSweep stops the background sweep goroutine started by StartSweep. It
// is safe to call at most once.
func (g *Guard) StopSweep() {
	close(g.stopSweep)
}
