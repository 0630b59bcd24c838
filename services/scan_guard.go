package services

import (
	"sync"
	"time"

	"venue-system/internal/status"
)

// maxRecentKeys bounds the duplicate-scan memory per session.
const maxRecentKeys = 10

// DefaultScanCooldown is the minimum time between two admitted scans.
const DefaultScanCooldown = 30 * time.Second

// ScanGuard is the session-scoped duplicate-scan guard. It lives exactly as
// long as one scanning session and is never persisted.
//
// Admit mutates guard state under the lock, before the caller starts any
// asynchronous validation work. That ordering is what keeps two frames that
// decode back-to-back from both proceeding.
type ScanGuard struct {
	mu         sync.Mutex
	processing bool
	lastScanAt time.Time
	recent     map[string]time.Time
	order      []string
	cooldown   time.Duration
}

func NewScanGuard(cooldown time.Duration) *ScanGuard {
	if cooldown <= 0 {
		cooldown = DefaultScanCooldown
	}
	return &ScanGuard{
		recent:   make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// Admit decides whether a scan with the derived key may proceed. On
// admission the processing flag and last-scan timestamp are set synchronously
// before returning. A non-nil error means the scan is suppressed (dropped,
// not queued).
func (g *ScanGuard) Admit(key string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.processing {
		return status.ErrScanInFlight
	}
	if !g.lastScanAt.IsZero() && now.Sub(g.lastScanAt) < g.cooldown {
		return status.ErrScanCooldown
	}
	if seenAt, ok := g.recent[key]; ok && now.Sub(seenAt) < g.cooldown {
		return status.ErrDuplicateScan
	}

	g.processing = true
	g.lastScanAt = now
	return nil
}

// Done releases the guard after the downstream verification run completes.
// The key is remembered only for successful runs, so a rejected code can be
// retried once the cooldown elapses.
func (g *ScanGuard) Done(key string, success bool, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.processing = false
	if !success {
		return
	}

	if _, ok := g.recent[key]; !ok {
		g.order = append(g.order, key)
		if len(g.order) > maxRecentKeys {
			oldest := g.order[0]
			g.order = g.order[1:]
			delete(g.recent, oldest)
		}
	}
	g.recent[key] = now
}

// RecentKeys returns the remembered keys, oldest first.
func (g *ScanGuard) RecentKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]string, len(g.order))
	copy(keys, g.order)
	return keys
}

// Reset clears all guard state. Called when the scanning session stops.
func (g *ScanGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.processing = false
	g.lastScanAt = time.Time{}
	g.recent = make(map[string]time.Time)
	g.order = nil
}
