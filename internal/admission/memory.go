// Package admission decides whether a participant may perform a rate-limited
// action (requesting a call, toggling availability).
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type key struct {
	pid    domain.ParticipantID
	action core.ActionKind
}

// SlidingWindow allows at most limit actions per participant and action kind
// within any interval. Histories older than the window are swept once per
// interval.
type SlidingWindow struct {
	mu        sync.Mutex
	history   map[key][]time.Time
	limit     int
	interval  time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewSlidingWindow(limit int, interval time.Duration) *SlidingWindow {
	return &SlidingWindow{
		history:  make(map[key][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *SlidingWindow) Allow(_ context.Context, pid domain.ParticipantID, action core.ActionKind) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.lastSweep) >= rl.interval {
		rl.sweep(windowStart)
		rl.lastSweep = now
	}
	k := key{pid: pid, action: action}

	attempts := rl.history[k]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[k] = fresh
		return false
	}
	rl.history[k] = append(fresh, now)
	return true
}

// sweep drops keys whose newest attempt fell out of the window; mu must be held.
func (rl *SlidingWindow) sweep(windowStart time.Time) {
	for k, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, k)
		}
	}
}
