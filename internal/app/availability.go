package app

import "github.com/dkeye/callmatch/internal/domain"

// AvailabilityRegistry is the set of callees eligible for matching.
// Pick hands out the callee that has been waiting longest.
// Not safe for concurrent use; the Switchboard serializes access.
type AvailabilityRegistry struct {
	seq   uint64
	since map[domain.ParticipantID]uint64
}

func NewAvailabilityRegistry() *AvailabilityRegistry {
	return &AvailabilityRegistry{since: make(map[domain.ParticipantID]uint64)}
}

// Add reports whether pid was newly added.
func (a *AvailabilityRegistry) Add(pid domain.ParticipantID) bool {
	if _, ok := a.since[pid]; ok {
		return false
	}
	a.seq++
	a.since[pid] = a.seq
	return true
}

// Remove reports whether pid was present.
func (a *AvailabilityRegistry) Remove(pid domain.ParticipantID) bool {
	if _, ok := a.since[pid]; !ok {
		return false
	}
	delete(a.since, pid)
	return true
}

func (a *AvailabilityRegistry) Contains(pid domain.ParticipantID) bool {
	_, ok := a.since[pid]
	return ok
}

// Pick removes and returns one available callee.
func (a *AvailabilityRegistry) Pick() (domain.ParticipantID, bool) {
	var (
		best    domain.ParticipantID
		bestSeq uint64
		found   bool
	)
	for pid, seq := range a.since {
		if !found || seq < bestSeq {
			best, bestSeq, found = pid, seq, true
		}
	}
	if found {
		delete(a.since, best)
	}
	return best, found
}

func (a *AvailabilityRegistry) Count() int { return len(a.since) }
