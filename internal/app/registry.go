package app

import (
	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type connEntry struct {
	Participant *domain.Participant
	Signal      core.SignalConnection
}

// ConnectionRegistry maps live connections to participants and back.
// Not safe for concurrent use; the Switchboard serializes access.
type ConnectionRegistry struct {
	byConn map[domain.ConnectionID]*connEntry
	byID   map[domain.ParticipantID]*connEntry
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		byConn: make(map[domain.ConnectionID]*connEntry),
		byID:   make(map[domain.ParticipantID]*connEntry),
	}
}

// Put installs p on conn. The caller removes any previous entry for p.ID first.
func (r *ConnectionRegistry) Put(p *domain.Participant, conn core.SignalConnection) {
	e := &connEntry{Participant: p, Signal: conn}
	r.byConn[p.Connection] = e
	r.byID[p.ID] = e
}

// Remove drops the entry bound to cid. The identity index is only cleared
// when it still points at cid, so a stale connection cannot evict its
// replacement.
func (r *ConnectionRegistry) Remove(cid domain.ConnectionID) (*connEntry, bool) {
	e, ok := r.byConn[cid]
	if !ok {
		return nil, false
	}
	delete(r.byConn, cid)
	if cur, ok := r.byID[e.Participant.ID]; ok && cur == e {
		delete(r.byID, e.Participant.ID)
	}
	return e, true
}

func (r *ConnectionRegistry) Find(pid domain.ParticipantID) (*domain.Participant, bool) {
	e, ok := r.byID[pid]
	if !ok {
		return nil, false
	}
	return e.Participant, true
}

func (r *ConnectionRegistry) FindByConnection(cid domain.ConnectionID) (*domain.Participant, bool) {
	e, ok := r.byConn[cid]
	if !ok {
		return nil, false
	}
	return e.Participant, true
}

// Signal returns the current connection of pid.
func (r *ConnectionRegistry) Signal(pid domain.ParticipantID) (core.SignalConnection, bool) {
	e, ok := r.byID[pid]
	if !ok || e.Signal == nil {
		return nil, false
	}
	return e.Signal, true
}

func (r *ConnectionRegistry) Len() int { return len(r.byConn) }

// Callers returns the connections of every caller-capable participant.
func (r *ConnectionRegistry) Callers() []core.SignalConnection {
	out := make([]core.SignalConnection, 0, len(r.byConn))
	for _, e := range r.byConn {
		if e.Participant.Role.CanCall() && e.Signal != nil {
			out = append(out, e.Signal)
		}
	}
	return out
}
