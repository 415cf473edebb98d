package app

import (
	"sync"
	"time"

	"github.com/dkeye/callmatch/internal/domain"
)

// tombstoneCap bounds how many ended sessions are remembered for idempotent
// terminal events.
const tombstoneCap = 1024

type sessionEntry struct {
	Session *domain.CallSession
	timer   *time.Timer

	// deliverMu orders deliveries toward the session members. It is taken
	// while the Switchboard lock is held and kept after it is released.
	deliverMu sync.Mutex
}

func (e *sessionEntry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

type tombstone struct {
	caller, callee domain.ParticipantID
	reason         domain.EndReason
}

// SessionStore holds live sessions by id and by member.
// Not safe for concurrent use; the Switchboard serializes access.
type SessionStore struct {
	byID          map[domain.SessionID]*sessionEntry
	byParticipant map[domain.ParticipantID]domain.SessionID

	ended map[domain.SessionID]tombstone
	order []domain.SessionID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:          make(map[domain.SessionID]*sessionEntry),
		byParticipant: make(map[domain.ParticipantID]domain.SessionID),
		ended:         make(map[domain.SessionID]tombstone),
	}
}

func (st *SessionStore) Put(s *domain.CallSession) *sessionEntry {
	e := &sessionEntry{Session: s}
	st.byID[s.ID] = e
	st.byParticipant[s.CallerID] = s.ID
	st.byParticipant[s.CalleeID] = s.ID
	return e
}

func (st *SessionStore) Get(sid domain.SessionID) (*sessionEntry, bool) {
	e, ok := st.byID[sid]
	return e, ok
}

// Of returns the live session pid belongs to.
func (st *SessionStore) Of(pid domain.ParticipantID) (*sessionEntry, bool) {
	sid, ok := st.byParticipant[pid]
	if !ok {
		return nil, false
	}
	return st.Get(sid)
}

// Remove destroys an ended session and remembers its members.
func (st *SessionStore) Remove(sid domain.SessionID) {
	e, ok := st.byID[sid]
	if !ok {
		return
	}
	s := e.Session
	delete(st.byID, sid)
	for _, pid := range []domain.ParticipantID{s.CallerID, s.CalleeID} {
		if st.byParticipant[pid] == sid {
			delete(st.byParticipant, pid)
		}
	}

	if len(st.order) >= tombstoneCap {
		delete(st.ended, st.order[0])
		st.order = st.order[1:]
	}
	st.ended[sid] = tombstone{caller: s.CallerID, callee: s.CalleeID, reason: s.EndReason}
	st.order = append(st.order, sid)
}

// Ended returns the tombstone of a recently removed session.
func (st *SessionStore) Ended(sid domain.SessionID) (tombstone, bool) {
	t, ok := st.ended[sid]
	return t, ok
}

func (st *SessionStore) Counts() (ringing, active int) {
	for _, e := range st.byID {
		switch e.Session.State {
		case domain.StateRinging:
			ringing++
		case domain.StateActive:
			active++
		}
	}
	return ringing, active
}

func (st *SessionStore) Len() int { return len(st.byID) }

// All returns every live entry.
func (st *SessionStore) All() []*sessionEntry {
	out := make([]*sessionEntry, 0, len(st.byID))
	for _, e := range st.byID {
		out = append(out, e)
	}
	return out
}
