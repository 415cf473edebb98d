package app

import (
	"context"
	"time"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type CallHandle struct {
	SessionID domain.SessionID
	CalleeID  domain.ParticipantID
}

// RequestCall matches the caller behind cid with the longest-waiting
// available callee. Popping the callee, creating the ringing session and
// binding both members happen in one critical section, so a callee is never
// handed to two callers.
func (s *Switchboard) RequestCall(ctx context.Context, cid domain.ConnectionID) (CallHandle, error) {
	caller, err := s.participant(cid)
	if err != nil {
		return CallHandle{}, err
	}
	if !caller.Role.CanCall() {
		return CallHandle{}, domain.ErrNotCallerCapable
	}
	if caller.Busy() {
		return CallHandle{}, domain.ErrAlreadyInSession
	}
	if err := s.admit(ctx, caller.ID, core.ActionRequestCall); err != nil {
		return CallHandle{}, err
	}
	callerName := s.displayName(ctx, caller)

	var out outbox
	s.mu.Lock()
	cur, ok := s.conns.FindByConnection(cid)
	if !ok {
		s.mu.Unlock()
		return CallHandle{}, domain.ErrNotRegistered
	}
	if s.closed {
		s.mu.Unlock()
		return CallHandle{}, domain.ErrShuttingDown
	}
	if cur.Busy() {
		s.mu.Unlock()
		return CallHandle{}, domain.ErrAlreadyInSession
	}
	callee, ok := s.pickCalleeLocked()
	if !ok {
		s.mu.Unlock()
		s.log.Debug().Str("pid", string(cur.ID)).Msg("no callee available")
		return CallHandle{}, domain.ErrNoCalleeAvailable
	}

	sess := domain.NewCallSession(s.opts.NewSessionID(), cur.ID, callee.ID, s.opts.Now())
	e := s.sessions.Put(sess)
	cur.ActiveSession = sess.ID
	callee.ActiveSession = sess.ID
	callee.Available = false
	sid := sess.ID
	e.timer = time.AfterFunc(s.opts.RingTimeout, func() { s.expire(sid) })

	s.notifyLocked(&out, callee.ID, core.IncomingCall{
		Type:              core.TypeIncomingCall,
		SessionID:         sid,
		CallerDisplayName: callerName,
	})
	s.broadcastAvailabilityLocked(&out)
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	s.log.Info().Str("sid", string(sid)).Str("caller", string(cur.ID)).Str("callee", string(callee.ID)).Msg("session ringing")
	return CallHandle{SessionID: sid, CalleeID: callee.ID}, nil
}

// pickCalleeLocked pops available callees until one is registered and idle.
// Anything else found in the set is an invariant breach and is discarded.
func (s *Switchboard) pickCalleeLocked() (*domain.Participant, bool) {
	for {
		pid, ok := s.avail.Pick()
		if !ok {
			return nil, false
		}
		p, ok := s.conns.Find(pid)
		if ok && !p.Busy() && p.Role.CanReceive() {
			return p, true
		}
		s.log.Error().Str("pid", string(pid)).Msg("stale entry in availability set")
		if ok {
			p.Available = false
		}
	}
}
