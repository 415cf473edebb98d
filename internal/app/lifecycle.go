package app

import (
	"context"
	"errors"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
	"github.com/dkeye/callmatch/internal/metrics"
)

// errAlreadyEnded marks a member acting on a session that has just ended.
var errAlreadyEnded = errors.New("session already ended")

type Registration struct {
	Participant domain.Participant
	Available   int
}

// Register binds cid to pid. A previous connection of the same participant
// loses its session (reason reconnect) and its availability before the new
// connection is installed; the stale connection is closed afterwards.
func (s *Switchboard) Register(
	cid domain.ConnectionID,
	sig core.SignalConnection,
	pid domain.ParticipantID,
	role domain.Role,
	displayName string,
) (Registration, error) {
	p, err := domain.NewParticipant(cid, pid, role, displayName)
	if err != nil {
		return Registration{}, err
	}

	var (
		out   outbox
		stale core.SignalConnection
	)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Registration{}, domain.ErrShuttingDown
	}
	if _, ok := s.conns.FindByConnection(cid); ok {
		s.mu.Unlock()
		return Registration{}, domain.ErrAlreadyRegistered
	}
	if old, ok := s.conns.Find(pid); ok {
		if e, ok := s.sessions.Of(pid); ok {
			sess := e.Session
			s.endLocked(e, domain.ReasonReconnect, &out, sess.Peer(pid))
		}
		if s.avail.Remove(pid) {
			s.broadcastAvailabilityLocked(&out)
		}
		stale, _ = s.conns.Signal(pid)
		s.conns.Remove(old.Connection)
		s.log.Info().Str("pid", string(pid)).Str("cid", string(old.Connection)).Msg("replacing stale connection")
	}
	s.conns.Put(p, sig)
	reg := Registration{Participant: *p, Available: s.avail.Count()}
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	if stale != nil && stale != sig {
		stale.Close()
	}
	s.log.Info().Str("pid", string(pid)).Str("cid", string(cid)).Str("role", string(role)).Msg("registered")
	return reg, nil
}

// Unregister drops cid, ending its session (reason disconnect) and removing
// it from the availability set. Unknown connections are ignored.
func (s *Switchboard) Unregister(cid domain.ConnectionID) {
	var out outbox
	s.mu.Lock()
	p, ok := s.conns.FindByConnection(cid)
	if !ok {
		s.mu.Unlock()
		return
	}
	if e, ok := s.sessions.Of(p.ID); ok {
		s.endLocked(e, domain.ReasonDisconnect, &out, e.Session.Peer(p.ID))
	}
	if s.avail.Remove(p.ID) {
		p.Available = false
		s.broadcastAvailabilityLocked(&out)
	}
	s.conns.Remove(cid)
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	s.log.Info().Str("pid", string(p.ID)).Str("cid", string(cid)).Msg("unregistered")
}

// SetAvailable marks a callee as (un)available and returns the new count.
// A callee in a session cannot become available.
func (s *Switchboard) SetAvailable(ctx context.Context, cid domain.ConnectionID, available bool) (int, error) {
	p, err := s.participant(cid)
	if err != nil {
		return 0, err
	}
	if !p.Role.CanReceive() {
		return 0, domain.ErrNotCalleeCapable
	}
	if err := s.admit(ctx, p.ID, core.ActionSetAvailability); err != nil {
		return 0, err
	}

	var out outbox
	s.mu.Lock()
	cur, ok := s.conns.FindByConnection(cid)
	if !ok {
		s.mu.Unlock()
		return 0, domain.ErrNotRegistered
	}
	if available && s.closed {
		s.mu.Unlock()
		return 0, domain.ErrShuttingDown
	}
	if available && cur.Busy() {
		s.mu.Unlock()
		return 0, domain.ErrCalleeBusy
	}
	var changed bool
	if available {
		changed = s.avail.Add(cur.ID)
	} else {
		changed = s.avail.Remove(cur.ID)
	}
	cur.Available = available
	if changed {
		s.broadcastAvailabilityLocked(&out)
	}
	count := s.avail.Count()
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	s.log.Info().Str("pid", string(p.ID)).Bool("available", available).Int("count", count).Msg("availability set")
	return count, nil
}

// Accept moves a ringing session to active. Both members get call-accepted,
// then any caller signals held while ringing are delivered to the callee.
func (s *Switchboard) Accept(cid domain.ConnectionID, sid domain.SessionID) error {
	s.mu.Lock()
	p, e, err := s.memberLocked(cid, sid)
	if err != nil {
		s.mu.Unlock()
		return transitionErr(err)
	}
	sess := e.Session
	if p.ID != sess.CalleeID {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	now := s.opts.Now()
	if err := sess.Accept(now); err != nil {
		s.mu.Unlock()
		return err
	}
	e.stopTimer()
	metrics.RingDuration.Observe(now.Sub(sess.CreatedAt).Seconds())

	msg := core.CallAccepted{Type: core.TypeCallAccepted, SessionID: sid}
	var out outbox
	s.notifyLocked(&out, sess.CallerID, msg)
	s.notifyLocked(&out, sess.CalleeID, msg)
	for _, sig := range sess.DrainPending() {
		s.notifyLocked(&out, sess.CalleeID, core.NewSignalMessage(sid, sig))
		metrics.SignalsRelayed.WithLabelValues(string(sig.Kind), "delivered").Inc()
	}
	s.observeLocked()
	e.deliverMu.Lock()
	s.mu.Unlock()

	out.flush(s.log)
	e.deliverMu.Unlock()
	s.log.Info().Str("sid", string(sid)).Str("caller", string(sess.CallerID)).Str("callee", string(sess.CalleeID)).Msg("call accepted")
	return nil
}

// Reject ends a ringing session on behalf of the callee, who goes straight
// back to the availability set.
func (s *Switchboard) Reject(cid domain.ConnectionID, sid domain.SessionID) error {
	var out outbox
	s.mu.Lock()
	p, e, err := s.memberLocked(cid, sid)
	if err != nil {
		s.mu.Unlock()
		return transitionErr(err)
	}
	sess := e.Session
	if p.ID != sess.CalleeID || sess.State != domain.StateRinging {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	s.endLocked(e, domain.ReasonRejected, &out, sess.CallerID)
	p.Available = true
	if s.avail.Add(p.ID) {
		s.broadcastAvailabilityLocked(&out)
	}
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	return nil
}

// End terminates a session on behalf of either member and notifies the other.
// Ending a session that already ended is a no-op reported as false, together
// with the reason it actually ended for.
func (s *Switchboard) End(cid domain.ConnectionID, sid domain.SessionID) (domain.EndReason, bool, error) {
	var out outbox
	s.mu.Lock()
	p, e, err := s.memberLocked(cid, sid)
	if err == errAlreadyEnded {
		t, _ := s.sessions.Ended(sid)
		s.mu.Unlock()
		return t.reason, false, nil
	}
	if err != nil {
		s.mu.Unlock()
		return "", false, err
	}
	ended := s.endLocked(e, domain.ReasonEnded, &out, e.Session.Peer(p.ID))
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
	return domain.ReasonEnded, ended, nil
}

// expire fires when a ringing session was not answered in time. Both members
// are told; the callee has to opt in again to become available.
func (s *Switchboard) expire(sid domain.SessionID) {
	var out outbox
	s.mu.Lock()
	e, ok := s.sessions.Get(sid)
	if !ok || e.Session.State != domain.StateRinging {
		s.mu.Unlock()
		return
	}
	sess := e.Session
	s.endLocked(e, domain.ReasonTimeout, &out, sess.CallerID, sess.CalleeID)
	s.observeLocked()
	s.mu.Unlock()

	out.flush(s.log)
}

// endOnFailure ends sid after a failed relay send, if it is still live.
func (s *Switchboard) endOnFailure(sid domain.SessionID, notify domain.ParticipantID) {
	var out outbox
	s.mu.Lock()
	if e, ok := s.sessions.Get(sid); ok {
		s.endLocked(e, domain.ReasonPeerUnavailable, &out, notify)
		s.observeLocked()
	}
	s.mu.Unlock()
	out.flush(s.log)
}

// endLocked performs the single terminal transition of a session: both
// members are released, the timer is stopped, call-ended is queued for
// notify, and the session leaves the store. It reports false when the
// session had already ended. mu must be held.
func (s *Switchboard) endLocked(e *sessionEntry, reason domain.EndReason, out *outbox, notify ...domain.ParticipantID) bool {
	sess := e.Session
	if !sess.End(reason, s.opts.Now()) {
		return false
	}
	e.stopTimer()
	for _, pid := range []domain.ParticipantID{sess.CallerID, sess.CalleeID} {
		if p, ok := s.conns.Find(pid); ok && p.ActiveSession == sess.ID {
			p.ActiveSession = ""
		}
	}
	msg := core.NewCallEnded(sess.ID, reason)
	for _, pid := range notify {
		if pid != "" {
			s.notifyLocked(out, pid, msg)
		}
	}
	s.sessions.Remove(sess.ID)
	metrics.SessionsEnded.WithLabelValues(string(reason)).Inc()
	s.log.Info().
		Str("sid", string(sess.ID)).
		Str("caller", string(sess.CallerID)).
		Str("callee", string(sess.CalleeID)).
		Str("reason", string(reason)).
		Msg("session ended")
	return true
}

// memberLocked resolves cid and checks it is a member of sid. A member of a
// recently ended session gets errAlreadyEnded. mu must be held.
func (s *Switchboard) memberLocked(cid domain.ConnectionID, sid domain.SessionID) (*domain.Participant, *sessionEntry, error) {
	p, ok := s.conns.FindByConnection(cid)
	if !ok {
		return nil, nil, domain.ErrNotRegistered
	}
	if e, ok := s.sessions.Get(sid); ok {
		if !e.Session.HasMember(p.ID) {
			return nil, nil, domain.ErrNotASessionMember
		}
		return p, e, nil
	}
	if t, ok := s.sessions.Ended(sid); ok {
		if p.ID != t.caller && p.ID != t.callee {
			return nil, nil, domain.ErrNotASessionMember
		}
		return nil, nil, errAlreadyEnded
	}
	return nil, nil, domain.ErrSessionNotFound
}

func transitionErr(err error) error {
	if err == errAlreadyEnded {
		return domain.ErrInvalidTransition
	}
	return err
}
