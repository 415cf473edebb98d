package app

import (
	"encoding/json"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
	"github.com/dkeye/callmatch/internal/metrics"
)

// Relay forwards an opaque negotiation payload from one session member to
// the other. The payload is never inspected. Signals for a callee that has
// not accepted yet are held on the session and delivered right after
// call-accepted; once the buffer is full they are refused with
// ErrSignalBufferFull. A send that fails is handled by the Policy; by default the
// session ends and the sender gets ErrPeerUnavailable.
func (s *Switchboard) Relay(cid domain.ConnectionID, sid domain.SessionID, kind domain.PayloadKind, payload json.RawMessage) error {
	if _, err := domain.ParsePayloadKind(string(kind)); err != nil {
		return err
	}

	s.mu.Lock()
	p, e, err := s.memberLocked(cid, sid)
	if err != nil {
		s.mu.Unlock()
		if err == errAlreadyEnded {
			err = domain.ErrSessionNotFound
		}
		return err
	}
	sess := e.Session
	sig := domain.Signal{Kind: kind, From: p.ID, Payload: payload}
	peer := sess.Peer(p.ID)

	if sess.State == domain.StateRinging && peer == sess.CalleeID {
		superseded := 0
		if kind == domain.PayloadOffer {
			superseded = len(sess.PendingSignals)
		}
		held := sess.Hold(sig)
		s.mu.Unlock()
		if superseded > 0 {
			metrics.SignalsRelayed.WithLabelValues(string(domain.PayloadCandidate), "superseded").Add(float64(superseded))
		}
		if !held {
			metrics.SignalsRelayed.WithLabelValues(string(kind), "dropped").Inc()
			return domain.ErrSignalBufferFull
		}
		metrics.SignalsRelayed.WithLabelValues(string(kind), "held").Inc()
		return nil
	}

	conn, ok := s.conns.Signal(peer)
	if !ok {
		var out outbox
		s.endLocked(e, domain.ReasonPeerUnavailable, &out, p.ID)
		s.observeLocked()
		s.mu.Unlock()
		out.flush(s.log)
		metrics.SignalsRelayed.WithLabelValues(string(kind), "dropped").Inc()
		return domain.ErrPeerUnavailable
	}
	view := *sess
	e.deliverMu.Lock()
	s.mu.Unlock()

	err = send(conn, core.NewSignalMessage(sid, sig))
	e.deliverMu.Unlock()
	if err == nil {
		metrics.SignalsRelayed.WithLabelValues(string(kind), "delivered").Inc()
		return nil
	}

	metrics.SignalsRelayed.WithLabelValues(string(kind), "dropped").Inc()
	s.log.Warn().Err(err).Str("sid", string(sid)).Str("to", string(peer)).Msg("relay send failed")
	if s.opts.Policy.OnSendFailure(&view, peer, err) == EndSession {
		s.endOnFailure(sid, p.ID)
	}
	return domain.ErrPeerUnavailable
}
