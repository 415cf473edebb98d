package domain

import (
	"encoding/json"
	"time"
)

type SessionID string

// MaxPendingSignals bounds the candidates held for a ringing callee.
const MaxPendingSignals = 64

type SessionState int

const (
	StateRinging SessionState = iota
	StateActive
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

func (s SessionState) Live() bool { return s == StateRinging || s == StateActive }

// EndReason travels to clients in call-ended.
type EndReason string

const (
	ReasonEnded           EndReason = "ended"
	ReasonRejected        EndReason = "rejected"
	ReasonTimeout         EndReason = "timeout"
	ReasonDisconnect      EndReason = "disconnect"
	ReasonReconnect       EndReason = "reconnect"
	ReasonPeerUnavailable EndReason = "peer_unavailable"
	ReasonShutdown        EndReason = "shutdown"
)

type PayloadKind string

const (
	PayloadOffer     PayloadKind = "offer"
	PayloadAnswer    PayloadKind = "answer"
	PayloadCandidate PayloadKind = "candidate"
)

func ParsePayloadKind(s string) (PayloadKind, error) {
	switch k := PayloadKind(s); k {
	case PayloadOffer, PayloadAnswer, PayloadCandidate:
		return k, nil
	}
	return "", ErrUnknownPayloadKind
}

// Signal is one opaque negotiation message.
type Signal struct {
	Kind    PayloadKind
	From    ParticipantID
	Payload json.RawMessage
}

// CallSession is a one-to-one call between a caller and a callee.
// Timestamps are zero until the matching transition happens.
type CallSession struct {
	ID         SessionID
	CallerID   ParticipantID
	CalleeID   ParticipantID
	State      SessionState
	CreatedAt  time.Time
	AcceptedAt time.Time
	EndedAt    time.Time
	EndReason  EndReason

	// PendingOffer and PendingSignals hold caller signals addressed to a
	// callee that has not accepted yet.
	PendingOffer   *Signal
	PendingSignals []Signal
}

func NewCallSession(id SessionID, caller, callee ParticipantID, now time.Time) *CallSession {
	return &CallSession{
		ID:        id,
		CallerID:  caller,
		CalleeID:  callee,
		State:     StateRinging,
		CreatedAt: now,
	}
}

func (s *CallSession) HasMember(pid ParticipantID) bool {
	return pid == s.CallerID || pid == s.CalleeID
}

// Peer returns the other member, or "" when pid is not a member.
func (s *CallSession) Peer(pid ParticipantID) ParticipantID {
	switch pid {
	case s.CallerID:
		return s.CalleeID
	case s.CalleeID:
		return s.CallerID
	}
	return ""
}

// Accept moves Ringing to Active.
func (s *CallSession) Accept(now time.Time) error {
	if s.State != StateRinging {
		return ErrInvalidTransition
	}
	s.State = StateActive
	s.AcceptedAt = now
	return nil
}

// End moves any live state to Ended. It reports false when the session had
// already ended, which callers treat as a no-op.
func (s *CallSession) End(reason EndReason, now time.Time) bool {
	if !s.State.Live() {
		return false
	}
	s.State = StateEnded
	s.EndedAt = now
	s.EndReason = reason
	s.PendingOffer = nil
	s.PendingSignals = nil
	return true
}

// Hold buffers a caller signal until the callee accepts. A newer offer
// replaces an older one together with the candidates gathered for it.
// It reports false when the buffer is full and the signal was dropped.
func (s *CallSession) Hold(sig Signal) bool {
	if sig.Kind == PayloadOffer {
		s.PendingOffer = &sig
		s.PendingSignals = nil
		return true
	}
	if len(s.PendingSignals) >= MaxPendingSignals {
		return false
	}
	s.PendingSignals = append(s.PendingSignals, sig)
	return true
}

// DrainPending returns the buffered signals in delivery order and clears them.
func (s *CallSession) DrainPending() []Signal {
	out := make([]Signal, 0, len(s.PendingSignals)+1)
	if s.PendingOffer != nil {
		out = append(out, *s.PendingOffer)
	}
	out = append(out, s.PendingSignals...)
	s.PendingOffer = nil
	s.PendingSignals = nil
	return out
}
