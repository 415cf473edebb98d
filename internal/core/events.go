package core

import (
	"encoding/json"

	"github.com/dkeye/callmatch/internal/domain"
)

// Outbound message types.
const (
	TypeRegistered         = "registered"
	TypeAvailabilityUpdate = "availability-update"
	TypeAvailability       = "availability"
	TypeCallConnecting     = "call-connecting"
	TypeNoCalleeAvailable  = "no-callee-available"
	TypeIncomingCall       = "incoming-call"
	TypeCallAccepted       = "call-accepted"
	TypeCallEnded          = "call-ended"
	TypeWhoAmI             = "whoami"
	TypePong               = "pong"
	TypeError              = "error"
)

type AvailabilityUpdate struct {
	Type      string `json:"type"`
	Available int    `json:"available"`
}

type CallConnecting struct {
	Type      string               `json:"type"`
	SessionID domain.SessionID     `json:"sessionId"`
	CalleeID  domain.ParticipantID `json:"calleeId"`
}

type NoCalleeAvailable struct {
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
}

type IncomingCall struct {
	Type              string           `json:"type"`
	SessionID         domain.SessionID `json:"sessionId"`
	CallerDisplayName string           `json:"callerDisplayName"`
}

type CallAccepted struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
}

type CallEnded struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	Reason    domain.EndReason `json:"reason"`
}

// SignalMessage carries an offer, answer or candidate verbatim.
type SignalMessage struct {
	Type      domain.PayloadKind   `json:"type"`
	SessionID domain.SessionID     `json:"sessionId"`
	From      domain.ParticipantID `json:"from"`
	Payload   json.RawMessage      `json:"payload"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Request string `json:"request,omitempty"`
	Error   string `json:"error"`
}

func NewCallEnded(sid domain.SessionID, reason domain.EndReason) CallEnded {
	return CallEnded{Type: TypeCallEnded, SessionID: sid, Reason: reason}
}

func NewSignalMessage(sid domain.SessionID, sig domain.Signal) SignalMessage {
	return SignalMessage{Type: sig.Kind, SessionID: sid, From: sig.From, Payload: sig.Payload}
}

func NewErrorMessage(request string, err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Request: request, Error: domain.ReasonCode(err)}
}
