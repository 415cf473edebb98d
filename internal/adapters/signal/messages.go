package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/callmatch/internal/domain"
)

// Inbound request types.
const (
	reqRegister        = "register"
	reqSetAvailability = "set-availability"
	reqRequestCall     = "request-call"
	reqAcceptCall      = "accept-call"
	reqRejectCall      = "reject-call"
	reqEndCall         = "end-call"
	reqPing            = "ping"
	reqWhoAmI          = "whoami"
)

type envelope struct {
	Type string `json:"type"`
}

type registerRequest struct {
	ParticipantID string `json:"participantId" validate:"omitempty,max=64"`
	Role          string `json:"role" validate:"required"`
	DisplayName   string `json:"displayName" validate:"required"`
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type signalRequest struct {
	SessionID string          `json:"sessionId" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

type registeredMessage struct {
	Type          string               `json:"type"`
	ParticipantID domain.ParticipantID `json:"participantId"`
	ConnectionID  domain.ConnectionID  `json:"connectionId"`
	Role          domain.Role          `json:"role"`
	DisplayName   string               `json:"displayName"`
	Available     int                  `json:"available"`
	ICEServers    []webrtc.ICEServer   `json:"iceServers"`
}

type availabilityMessage struct {
	Type      string `json:"type"`
	Available bool   `json:"available"`
	Count     int    `json:"count"`
}

type whoAmIMessage struct {
	Type string `json:"type"`
	domain.Participant
}
