package domain

import "errors"

var (
	ErrParticipantIDInvalid = errors.New("participant id invalid")
	ErrDisplayNameEmpty     = errors.New("display name empty")
	ErrDisplayNameTooLong   = errors.New("display name too long")
	ErrInvalidRole          = errors.New("invalid role")
	ErrUnknownPayloadKind   = errors.New("unknown payload kind")
	ErrBadRequest           = errors.New("malformed request")
	ErrUnknownRequest       = errors.New("unknown request type")

	ErrNotRegistered     = errors.New("connection not registered")
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrNotCalleeCapable  = errors.New("participant cannot receive calls")
	ErrNotCallerCapable  = errors.New("participant cannot request calls")
	ErrCalleeBusy        = errors.New("participant is in a session")
	ErrAlreadyInSession  = errors.New("participant already in a session")
	ErrNoCalleeAvailable = errors.New("no callee available")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotASessionMember = errors.New("not a session member")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrPeerUnavailable   = errors.New("peer unavailable")
	ErrSignalBufferFull  = errors.New("too many signals held for a ringing callee")
	ErrAdmissionDenied   = errors.New("admission denied")
	ErrShuttingDown      = errors.New("shutting down")
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrParticipantIDInvalid, "invalid_participant_id"},
	{ErrDisplayNameEmpty, "display_name_empty"},
	{ErrDisplayNameTooLong, "display_name_too_long"},
	{ErrInvalidRole, "invalid_role"},
	{ErrUnknownPayloadKind, "unknown_payload_kind"},
	{ErrBadRequest, "bad_request"},
	{ErrUnknownRequest, "unknown_request"},
	{ErrNotRegistered, "not_registered"},
	{ErrAlreadyRegistered, "already_registered"},
	{ErrNotCalleeCapable, "not_callee_capable"},
	{ErrNotCallerCapable, "not_caller_capable"},
	{ErrCalleeBusy, "busy"},
	{ErrAlreadyInSession, "already_in_session"},
	{ErrNoCalleeAvailable, "no_callee_available"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrNotASessionMember, "not_a_session_member"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrPeerUnavailable, "peer_unavailable"},
	{ErrSignalBufferFull, "signal_buffer_full"},
	{ErrAdmissionDenied, "rate_limited"},
	{ErrShuttingDown, "shutting_down"},
}

// ReasonCode maps an error to the stable code sent to clients.
func ReasonCode(err error) string {
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "internal_error"
}
