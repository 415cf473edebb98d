// Package domain contains entities without transport, just call meta-data
package domain

import "strings"

const (
	MaxParticipantIDLen = 64
	MaxDisplayNameLen   = 36
)

type (
	ParticipantID string
	ConnectionID  string
)

// Role is fixed at registration.
type Role string

const (
	// RoleUser may request calls.
	RoleUser Role = "user"
	// RoleTherapist may be marked available and receive calls.
	RoleTherapist Role = "therapist"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleTherapist:
		return RoleTherapist, nil
	}
	return "", ErrInvalidRole
}

func (r Role) CanCall() bool    { return r == RoleUser }
func (r Role) CanReceive() bool { return r == RoleTherapist }

// Participant is the registry's view of one live connection.
// ActiveSession is empty when the participant is idle.
type Participant struct {
	ID            ParticipantID `json:"participantId"`
	Connection    ConnectionID  `json:"connectionId"`
	Role          Role          `json:"role"`
	DisplayName   string        `json:"displayName"`
	Available     bool          `json:"available"`
	ActiveSession SessionID     `json:"activeSessionId,omitempty"`
}

// NewParticipant avoids raw literals in adapters and validates the identity fields.
func NewParticipant(cid ConnectionID, pid ParticipantID, role Role, displayName string) (*Participant, error) {
	if pid == "" || len(pid) > MaxParticipantIDLen {
		return nil, ErrParticipantIDInvalid
	}
	if !role.CanCall() && !role.CanReceive() {
		return nil, ErrInvalidRole
	}
	p := &Participant{ID: pid, Connection: cid, Role: role}
	if err := p.SetDisplayName(displayName); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Participant) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	p.DisplayName = name
	return nil
}

// Busy reports whether the participant is a member of a live session.
func (p *Participant) Busy() bool { return p.ActiveSession != "" }
