package core

import (
	"context"

	"github.com/dkeye/callmatch/internal/domain"
)

// ActionKind names an action gated by admission control.
type ActionKind string

const (
	ActionRequestCall     ActionKind = "request-call"
	ActionSetAvailability ActionKind = "set-availability"
)

// Admission is the rate-limiting / circuit-breaking layer in front of the switchboard.
type Admission interface {
	Allow(ctx context.Context, pid domain.ParticipantID, action ActionKind) bool
}

// ProfileDirectory resolves presentation names. It may be slow or fail;
// callers fall back to the registered name.
type ProfileDirectory interface {
	DisplayName(ctx context.Context, pid domain.ParticipantID) (string, error)
}

// AllowAll is the admission used when none is configured.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, domain.ParticipantID, ActionKind) bool { return true }
