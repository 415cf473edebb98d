package app

import (
	"errors"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type BackpressureAction int

const (
	EndSession BackpressureAction = iota
	DropSignal
)

// Policy decides what a failed relay send does to the session.
type Policy interface {
	OnSendFailure(s *domain.CallSession, to domain.ParticipantID, err error) BackpressureAction
}

// SimplePolicy tears the session down on any failed send.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(*domain.CallSession, domain.ParticipantID, error) BackpressureAction {
	return EndSession
}

// TolerantPolicy drops the signal when the peer is only slow and ends the
// session when its connection is gone.
type TolerantPolicy struct{}

func (TolerantPolicy) OnSendFailure(_ *domain.CallSession, _ domain.ParticipantID, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return DropSignal
	}
	return EndSession
}
