package app

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type delivery struct {
	to     domain.ParticipantID
	signal core.SignalConnection
	msg    any
}

// outbox collects notifications under the lock and sends them after it is released.
type outbox []delivery

func (o *outbox) push(to domain.ParticipantID, sig core.SignalConnection, msg any) {
	*o = append(*o, delivery{to: to, signal: sig, msg: msg})
}

func (o outbox) flush(logger zerolog.Logger) {
	for _, d := range o {
		if err := send(d.signal, d.msg); err != nil {
			logger.Warn().Err(err).Str("pid", string(d.to)).Msg("notification dropped")
		}
	}
}

func send(sig core.SignalConnection, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sig.TrySend(b)
}

// notifyLocked queues msg for pid's current connection, if any; mu must be held.
func (s *Switchboard) notifyLocked(out *outbox, pid domain.ParticipantID, msg any) {
	if sig, ok := s.conns.Signal(pid); ok {
		out.push(pid, sig, msg)
	}
}

// broadcastAvailabilityLocked queues the current count for every caller; mu must be held.
func (s *Switchboard) broadcastAvailabilityLocked(out *outbox) {
	msg := core.AvailabilityUpdate{Type: core.TypeAvailabilityUpdate, Available: s.avail.Count()}
	for _, sig := range s.conns.Callers() {
		out.push("", sig, msg)
	}
}
