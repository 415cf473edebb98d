package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
	"github.com/dkeye/callmatch/internal/metrics"
)

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Msg("bad json")
		ctl.replyError(cl, "", domain.ErrBadRequest)
		return
	}

	switch env.Type {
	case reqRegister:
		ctl.handleRegister(cl, data)
	case reqSetAvailability:
		ctl.handleSetAvailability(ctx, cl, data)
	case reqRequestCall:
		ctl.handleRequestCall(ctx, cl)
	case reqAcceptCall:
		ctl.handleAccept(cl, data)
	case reqRejectCall:
		ctl.handleReject(cl, data)
	case reqEndCall:
		ctl.handleEnd(cl, data)
	case string(domain.PayloadOffer), string(domain.PayloadAnswer), string(domain.PayloadCandidate):
		ctl.handleRelay(cl, domain.PayloadKind(env.Type), data)
	case reqPing:
		ctl.sendJSON(cl.conn, struct {
			Type string `json:"type"`
		}{Type: core.TypePong})
	case reqWhoAmI:
		ctl.handleWhoAmI(cl)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.replyError(cl, env.Type, domain.ErrUnknownRequest)
	}
}

// decode unmarshals and validates a request body.
func (ctl *SignalWSController) decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(domain.ErrBadRequest, err)
	}
	if err := ctl.validate.Struct(v); err != nil {
		return errors.Join(domain.ErrBadRequest, err)
	}
	return nil
}

func (ctl *SignalWSController) replyError(cl *client, request string, err error) {
	msg := core.NewErrorMessage(request, err)
	metrics.RequestsRejected.WithLabelValues(request, msg.Error).Inc()
	log.Debug().Err(err).Str("module", "signal").Str("cid", string(cl.cid)).Str("request", request).Msg("request rejected")
	ctl.sendJSON(cl.conn, msg)
}
