package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

func (ctl *SignalWSController) handleRegister(cl *client, data []byte) {
	var req registerRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, reqRegister, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		ctl.replyError(cl, reqRegister, err)
		return
	}
	pid := req.ParticipantID
	if pid == "" {
		pid = cl.token
	}

	reg, err := ctl.sb.Register(cl.cid, cl.conn, domain.ParticipantID(pid), role, req.DisplayName)
	if err != nil {
		ctl.replyError(cl, reqRegister, err)
		return
	}
	ctl.sendJSON(cl.conn, registeredMessage{
		Type:          core.TypeRegistered,
		ParticipantID: reg.Participant.ID,
		ConnectionID:  cl.cid,
		Role:          reg.Participant.Role,
		DisplayName:   reg.Participant.DisplayName,
		Available:     reg.Available,
		ICEServers:    ctl.opts.ICEServers,
	})
}

func (ctl *SignalWSController) handleSetAvailability(ctx context.Context, cl *client, data []byte) {
	var req availabilityRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, reqSetAvailability, err)
		return
	}
	count, err := ctl.sb.SetAvailable(ctx, cl.cid, *req.Available)
	if err != nil {
		ctl.replyError(cl, reqSetAvailability, err)
		return
	}
	ctl.sendJSON(cl.conn, availabilityMessage{Type: core.TypeAvailability, Available: *req.Available, Count: count})
}

func (ctl *SignalWSController) handleRequestCall(ctx context.Context, cl *client) {
	h, err := ctl.sb.RequestCall(ctx, cl.cid)
	switch {
	case errors.Is(err, domain.ErrNoCalleeAvailable):
		ctl.sendJSON(cl.conn, core.NoCalleeAvailable{Type: core.TypeNoCalleeAvailable, Retryable: true})
	case err != nil:
		ctl.replyError(cl, reqRequestCall, err)
	default:
		ctl.sendJSON(cl.conn, core.CallConnecting{Type: core.TypeCallConnecting, SessionID: h.SessionID, CalleeID: h.CalleeID})
	}
}

func (ctl *SignalWSController) handleAccept(cl *client, data []byte) {
	var req sessionRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, reqAcceptCall, err)
		return
	}
	if err := ctl.sb.Accept(cl.cid, domain.SessionID(req.SessionID)); err != nil {
		ctl.replyError(cl, reqAcceptCall, err)
	}
}

func (ctl *SignalWSController) handleReject(cl *client, data []byte) {
	var req sessionRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, reqRejectCall, err)
		return
	}
	sid := domain.SessionID(req.SessionID)
	if err := ctl.sb.Reject(cl.cid, sid); err != nil {
		ctl.replyError(cl, reqRejectCall, err)
		return
	}
	ctl.sendJSON(cl.conn, core.NewCallEnded(sid, domain.ReasonRejected))
}

// handleEnd acknowledges with call-ended even when the session had already
// ended, carrying the reason it actually ended for.
func (ctl *SignalWSController) handleEnd(cl *client, data []byte) {
	var req sessionRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, reqEndCall, err)
		return
	}
	sid := domain.SessionID(req.SessionID)
	reason, ended, err := ctl.sb.End(cl.cid, sid)
	if err != nil {
		ctl.replyError(cl, reqEndCall, err)
		return
	}
	if !ended {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("reason", string(reason)).Msg("end-call on ended session")
	}
	ctl.sendJSON(cl.conn, core.NewCallEnded(sid, reason))
}

func (ctl *SignalWSController) handleRelay(cl *client, kind domain.PayloadKind, data []byte) {
	var req signalRequest
	if err := ctl.decode(data, &req); err != nil {
		ctl.replyError(cl, string(kind), err)
		return
	}
	if err := ctl.sb.Relay(cl.cid, domain.SessionID(req.SessionID), kind, req.Payload); err != nil {
		ctl.replyError(cl, string(kind), err)
	}
}

func (ctl *SignalWSController) handleWhoAmI(cl *client) {
	p, ok := ctl.sb.FindByConnection(cl.cid)
	if !ok {
		ctl.replyError(cl, reqWhoAmI, domain.ErrNotRegistered)
		return
	}
	ctl.sendJSON(cl.conn, whoAmIMessage{Type: core.TypeWhoAmI, Participant: p})
}
