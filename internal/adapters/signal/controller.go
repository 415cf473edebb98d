// Package signal is the WebSocket front of the switchboard: one connection
// per participant, JSON messages in both directions.
package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callmatch/internal/app"
	"github.com/dkeye/callmatch/internal/domain"
	"github.com/dkeye/callmatch/internal/idgen"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
	ICEServers []webrtc.ICEServer
}

func (o *Options) withDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
}

type SignalWSController struct {
	sb       *app.Switchboard
	opts     Options
	validate *validator.Validate
}

func NewSignalWSController(sb *app.Switchboard, opts Options) *SignalWSController {
	opts.withDefaults()
	return &SignalWSController{sb: sb, opts: opts, validate: validator.New()}
}

// client is the per-connection state owned by the read pump.
type client struct {
	cid   domain.ConnectionID
	token string
	conn  *WsSignalConn
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cl := &client{
		cid:   domain.ConnectionID(idgen.NewConnectionID()),
		token: token,
		conn:  newWsSignalConn(ws, ctl.opts.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("cid", string(cl.cid)).Str("ct", token).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cl.conn)
	go ctl.readPump(ctx, cancel, cl)
}
