package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

// FixedWindow counts actions in Redis so several instances share one budget.
// Redis errors let the action through.
type FixedWindow struct {
	rdb      *redis.Client
	limit    int64
	interval time.Duration
}

func NewFixedWindow(rdb *redis.Client, limit int, interval time.Duration) *FixedWindow {
	return &FixedWindow{rdb: rdb, limit: int64(limit), interval: interval}
}

func windowKey(pid domain.ParticipantID, action core.ActionKind, slot int64) string {
	return fmt.Sprintf("admission:%s:%s:%d", action, pid, slot)
}

func (fw *FixedWindow) Allow(ctx context.Context, pid domain.ParticipantID, action core.ActionKind) bool {
	slot := time.Now().UnixNano() / int64(fw.interval)
	k := windowKey(pid, action, slot)

	pipe := fw.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, fw.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Str("module", "admission.redis").Err(err).Str("pid", string(pid)).Msg("redis unavailable, admitting")
		return true
	}
	return incr.Val() <= fw.limit
}
