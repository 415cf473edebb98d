package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/dkeye/callmatch/internal/domain"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

func NewSessionID() domain.SessionID {
	return domain.SessionID(NewULID())
}

func NewConnectionID() domain.ConnectionID {
	return domain.ConnectionID(uuid.NewString())
}
