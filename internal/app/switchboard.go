package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
	"github.com/dkeye/callmatch/internal/idgen"
	"github.com/dkeye/callmatch/internal/metrics"
)

const (
	DefaultRingTimeout    = 30 * time.Second
	DefaultProfileTimeout = 500 * time.Millisecond

	// GenericDisplayName is shown when the profile directory cannot answer.
	GenericDisplayName = "Someone"
)

type Options struct {
	RingTimeout    time.Duration
	ProfileTimeout time.Duration
	Admission      core.Admission
	Profiles       core.ProfileDirectory
	Policy         Policy

	NewSessionID func() domain.SessionID
	Now          func() time.Time
}

func (o *Options) withDefaults() {
	if o.RingTimeout <= 0 {
		o.RingTimeout = DefaultRingTimeout
	}
	if o.ProfileTimeout <= 0 {
		o.ProfileTimeout = DefaultProfileTimeout
	}
	if o.Admission == nil {
		o.Admission = core.AllowAll{}
	}
	if o.Policy == nil {
		o.Policy = SimplePolicy{}
	}
	if o.NewSessionID == nil {
		o.NewSessionID = idgen.NewSessionID
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Switchboard owns the connection registry, the availability registry and the
// session store, and drives every session through ringing, active and ended.
// All state changes happen under mu; nothing is sent to a connection while
// mu is held.
type Switchboard struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	conns    *ConnectionRegistry
	avail    *AvailabilityRegistry
	sessions *SessionStore
	closed   bool
}

func NewSwitchboard(opts Options) *Switchboard {
	opts.withDefaults()
	return &Switchboard{
		opts:     opts,
		log:      log.With().Str("module", "app.switchboard").Logger(),
		conns:    NewConnectionRegistry(),
		avail:    NewAvailabilityRegistry(),
		sessions: NewSessionStore(),
	}
}

// Stats is a point-in-time view for the HTTP API.
type Stats struct {
	Connected int `json:"connected"`
	Available int `json:"available"`
	Ringing   int `json:"ringing"`
	Active    int `json:"active"`
}

func (s *Switchboard) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	ringing, active := s.sessions.Counts()
	return Stats{
		Connected: s.conns.Len(),
		Available: s.avail.Count(),
		Ringing:   ringing,
		Active:    active,
	}
}

func (s *Switchboard) AvailableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avail.Count()
}

// Find returns a copy of the participant registered under pid.
func (s *Switchboard) Find(pid domain.ParticipantID) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.conns.Find(pid)
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// FindByConnection returns a copy of the participant bound to cid.
func (s *Switchboard) FindByConnection(cid domain.ConnectionID) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.conns.FindByConnection(cid)
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Session returns a copy of a live session.
func (s *Switchboard) Session(sid domain.SessionID) (domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions.Get(sid)
	if !ok {
		return domain.CallSession{}, false
	}
	return *e.Session, true
}

// Close ends every live session and refuses further registrations.
func (s *Switchboard) Close() {
	var out outbox
	s.mu.Lock()
	s.closed = true
	for _, e := range s.sessions.All() {
		sess := e.Session
		s.endLocked(e, domain.ReasonShutdown, &out, sess.CallerID, sess.CalleeID)
	}
	s.mu.Unlock()
	out.flush(s.log)
	s.log.Info().Msg("switchboard closed")
}

// participant resolves the registered identity behind cid.
func (s *Switchboard) participant(cid domain.ConnectionID) (domain.Participant, error) {
	p, ok := s.FindByConnection(cid)
	if !ok {
		return domain.Participant{}, domain.ErrNotRegistered
	}
	return p, nil
}

func (s *Switchboard) admit(ctx context.Context, pid domain.ParticipantID, action core.ActionKind) error {
	if !s.opts.Admission.Allow(ctx, pid, action) {
		s.log.Warn().Str("pid", string(pid)).Str("action", string(action)).Msg("admission denied")
		return domain.ErrAdmissionDenied
	}
	return nil
}

// displayName asks the profile directory with a bounded wait.
func (s *Switchboard) displayName(ctx context.Context, p domain.Participant) string {
	if s.opts.Profiles == nil {
		return p.DisplayName
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProfileTimeout)
	defer cancel()
	name, err := s.opts.Profiles.DisplayName(ctx, p.ID)
	if err != nil || name == "" {
		s.log.Debug().Err(err).Str("pid", string(p.ID)).Msg("profile lookup failed, using generic label")
		return GenericDisplayName
	}
	return name
}

// observeLocked publishes gauges; mu must be held.
func (s *Switchboard) observeLocked() {
	ringing, active := s.sessions.Counts()
	metrics.ConnectedParticipants.Set(float64(s.conns.Len()))
	metrics.AvailableCallees.Set(float64(s.avail.Count()))
	metrics.LiveSessions.WithLabelValues(domain.StateRinging.String()).Set(float64(ringing))
	metrics.LiveSessions.WithLabelValues(domain.StateActive.String()).Set(float64(active))
}
