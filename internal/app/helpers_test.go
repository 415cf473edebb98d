package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	fail   error
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.closed {
		return core.ErrConnClosed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) setFail(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range c.messages(t) {
		out = append(out, m["type"].(string))
	}
	return out
}

// find returns the messages of the given type.
func (c *fakeConn) find(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

var connSeq atomic.Int64

type testClient struct {
	cid  domain.ConnectionID
	pid  domain.ParticipantID
	conn *fakeConn
}

func newTestBoard(t *testing.T, opts Options) *Switchboard {
	t.Helper()
	var n int
	var mu sync.Mutex
	if opts.NewSessionID == nil {
		opts.NewSessionID = func() domain.SessionID {
			mu.Lock()
			defer mu.Unlock()
			n++
			return domain.SessionID(fmt.Sprintf("s%d", n))
		}
	}
	sb := NewSwitchboard(opts)
	t.Cleanup(func() { checkInvariants(t, sb) })
	return sb
}

func register(t *testing.T, sb *Switchboard, pid string, role domain.Role) *testClient {
	t.Helper()
	c := &testClient{
		cid:  domain.ConnectionID(fmt.Sprintf("conn-%s-%d", pid, connSeq.Add(1))),
		pid:  domain.ParticipantID(pid),
		conn: &fakeConn{},
	}
	if _, err := sb.Register(c.cid, c.conn, c.pid, role, "name "+pid); err != nil {
		t.Fatalf("register %s: %v", pid, err)
	}
	return c
}

func available(t *testing.T, sb *Switchboard, c *testClient) {
	t.Helper()
	if _, err := sb.SetAvailable(context.Background(), c.cid, true); err != nil {
		t.Fatalf("set available %s: %v", c.pid, err)
	}
}

func requestCall(t *testing.T, sb *Switchboard, c *testClient) CallHandle {
	t.Helper()
	h, err := sb.RequestCall(context.Background(), c.cid)
	if err != nil {
		t.Fatalf("request call %s: %v", c.pid, err)
	}
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// checkInvariants verifies the participant/session/availability invariants.
func checkInvariants(t *testing.T, sb *Switchboard) {
	t.Helper()
	sb.mu.Lock()
	defer sb.mu.Unlock()

	refs := make(map[domain.ParticipantID]int)
	for _, e := range sb.sessions.All() {
		s := e.Session
		if !s.State.Live() {
			t.Errorf("ended session %s still stored", s.ID)
		}
		if s.CallerID == s.CalleeID {
			t.Errorf("session %s has identical members", s.ID)
		}
		refs[s.CallerID]++
		refs[s.CalleeID]++
		for _, pid := range []domain.ParticipantID{s.CallerID, s.CalleeID} {
			p, ok := sb.conns.Find(pid)
			if !ok {
				t.Errorf("session %s references unregistered %s", s.ID, pid)
				continue
			}
			if p.ActiveSession != s.ID {
				t.Errorf("participant %s activeSession=%q, want %q", pid, p.ActiveSession, s.ID)
			}
		}
	}
	for pid, n := range refs {
		if n > 1 {
			t.Errorf("participant %s is in %d live sessions", pid, n)
		}
	}
	for pid, e := range sb.conns.byID {
		p := e.Participant
		if p.ActiveSession != "" && refs[pid] != 1 {
			t.Errorf("participant %s points at %s without a live session", pid, p.ActiveSession)
		}
		if sb.avail.Contains(pid) != p.Available {
			t.Errorf("participant %s available=%v, set membership=%v", pid, p.Available, sb.avail.Contains(pid))
		}
		if sb.avail.Contains(pid) && p.Busy() {
			t.Errorf("busy participant %s is available", pid)
		}
	}
	for pid := range sb.avail.since {
		if _, ok := sb.conns.Find(pid); !ok {
			t.Errorf("unregistered %s in availability set", pid)
		}
	}
}

type denyAdmission struct{ action core.ActionKind }

func (d denyAdmission) Allow(_ context.Context, _ domain.ParticipantID, a core.ActionKind) bool {
	return a != d.action
}

type stubProfiles struct {
	names map[domain.ParticipantID]string
}

var errNoProfile = errors.New("no profile")

func (s stubProfiles) DisplayName(_ context.Context, pid domain.ParticipantID) (string, error) {
	if n, ok := s.names[pid]; ok {
		return n, nil
	}
	return "", errNoProfile
}
