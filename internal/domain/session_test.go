package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestCallSessionTransitions(t *testing.T) {
	now := time.Now()
	s := NewCallSession("s1", "u1", "t1", now)
	if s.State != StateRinging {
		t.Fatalf("new session state = %s, want ringing", s.State)
	}

	if err := s.Accept(now); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if s.State != StateActive || s.AcceptedAt.IsZero() {
		t.Fatalf("after accept: state=%s acceptedAt=%v", s.State, s.AcceptedAt)
	}
	if err := s.Accept(now); err != ErrInvalidTransition {
		t.Fatalf("second accept = %v, want ErrInvalidTransition", err)
	}

	if !s.End(ReasonEnded, now) {
		t.Fatal("end on active session reported no-op")
	}
	if s.End(ReasonDisconnect, now) {
		t.Fatal("end on ended session should be a no-op")
	}
	if s.EndReason != ReasonEnded {
		t.Fatalf("reason = %s, want %s", s.EndReason, ReasonEnded)
	}
	if err := s.Accept(now); err != ErrInvalidTransition {
		t.Fatalf("accept after end = %v", err)
	}
}

func TestCallSessionPeer(t *testing.T) {
	s := NewCallSession("s1", "u1", "t1", time.Now())
	cases := map[ParticipantID]ParticipantID{"u1": "t1", "t1": "u1", "x": ""}
	for in, want := range cases {
		if got := s.Peer(in); got != want {
			t.Errorf("Peer(%q) = %q, want %q", in, got, want)
		}
	}
	if s.HasMember("x") {
		t.Error("stranger reported as member")
	}
}

func TestCallSessionHold(t *testing.T) {
	s := NewCallSession("s1", "u1", "t1", time.Now())
	sig := func(k PayloadKind, body string) Signal {
		return Signal{Kind: k, From: "u1", Payload: json.RawMessage(body)}
	}

	s.Hold(sig(PayloadOffer, `"o1"`))
	s.Hold(sig(PayloadCandidate, `"c1"`))
	s.Hold(sig(PayloadOffer, `"o2"`))
	s.Hold(sig(PayloadCandidate, `"c2"`))
	s.Hold(sig(PayloadCandidate, `"c3"`))

	got := s.DrainPending()
	want := []string{`"o2"`, `"c2"`, `"c3"`}
	if len(got) != len(want) {
		t.Fatalf("drained %d signals, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i].Payload) != want[i] {
			t.Errorf("signal %d = %s, want %s", i, got[i].Payload, want[i])
		}
	}
	if len(s.DrainPending()) != 0 {
		t.Error("pending not cleared after drain")
	}

	for i := 0; i < MaxPendingSignals; i++ {
		if !s.Hold(sig(PayloadCandidate, fmt.Sprintf("%d", i))) {
			t.Fatalf("hold %d rejected before the buffer was full", i)
		}
	}
	if s.Hold(sig(PayloadCandidate, `"overflow"`)) {
		t.Fatal("hold accepted past MaxPendingSignals")
	}
}

func TestReasonCode(t *testing.T) {
	if got := ReasonCode(fmt.Errorf("request: %w", ErrNoCalleeAvailable)); got != "no_callee_available" {
		t.Fatalf("wrapped code = %s", got)
	}
	if got := ReasonCode(fmt.Errorf("boom")); got != "internal_error" {
		t.Fatalf("unknown code = %s", got)
	}
}
