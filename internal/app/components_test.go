package app

import (
	"testing"
	"time"

	"github.com/dkeye/callmatch/internal/domain"
)

func TestConnectionRegistry(t *testing.T) {
	r := NewConnectionRegistry()
	u, _ := domain.NewParticipant("c1", "u1", domain.RoleUser, "Ann")
	th, _ := domain.NewParticipant("c2", "t1", domain.RoleTherapist, "Bo")
	r.Put(u, &fakeConn{})
	r.Put(th, &fakeConn{})

	if p, ok := r.Find("u1"); !ok || p.Connection != "c1" {
		t.Fatalf("Find(u1) = %+v, %v", p, ok)
	}
	if p, ok := r.FindByConnection("c2"); !ok || p.ID != "t1" {
		t.Fatalf("FindByConnection(c2) = %+v, %v", p, ok)
	}
	if n := len(r.Callers()); n != 1 {
		t.Fatalf("callers = %d, want 1", n)
	}

	// Replace u1's connection, then let the stale one go.
	u2, _ := domain.NewParticipant("c3", "u1", domain.RoleUser, "Ann")
	r.Remove("c1")
	r.Put(u2, &fakeConn{})
	if _, ok := r.Remove("c1"); ok {
		t.Fatal("removed an unknown connection")
	}
	if p, ok := r.Find("u1"); !ok || p.Connection != "c3" {
		t.Fatalf("after replace Find(u1) = %+v, %v", p, ok)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestAvailabilityRegistry(t *testing.T) {
	a := NewAvailabilityRegistry()
	if _, ok := a.Pick(); ok {
		t.Fatal("picked from empty set")
	}
	if !a.Add("t1") || a.Add("t1") {
		t.Fatal("Add change reporting wrong")
	}
	a.Add("t2")
	a.Add("t3")
	if !a.Remove("t2") || a.Remove("t2") {
		t.Fatal("Remove change reporting wrong")
	}
	a.Add("t2")
	if a.Count() != 3 {
		t.Fatalf("count = %d", a.Count())
	}

	var order []domain.ParticipantID
	for {
		pid, ok := a.Pick()
		if !ok {
			break
		}
		order = append(order, pid)
	}
	want := []domain.ParticipantID{"t1", "t3", "t2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("pick order = %v, want %v", order, want)
		}
	}
	if a.Count() != 0 {
		t.Fatal("picked callees not removed")
	}
}

func TestSessionStore(t *testing.T) {
	st := NewSessionStore()
	s := domain.NewCallSession("s1", "u1", "t1", time.Now())
	st.Put(s)

	if e, ok := st.Of("t1"); !ok || e.Session.ID != "s1" {
		t.Fatal("lookup by callee failed")
	}
	s.Accept(time.Now())
	if r, a := st.Counts(); r != 0 || a != 1 {
		t.Fatalf("counts = %d/%d", r, a)
	}

	s.End(domain.ReasonEnded, time.Now())
	st.Remove("s1")
	if _, ok := st.Get("s1"); ok {
		t.Fatal("session not removed")
	}
	if _, ok := st.Of("u1"); ok {
		t.Fatal("member index not cleared")
	}
	tomb, ok := st.Ended("s1")
	if !ok || tomb.caller != "u1" || tomb.reason != domain.ReasonEnded {
		t.Fatalf("tombstone = %+v, %v", tomb, ok)
	}
}

func TestSessionStoreTombstonesBounded(t *testing.T) {
	st := NewSessionStore()
	for i := 0; i < tombstoneCap+10; i++ {
		sid := domain.SessionID(time.Duration(i).String())
		st.Put(domain.NewCallSession(sid, "u", "t", time.Now()))
		st.Remove(sid)
	}
	if len(st.ended) != tombstoneCap || len(st.order) != tombstoneCap {
		t.Fatalf("tombstones = %d/%d", len(st.ended), len(st.order))
	}
	if _, ok := st.Ended(domain.SessionID(time.Duration(0).String())); ok {
		t.Fatal("oldest tombstone kept")
	}
}
