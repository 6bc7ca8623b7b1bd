package core

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	alice = User{ID: "u-alice", Name: "alice"}
	bob   = User{ID: "u-bob", Name: "bob"}
	carol = User{ID: "u-carol", Name: "carol"}
)

func newTestRegistry(t *testing.T, configure ...func(*Options)) (*Registry, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	opts := Options{Clock: mock}
	for _, fn := range configure {
		fn(&opts)
	}
	reg := NewRegistry(opts)
	t.Cleanup(reg.Close)
	return reg, mock
}

func mustCreateRoom(t *testing.T, reg *Registry, id string, owner User) Snapshot {
	t.Helper()

	snap, err := reg.CreateRoom(id, owner)
	if err != nil {
		t.Fatalf("create room %s: %v", id, err)
	}
	return snap
}

func mustOpen(t *testing.T, gw *Gateway, roomID string, user User) *Session {
	t.Helper()

	s, _, err := gw.Open(roomID, user)
	if err != nil {
		t.Fatalf("open session for %s: %v", user.ID, err)
	}
	return s
}

func mustEvent(t *testing.T, s *Session, kind EventKind) *Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, resync, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("expected event kind %v not received: %v", kind, err)
		}
		if resync {
			t.Fatalf("expected event kind %v, session needs resync", kind)
		}
		if ev.Kind == kind {
			return ev
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func participant(t *testing.T, reg *Registry, roomID, id string) Participant {
	t.Helper()

	snap, err := reg.Snapshot(roomID)
	if err != nil {
		t.Fatalf("snapshot %s: %v", roomID, err)
	}
	p, ok := snap.Participant(id)
	if !ok {
		t.Fatalf("participant %s not in room %s", id, roomID)
	}
	return p
}

func at(ms int64) Location {
	return Location{Latitude: 52.52, Longitude: 13.405, Timestamp: time.UnixMilli(ms)}
}
