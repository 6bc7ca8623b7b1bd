package core

import (
	"errors"
	"testing"
	"time"
)

func TestHeartbeatTimeoutExactlyAtDeadline(t *testing.T) {
	const timeout = 30 * time.Second
	reg, mock := newTestRegistry(t, func(o *Options) { o.HeartbeatTimeout = timeout })
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	aliceSess := mustOpen(t, gw, "ABC123", alice)
	if _, _, err := reg.Join("ABC123", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := reg.UpdateLocation("ABC123", bob.ID, at(100)); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Keep alice alive throughout.
	mock.Add(timeout / 2)
	if err := reg.Heartbeat("ABC123", alice.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	mock.Add(timeout/2 - time.Millisecond)
	if p := participant(t, reg, "ABC123", bob.ID); !p.Online {
		t.Fatalf("bob went offline before the timeout: %+v", p)
	}

	mock.Add(time.Millisecond)
	waitFor(t, "bob offline", func() bool {
		return !participant(t, reg, "ABC123", bob.ID).Online
	})
	ev := mustEvent(t, aliceSess, EventPresenceChanged)
	if ev.ParticipantID != bob.ID || ev.Online {
		t.Fatalf("unexpected presence event: %+v", ev)
	}

	p := participant(t, reg, "ABC123", bob.ID)
	if p.Location == nil || !p.Location.Timestamp.Equal(time.UnixMilli(100)) {
		t.Fatalf("offline participant lost its location: %+v", p)
	}
	if !participant(t, reg, "ABC123", alice.ID).Online {
		t.Fatal("alice should still be online")
	}
}

func TestActivityResumesTimedOutParticipant(t *testing.T) {
	const timeout = 10 * time.Second
	reg, mock := newTestRegistry(t, func(o *Options) { o.HeartbeatTimeout = timeout })
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	if _, _, err := reg.Join("ABC123", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	bobSess := mustOpen(t, gw, "ABC123", bob)

	mock.Add(timeout)
	waitFor(t, "alice offline", func() bool {
		return !participant(t, reg, "ABC123", alice.ID).Online
	})
	mustEvent(t, bobSess, EventPresenceChanged)

	if err := reg.UpdateLocation("ABC123", alice.ID, at(200)); err != nil {
		t.Fatalf("update after timeout: %v", err)
	}
	ev := mustEvent(t, bobSess, EventPresenceChanged)
	if ev.ParticipantID != alice.ID || !ev.Online {
		t.Fatalf("expected alice back online, got %+v", ev)
	}
	mustEvent(t, bobSess, EventLocationUpdated)
	if p := participant(t, reg, "ABC123", alice.ID); !p.Online || p.Left {
		t.Fatalf("alice should be online again: %+v", p)
	}
}

func TestHeartbeatUnknownParticipant(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	if err := reg.Heartbeat("ABC123", "ghost"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected not_participant, got %v", err)
	}
	if err := reg.Heartbeat("GONE00", alice.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room_not_found, got %v", err)
	}
}

func TestIdleRoomExpiresAfterGracePeriod(t *testing.T) {
	const (
		timeout = 10 * time.Second
		grace   = time.Minute
	)
	reg, mock := newTestRegistry(t, func(o *Options) {
		o.HeartbeatTimeout = timeout
		o.RoomGracePeriod = grace
	})
	mustCreateRoom(t, reg, "ABC123", alice)

	mock.Add(timeout)
	waitFor(t, "owner offline", func() bool {
		return !participant(t, reg, "ABC123", alice.ID).Online
	})

	mock.Add(grace - time.Second)
	if _, err := reg.GetRoom("ABC123"); err != nil {
		t.Fatalf("room removed before the grace period: %v", err)
	}

	mock.Add(time.Second)
	waitFor(t, "room removed", func() bool {
		_, err := reg.GetRoom("ABC123")
		return errors.Is(err, ErrRoomNotFound)
	})
	if reg.Len() != 0 {
		t.Fatalf("expected 0 rooms, got %d", reg.Len())
	}
}

func TestOpenSessionKeepsRoomAlive(t *testing.T) {
	const grace = time.Minute
	reg, mock := newTestRegistry(t, func(o *Options) {
		o.HeartbeatTimeout = 10 * time.Second
		o.RoomGracePeriod = grace
	})
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	s := mustOpen(t, gw, "ABC123", alice)

	mock.Add(10 * time.Second)
	waitFor(t, "owner offline", func() bool {
		return !participant(t, reg, "ABC123", alice.ID).Online
	})
	mock.Add(2 * grace)
	if _, err := reg.GetRoom("ABC123"); err != nil {
		t.Fatalf("room with an open session was removed: %v", err)
	}

	gw.Close(s, false)
	mock.Add(grace)
	waitFor(t, "room removed", func() bool {
		_, err := reg.GetRoom("ABC123")
		return err != nil
	})
}
