package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionQueueOverflowDropsOldestLocation(t *testing.T) {
	s := newSession("s1", "ABC123", alice.ID, 3)

	s.enqueue(&Event{Kind: EventParticipantJoined, ParticipantID: "p1"})
	s.enqueue(&Event{Kind: EventLocationUpdated, ParticipantID: "p2"})
	s.enqueue(&Event{Kind: EventLocationUpdated, ParticipantID: "p3"})
	if dropped := s.enqueue(&Event{Kind: EventParticipantLeft, ParticipantID: "p4"}); !dropped {
		t.Fatal("expected overflow to drop an event")
	}

	if s.Pending() != 3 {
		t.Fatalf("queue exceeded its bound: %d", s.Pending())
	}
	if !s.NeedsResync() || s.Dropped() != 1 {
		t.Fatalf("expected resync flag and 1 drop, got resync=%v dropped=%d", s.NeedsResync(), s.Dropped())
	}

	s.mu.Lock()
	kept := []string{s.queue[0].ParticipantID, s.queue[1].ParticipantID, s.queue[2].ParticipantID}
	s.mu.Unlock()
	if kept[0] != "p1" || kept[1] != "p3" || kept[2] != "p4" {
		t.Fatalf("expected the oldest location update to be dropped, got %v", kept)
	}
}

func TestSessionQueueOverflowWithoutDroppableEvents(t *testing.T) {
	s := newSession("s1", "ABC123", alice.ID, 2)

	s.enqueue(&Event{Kind: EventParticipantJoined, ParticipantID: "p1"})
	s.enqueue(&Event{Kind: EventParticipantJoined, ParticipantID: "p2"})
	s.enqueue(&Event{Kind: EventParticipantJoined, ParticipantID: "p3"})

	s.mu.Lock()
	first := s.queue[0].ParticipantID
	s.mu.Unlock()
	if first != "p2" {
		t.Fatalf("expected the oldest event to be dropped, queue starts with %s", first)
	}
}

func TestSessionNextReportsResync(t *testing.T) {
	reg, _ := newTestRegistry(t, func(o *Options) { o.SessionQueueSize = 4 })
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	slow := mustOpen(t, gw, "ABC123", alice)
	if _, _, err := reg.Join("ABC123", bob); err != nil {
		t.Fatalf("join: %v", err)
	}

	for ms := int64(1); ms <= 10; ms++ {
		if err := reg.UpdateLocation("ABC123", bob.ID, at(ms)); err != nil {
			t.Fatalf("update %d: %v", ms, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, resync, err := slow.Next(ctx)
	if err != nil || !resync {
		t.Fatalf("expected resync, got resync=%v err=%v", resync, err)
	}

	snap, err := gw.Resync(slow)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	p, ok := snap.Participant(bob.ID)
	if !ok || p.Location == nil || p.Location.Timestamp.UnixMilli() != 10 {
		t.Fatalf("snapshot should carry the latest location, got %+v", p)
	}
	if slow.Pending() != 0 || slow.NeedsResync() {
		t.Fatal("resync should clear the queue and the flag")
	}

	// Delivery continues normally afterwards.
	if err := reg.UpdateLocation("ABC123", bob.ID, at(11)); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev := mustEvent(t, slow, EventLocationUpdated)
	if ev.Location.Timestamp.UnixMilli() != 11 {
		t.Fatalf("unexpected event after resync: %+v", ev)
	}
}

func TestSessionNextHonoursContextAndClose(t *testing.T) {
	s := newSession("s1", "ABC123", alice.ID, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Next(context.Background())
		done <- err
	}()
	s.close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("expected session closed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after close")
	}
	if s.enqueue(&Event{Kind: EventLocationUpdated}) {
		t.Fatal("closed session should ignore events")
	}
}
