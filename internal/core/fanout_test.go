package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestUpdateLocationRelaysToOthersOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	aliceSess := mustOpen(t, gw, "ABC123", alice)
	bobSess := mustOpen(t, gw, "ABC123", bob)
	mustEvent(t, aliceSess, EventParticipantJoined)

	loc := Location{Latitude: 48.8566, Longitude: 2.3522, Timestamp: time.UnixMilli(1000)}
	if err := reg.UpdateLocation("ABC123", bob.ID, loc); err != nil {
		t.Fatalf("update: %v", err)
	}

	ev := mustEvent(t, aliceSess, EventLocationUpdated)
	if ev.ParticipantID != bob.ID || ev.Location == nil || ev.Location.Latitude != 48.8566 {
		t.Fatalf("unexpected location event: %+v", ev)
	}
	if n := bobSess.Pending(); n != 0 {
		t.Fatalf("sender should not receive its own update, has %d pending", n)
	}
}

func TestUpdateLocationOutOfOrderIsStale(t *testing.T) {
	reg, _ := newTestRegistry(t)
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	aliceSess := mustOpen(t, gw, "ABC123", alice)
	if _, _, err := reg.Join("ABC123", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	mustEvent(t, aliceSess, EventParticipantJoined)

	if err := reg.UpdateLocation("ABC123", bob.ID, at(100)); err != nil {
		t.Fatalf("update t=100: %v", err)
	}
	older := at(90)
	older.Latitude = 10
	if err := reg.UpdateLocation("ABC123", bob.ID, older); !errors.Is(err, ErrStaleUpdate) {
		t.Fatalf("expected stale_update for t=90, got %v", err)
	}

	p := participant(t, reg, "ABC123", bob.ID)
	if p.Location == nil || !p.Location.Timestamp.Equal(time.UnixMilli(100)) || p.Location.Latitude != 52.52 {
		t.Fatalf("stored location should remain t=100, got %+v", p.Location)
	}
	mustEvent(t, aliceSess, EventLocationUpdated)
	if n := aliceSess.Pending(); n != 0 {
		t.Fatalf("stale update must not be relayed, %d events pending", n)
	}
}

func TestUpdateLocationSameTimestampAccepted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	for range 2 {
		if err := reg.UpdateLocation("ABC123", alice.ID, at(500)); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
}

func TestUpdateLocationBounds(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	cases := []struct {
		name     string
		lat, lon float64
		ok       bool
	}{
		{"origin", 0, 0, true},
		{"north pole", 90, 0, true},
		{"south pole", -90, 0, true},
		{"antimeridian east", 0, 180, true},
		{"antimeridian west", 0, -180, true},
		{"lat too high", 90.0001, 0, false},
		{"lat too low", -91, 0, false},
		{"lon too high", 0, 180.5, false},
		{"lon too low", 0, -181, false},
		{"nan", math.NaN(), 0, false},
		{"inf", 0, math.Inf(1), false},
	}
	ts := int64(1)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts++
			err := reg.UpdateLocation("ABC123", alice.ID, Location{Latitude: tc.lat, Longitude: tc.lon, Timestamp: time.UnixMilli(ts)})
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidLocation) {
				t.Fatalf("expected invalid_location, got %v", err)
			}
		})
	}
}

func TestUpdateLocationRejectsFutureTimestamp(t *testing.T) {
	reg, mock := newTestRegistry(t, func(o *Options) { o.MaxClockSkew = time.Minute })
	mustCreateRoom(t, reg, "ABC123", alice)

	future := Location{Latitude: 1, Longitude: 1, Timestamp: mock.Now().Add(2 * time.Minute)}
	if err := reg.UpdateLocation("ABC123", alice.ID, future); !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected invalid_location for future timestamp, got %v", err)
	}
}

func TestUpdateLocationNonParticipant(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	if err := reg.UpdateLocation("ABC123", "ghost", at(1)); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected not_participant, got %v", err)
	}
}

func TestUpdatesArriveInOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	aliceSess := mustOpen(t, gw, "ABC123", alice)
	if _, _, err := reg.Join("ABC123", bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	mustEvent(t, aliceSess, EventParticipantJoined)

	for ms := int64(1); ms <= 20; ms++ {
		if err := reg.UpdateLocation("ABC123", bob.ID, at(ms)); err != nil {
			t.Fatalf("update %d: %v", ms, err)
		}
	}
	for ms := int64(1); ms <= 20; ms++ {
		ev := mustEvent(t, aliceSess, EventLocationUpdated)
		if got := ev.Location.Timestamp.UnixMilli(); got != ms {
			t.Fatalf("expected update %d, got %d", ms, got)
		}
	}
}

func TestSetDestinationOwnerOnly(t *testing.T) {
	reg, mock := newTestRegistry(t)
	gw := NewGateway(reg)
	mustCreateRoom(t, reg, "ABC123", alice)
	aliceSess := mustOpen(t, gw, "ABC123", alice)
	bobSess := mustOpen(t, gw, "ABC123", bob)
	mustEvent(t, aliceSess, EventParticipantJoined)

	dest := Location{Latitude: 40.7128, Longitude: -74.006}
	if err := reg.SetDestination("ABC123", bob.ID, dest); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
	if err := reg.SetDestination("ABC123", bob.ID, Location{Latitude: 100}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner with bad coordinates should still be forbidden, got %v", err)
	}
	if err := reg.ClearDestination("ABC123", bob.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden clear for non-owner, got %v", err)
	}
	if snap, _ := reg.Snapshot("ABC123"); snap.Destination != nil {
		t.Fatalf("destination changed by non-owner: %+v", snap.Destination)
	}

	if err := reg.SetDestination("ABC123", alice.ID, dest); err != nil {
		t.Fatalf("owner set destination: %v", err)
	}
	for _, s := range []*Session{aliceSess, bobSess} {
		ev := mustEvent(t, s, EventDestinationChanged)
		if ev.Location == nil || ev.Location.Latitude != 40.7128 {
			t.Fatalf("unexpected destination event: %+v", ev)
		}
		if !ev.Location.Timestamp.Equal(mock.Now()) {
			t.Fatalf("expected server timestamp, got %v", ev.Location.Timestamp)
		}
	}

	if err := reg.ClearDestination("ABC123", alice.ID); err != nil {
		t.Fatalf("owner clear destination: %v", err)
	}
	ev := mustEvent(t, bobSess, EventDestinationChanged)
	if ev.Location != nil {
		t.Fatalf("expected cleared destination, got %+v", ev.Location)
	}
	if snap, _ := reg.Snapshot("ABC123"); snap.Destination != nil {
		t.Fatalf("destination not cleared: %+v", snap.Destination)
	}
}

func TestDestinationLockedAfterOwnerLeaves(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)
	dest := Location{Latitude: 40.7128, Longitude: -74.006}
	if err := reg.SetDestination("ABC123", alice.ID, dest); err != nil {
		t.Fatalf("owner set destination: %v", err)
	}
	if err := reg.Leave("ABC123", alice.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if err := reg.SetDestination("ABC123", alice.ID, Location{Latitude: 1, Longitude: 2}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected not_participant after leaving, got %v", err)
	}
	if err := reg.ClearDestination("ABC123", alice.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected not_participant clear after leaving, got %v", err)
	}
	if snap, _ := reg.Snapshot("ABC123"); snap.Destination == nil || snap.Destination.Latitude != 40.7128 {
		t.Fatalf("destination changed by departed owner: %+v", snap.Destination)
	}

	if _, _, err := reg.Join("ABC123", alice); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if err := reg.ClearDestination("ABC123", alice.ID); err != nil {
		t.Fatalf("clear after rejoin: %v", err)
	}
}

func TestSetDestinationValidatesBounds(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	if err := reg.SetDestination("ABC123", alice.ID, Location{Latitude: 0, Longitude: 200}); !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected invalid_location, got %v", err)
	}
}

func TestUpdateLocationStampsMissingTimestamp(t *testing.T) {
	reg, mock := newTestRegistry(t)
	mustCreateRoom(t, reg, "ABC123", alice)

	if err := reg.UpdateLocation("ABC123", alice.ID, Location{Latitude: 1, Longitude: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	p := participant(t, reg, "ABC123", alice.ID)
	if p.Location == nil || !p.Location.Timestamp.Equal(mock.Now()) {
		t.Fatalf("expected server timestamp, got %+v", p.Location)
	}
}
