package core

import "time"

// UpdateLocation stores loc as userID's newest position and relays it to
// every other session in the room. Updates older than the stored one are
// rejected with ErrStaleUpdate; equal timestamps are accepted. A zero
// timestamp is stamped with the server time.
func (rm *Room) UpdateLocation(userID string, loc Location) error {
	if err := loc.Validate(); err != nil {
		rm.reg.observer.LocationUpdated(rm.id, LocationInvalid)
		return err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	m, err := rm.activeMemberLocked(userID)
	if err != nil {
		rm.reg.observer.LocationUpdated(rm.id, LocationRejected)
		return err
	}
	now := rm.reg.now()
	if loc.Timestamp.IsZero() {
		loc.Timestamp = now
	}
	if skew := rm.reg.opts.MaxClockSkew; skew > 0 && loc.Timestamp.After(now.Add(skew)) {
		rm.reg.observer.LocationUpdated(rm.id, LocationInvalid)
		return ErrInvalidLocation
	}
	if m.p.Location != nil && loc.Timestamp.Before(m.p.Location.Timestamp) {
		rm.reg.observer.LocationUpdated(rm.id, LocationStale)
		return ErrStaleUpdate
	}

	stored := loc
	m.p.Location = &stored
	if rm.touchLocked(m, now) {
		rm.resumeLocked(m)
	}
	rm.broadcastLocked(&Event{
		Kind:          EventLocationUpdated,
		Room:          rm.id,
		ParticipantID: userID,
		Location:      copyLocation(&stored),
	}, userID)
	rm.reg.observer.LocationUpdated(rm.id, LocationAccepted)
	return nil
}

// SetDestination replaces the room's destination. Only the owner may call
// it, and not after leaving. A zero timestamp is replaced by the server time. The change is sent to
// every session, the owner's included.
func (rm *Room) SetDestination(userID string, loc Location) error {
	if userID != rm.ownerID {
		return ErrForbidden
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, err := rm.activeMemberLocked(userID); err != nil {
		return err
	}
	now := rm.reg.now()
	if loc.Timestamp.IsZero() {
		loc.Timestamp = now
	}
	dest := loc
	rm.destination = &dest
	rm.ownerActivityLocked(now)
	rm.broadcastLocked(&Event{
		Kind:          EventDestinationChanged,
		Room:          rm.id,
		ParticipantID: userID,
		Location:      copyLocation(&dest),
	}, "")
	return nil
}

// ClearDestination removes the room's destination. Only an owner who has not
// left may call it.
func (rm *Room) ClearDestination(userID string) error {
	if userID != rm.ownerID {
		return ErrForbidden
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if _, err := rm.activeMemberLocked(userID); err != nil {
		return err
	}
	rm.destination = nil
	rm.ownerActivityLocked(rm.reg.now())
	rm.broadcastLocked(&Event{
		Kind:          EventDestinationChanged,
		Room:          rm.id,
		ParticipantID: userID,
	}, "")
	return nil
}

func (rm *Room) ownerActivityLocked(now time.Time) {
	m := rm.members[rm.ownerID]
	if rm.touchLocked(m, now) {
		rm.resumeLocked(m)
	}
}

// UpdateLocation looks up roomID and applies a location update for userID.
func (r *Registry) UpdateLocation(roomID, userID string, loc Location) error {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.UpdateLocation(userID, loc)
}

// SetDestination looks up roomID and sets its destination on behalf of userID.
func (r *Registry) SetDestination(roomID, userID string, loc Location) error {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.SetDestination(userID, loc)
}

// ClearDestination looks up roomID and clears its destination on behalf of userID.
func (r *Registry) ClearDestination(roomID, userID string) error {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.ClearDestination(userID)
}
