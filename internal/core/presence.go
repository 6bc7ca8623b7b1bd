package core

import "time"

// touchLocked records activity for m. It reports whether m was offline and
// is now back online.
func (rm *Room) touchLocked(m *member, now time.Time) bool {
	if now.After(m.p.LastSeen) {
		m.p.LastSeen = now
	}
	resumed := !m.p.Online
	m.p.Online = true
	rm.armPresenceLocked(m)
	return resumed
}

func (rm *Room) armPresenceLocked(m *member) {
	timeout := rm.reg.opts.HeartbeatTimeout
	if m.timer == nil {
		id := m.p.ID
		m.timer = rm.reg.clock.AfterFunc(timeout, func() { rm.presenceExpired(id) })
		return
	}
	m.timer.Reset(timeout)
}

// presenceExpired runs when a participant's timer fires. Activity may have
// been recorded after the timer was armed, so the deadline is re-checked
// under the lock and the timer re-armed for the remainder if not yet due.
func (rm *Room) presenceExpired(participantID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return
	}
	m, ok := rm.members[participantID]
	if !ok || !m.p.Online || m.timer == nil {
		return
	}
	timeout := rm.reg.opts.HeartbeatTimeout
	elapsed := rm.reg.now().Sub(m.p.LastSeen)
	if elapsed < timeout {
		m.timer.Reset(timeout - elapsed)
		return
	}

	m.p.Online = false
	rm.broadcastLocked(&Event{
		Kind:          EventPresenceChanged,
		Room:          rm.id,
		ParticipantID: participantID,
		Online:        false,
	}, participantID)
	rm.reg.observer.PresenceChanged(rm.id, participantID, false)
	rm.reg.log.Debug().Str("room", rm.id).Str("participant", participantID).Msg("participant timed out")
	rm.checkIdleLocked()
}

// resumeLocked announces that m came back online after a timeout.
func (rm *Room) resumeLocked(m *member) {
	rm.broadcastLocked(&Event{
		Kind:          EventPresenceChanged,
		Room:          rm.id,
		ParticipantID: m.p.ID,
		Online:        true,
	}, m.p.ID)
	rm.reg.observer.PresenceChanged(rm.id, m.p.ID, true)
	rm.checkIdleLocked()
}

// Heartbeat records liveness for userID without any other change.
func (rm *Room) Heartbeat(userID string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	m, err := rm.activeMemberLocked(userID)
	if err != nil {
		return err
	}
	if rm.touchLocked(m, rm.reg.now()) {
		rm.resumeLocked(m)
	}
	return nil
}

// Heartbeat looks up roomID and records liveness for userID.
func (r *Registry) Heartbeat(roomID, userID string) error {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.Heartbeat(userID)
}
