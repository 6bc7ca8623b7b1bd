package core

// Join adds user to the room, or brings a returning participant back online
// with its identity and last location intact.
func (rm *Room) Join(user User) (Participant, Snapshot, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return Participant{}, Snapshot{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return Participant{}, Snapshot{}, ErrRoomNotFound
	}
	m, err := rm.joinLocked(user)
	if err != nil {
		return Participant{}, Snapshot{}, err
	}
	return m.view(), rm.snapshotLocked(), nil
}

func (rm *Room) joinLocked(user User) (*member, error) {
	now := rm.reg.now()
	m, rejoin := rm.members[user.ID]
	if rejoin {
		m.p.Name = user.Name
		m.p.Left = false
		rm.touchLocked(m, now)
	} else {
		if limit := rm.reg.opts.MaxParticipants; limit > 0 && len(rm.members) >= limit {
			return nil, ErrRoomFull
		}
		m = &member{p: Participant{
			ID:       user.ID,
			Name:     user.Name,
			Online:   true,
			LastSeen: now,
			JoinedAt: now,
		}}
		rm.members[user.ID] = m
		rm.order = append(rm.order, user.ID)
		rm.armPresenceLocked(m)
	}

	view := m.view()
	rm.broadcastLocked(&Event{
		Kind:          EventParticipantJoined,
		Room:          rm.id,
		ParticipantID: user.ID,
		Participant:   &view,
	}, user.ID)
	rm.reg.observer.ParticipantJoined(rm.id, user.ID, rejoin)
	rm.checkIdleLocked()
	return m, nil
}

// Leave marks the participant as explicitly gone. The entry stays in the
// room, offline, so a later Join restores it. Leaving twice is a no-op.
func (rm *Room) Leave(userID string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return ErrRoomNotFound
	}
	m, ok := rm.members[userID]
	if !ok {
		return ErrNotParticipant
	}
	rm.leaveLocked(m)
	return nil
}

func (rm *Room) leaveLocked(m *member) {
	if m.p.Left {
		return
	}
	m.p.Left = true
	m.p.Online = false
	if m.timer != nil {
		m.timer.Stop()
	}
	rm.broadcastLocked(&Event{
		Kind:          EventParticipantLeft,
		Room:          rm.id,
		ParticipantID: m.p.ID,
	}, m.p.ID)
	rm.reg.observer.ParticipantLeft(rm.id, m.p.ID)
	rm.checkIdleLocked()
}

// activeMemberLocked returns the member for userID unless it is unknown or
// has left.
func (rm *Room) activeMemberLocked(userID string) (*member, error) {
	if rm.closed {
		return nil, ErrRoomNotFound
	}
	m, ok := rm.members[userID]
	if !ok || m.p.Left {
		return nil, ErrNotParticipant
	}
	return m, nil
}

// Join looks up roomID and joins user to it.
func (r *Registry) Join(roomID string, user User) (Participant, Snapshot, error) {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return Participant{}, Snapshot{}, err
	}
	return room.Join(user)
}

// Leave looks up roomID and removes userID from the online set.
func (r *Registry) Leave(roomID, userID string) error {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return err
	}
	return room.Leave(userID)
}
