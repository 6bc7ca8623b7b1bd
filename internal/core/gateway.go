package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SessionPolicy decides what happens when a participant opens a second
// session while one is still attached.
type SessionPolicy int

const (
	// SessionAllow attaches every session; events go to all of them.
	SessionAllow SessionPolicy = iota
	// SessionReject refuses the new session with ErrSessionConflict.
	SessionReject
)

func (p SessionPolicy) String() string {
	if p == SessionReject {
		return "reject"
	}
	return "allow"
}

// ParseSessionPolicy accepts "allow" (or empty) and "reject".
func ParseSessionPolicy(s string) (SessionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return SessionAllow, nil
	case "reject":
		return SessionReject, nil
	default:
		return SessionAllow, fmt.Errorf("unknown session policy %q", s)
	}
}

// Gateway binds transport connections to room participants.
type Gateway struct {
	reg   *Registry
	newID func() string
}

// NewGateway returns a gateway over reg.
func NewGateway(reg *Registry) *Gateway {
	newID := reg.opts.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Gateway{reg: reg, newID: newID}
}

// Open attaches a new session for user to roomID, joining the user if it is
// new or has left. A participant already in the room is only marked active.
// The returned snapshot is consistent with the first event the session will
// receive.
func (g *Gateway) Open(roomID string, user User) (*Session, Snapshot, error) {
	user, err := normalizeUser(user)
	if err != nil {
		return nil, Snapshot{}, err
	}
	room, err := g.reg.GetRoom(roomID)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return room.attach(user, g.newID())
}

// Close detaches s. When graceful is true and s was the participant's last
// session, the participant leaves the room. An abrupt close leaves presence
// to the heartbeat timeout.
func (g *Gateway) Close(s *Session, graceful bool) {
	v, ok := g.reg.rooms.Load(s.RoomID)
	if !ok {
		s.close()
		return
	}
	v.(*Room).detach(s, graceful)
}

// Resync returns a fresh snapshot for s and discards its queued events.
func (g *Gateway) Resync(s *Session) (Snapshot, error) {
	room, err := g.reg.GetRoom(s.RoomID)
	if err != nil {
		return Snapshot{}, err
	}
	return room.resync(s)
}

func (rm *Room) attach(user User, sessionID string) (*Session, Snapshot, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return nil, Snapshot{}, ErrRoomNotFound
	}
	if existing, ok := rm.members[user.ID]; ok && existing.sessions > 0 &&
		rm.reg.opts.SessionPolicy == SessionReject {
		return nil, Snapshot{}, ErrSessionConflict
	}
	m, ok := rm.members[user.ID]
	if ok && !m.p.Left {
		if rm.touchLocked(m, rm.reg.now()) {
			rm.resumeLocked(m)
		}
	} else {
		var err error
		if m, err = rm.joinLocked(user); err != nil {
			return nil, Snapshot{}, err
		}
	}
	s := newSession(sessionID, rm.id, user.ID, rm.reg.opts.SessionQueueSize)
	rm.sessions[s] = struct{}{}
	m.sessions++
	rm.reg.observer.SessionOpened(rm.id)
	rm.checkIdleLocked()
	return s, rm.snapshotLocked(), nil
}

func (rm *Room) detach(s *Session, graceful bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	defer s.close()
	if _, ok := rm.sessions[s]; !ok {
		return
	}
	delete(rm.sessions, s)
	rm.reg.observer.SessionClosed(rm.id)
	if m, ok := rm.members[s.UserID]; ok {
		m.sessions--
		if graceful && m.sessions == 0 {
			rm.leaveLocked(m)
		}
	}
	rm.checkIdleLocked()
}

func (rm *Room) resync(s *Session) (Snapshot, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	if _, ok := rm.sessions[s]; !ok {
		return Snapshot{}, ErrSessionClosed
	}
	s.reset()
	return rm.snapshotLocked(), nil
}
