package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Room is a single shared map. All state is guarded by mu; every mutation
// and the event fan-out it causes happen under the same critical section, so
// sessions observe changes in the order they were applied.
type Room struct {
	id        string
	ownerID   string
	createdAt time.Time
	reg       *Registry

	mu          sync.Mutex
	closed      bool
	destination *Location
	members     map[string]*member
	order       []string
	sessions    map[*Session]struct{}
	idleTimer   *clock.Timer
}

type member struct {
	p        Participant
	sessions int
	timer    *clock.Timer
}

func newRoom(reg *Registry, id string, owner User) *Room {
	now := reg.now()
	rm := &Room{
		id:        id,
		ownerID:   owner.ID,
		createdAt: now,
		reg:       reg,
		members:   make(map[string]*member),
		sessions:  make(map[*Session]struct{}),
	}
	m := &member{p: Participant{
		ID:       owner.ID,
		Name:     owner.Name,
		Online:   true,
		LastSeen: now,
		JoinedAt: now,
	}}
	rm.members[owner.ID] = m
	rm.order = append(rm.order, owner.ID)
	rm.armPresenceLocked(m)
	return rm
}

// ID returns the room code.
func (rm *Room) ID() string { return rm.id }

// OwnerID returns the id of the participant who created the room.
func (rm *Room) OwnerID() string { return rm.ownerID }

// Snapshot returns a copy of the room's current state.
func (rm *Room) Snapshot() (Snapshot, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return Snapshot{}, ErrRoomNotFound
	}
	return rm.snapshotLocked(), nil
}

func (rm *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           rm.id,
		OwnerID:      rm.ownerID,
		CreatedAt:    rm.createdAt,
		Destination:  copyLocation(rm.destination),
		Participants: make([]Participant, 0, len(rm.order)),
	}
	for _, id := range rm.order {
		snap.Participants = append(snap.Participants, rm.members[id].view())
	}
	return snap
}

func (m *member) view() Participant {
	p := m.p
	p.Location = copyLocation(m.p.Location)
	return p
}

func (rm *Room) isClosed() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.closed
}

// broadcastLocked enqueues ev on every session except those belonging to
// exclude. Must be called with rm.mu held.
func (rm *Room) broadcastLocked(ev *Event, exclude string) {
	for s := range rm.sessions {
		if exclude != "" && s.UserID == exclude {
			continue
		}
		if s.enqueue(ev) {
			rm.reg.observer.EventDropped(rm.id)
		}
	}
}

func (rm *Room) idleLocked() bool {
	if len(rm.sessions) > 0 {
		return false
	}
	for _, m := range rm.members {
		if m.p.Online {
			return false
		}
	}
	return true
}

// checkIdleLocked arms the grace timer when the room becomes idle and
// disarms it when activity returns.
func (rm *Room) checkIdleLocked() {
	if rm.closed {
		return
	}
	if rm.idleLocked() {
		if rm.idleTimer == nil {
			rm.idleTimer = rm.reg.clock.AfterFunc(rm.reg.opts.RoomGracePeriod, rm.expireIfIdle)
		}
		return
	}
	if rm.idleTimer != nil {
		rm.idleTimer.Stop()
		rm.idleTimer = nil
	}
}

func (rm *Room) expireIfIdle() {
	rm.mu.Lock()
	if rm.closed || rm.idleTimer == nil || !rm.idleLocked() {
		rm.mu.Unlock()
		return
	}
	rm.shutdownLocked()
	rm.mu.Unlock()
	rm.reg.finishRemoval(rm, RemovedExpired)
}

// shutdown marks the room closed, stops its timers and closes its sessions.
// It reports false when the room was already closed.
func (rm *Room) shutdown() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return false
	}
	rm.shutdownLocked()
	return true
}

func (rm *Room) shutdownLocked() {
	rm.closed = true
	if rm.idleTimer != nil {
		rm.idleTimer.Stop()
		rm.idleTimer = nil
	}
	for _, m := range rm.members {
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
	}
	for s := range rm.sessions {
		s.close()
		rm.reg.observer.SessionClosed(rm.id)
	}
	rm.sessions = make(map[*Session]struct{})
}
