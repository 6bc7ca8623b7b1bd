package core

import (
	"context"
	"sync"
)

// DefaultSessionQueueSize is used when Options.SessionQueueSize is not positive.
const DefaultSessionQueueSize = 64

// Session is one live connection bound to a participant of a room. Events are
// buffered in a bounded queue; when it overflows the oldest superseded event
// is discarded and the session is flagged for a full resync.
type Session struct {
	ID     string
	RoomID string
	UserID string

	limit int

	mu      sync.Mutex
	queue   []*Event
	resync  bool
	closed  bool
	dropped uint64

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id, roomID, userID string, limit int) *Session {
	if limit <= 0 {
		limit = DefaultSessionQueueSize
	}
	return &Session{
		ID:     id,
		RoomID: roomID,
		UserID: userID,
		limit:  limit,
		queue:  make([]*Event, 0, limit),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends ev without blocking. It reports whether an older event had
// to be discarded to make room.
func (s *Session) enqueue(ev *Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if len(s.queue) >= s.limit {
		idx := 0
		for i, q := range s.queue {
			if q.Kind.droppable() {
				idx = i
				break
			}
		}
		copy(s.queue[idx:], s.queue[idx+1:])
		s.queue[len(s.queue)-1] = nil
		s.queue = s.queue[:len(s.queue)-1]
		s.resync = true
		s.dropped++
		dropped = true
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Next blocks until an event is available. When resync is true the caller
// must fetch a fresh snapshot through Gateway.Resync instead of using ev.
func (s *Session) Next(ctx context.Context) (ev *Event, resync bool, err error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, false, ErrSessionClosed
		}
		if s.resync {
			s.mu.Unlock()
			return nil, true, nil
		}
		if len(s.queue) > 0 {
			ev = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, false, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// reset discards queued events and clears the resync flag. Called with the
// room lock held so no event can slip between the snapshot and the reset.
func (s *Session) reset() {
	s.mu.Lock()
	for i := range s.queue {
		s.queue[i] = nil
	}
	s.queue = s.queue[:0]
	s.resync = false
	s.mu.Unlock()
}

// Pending returns the number of queued events.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// NeedsResync reports whether the queue overflowed since the last resync.
func (s *Session) NeedsResync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resync
}

// Dropped returns how many events were discarded on overflow.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}
