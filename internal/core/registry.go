package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Defaults applied by NewRegistry for zero-valued options.
const (
	DefaultHeartbeatTimeout = 45 * time.Second
	DefaultRoomGracePeriod  = 10 * time.Minute
	DefaultMaxClockSkew     = 5 * time.Minute
)

// maxGenerateAttempts bounds retries when generated room codes collide.
const maxGenerateAttempts = 16

// Options configures a Registry.
type Options struct {
	// HeartbeatTimeout marks a participant offline once no activity was seen for this long.
	HeartbeatTimeout time.Duration
	// RoomGracePeriod removes a room once it has had no online participant
	// and no open session for this long.
	RoomGracePeriod time.Duration
	// SessionQueueSize bounds the per-session event queue.
	SessionQueueSize int
	// MaxParticipants caps participants per room; zero means unlimited.
	MaxParticipants int
	// MaxClockSkew rejects location timestamps further in the future; zero disables the check.
	MaxClockSkew time.Duration
	// SessionPolicy governs concurrent sessions for the same participant.
	SessionPolicy SessionPolicy

	Clock        clock.Clock
	Observer     Observer
	Logger       *zerolog.Logger
	GenerateID   func() (string, error)
	NewSessionID func() string
}

// Registry owns every live room. Lookups and creation are safe for
// concurrent use; each room serializes its own mutations.
type Registry struct {
	rooms sync.Map // room id -> *Room
	count atomic.Int64

	opts     Options
	clock    clock.Clock
	observer Observer
	log      zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if opts.RoomGracePeriod <= 0 {
		opts.RoomGracePeriod = DefaultRoomGracePeriod
	}
	if opts.SessionQueueSize <= 0 {
		opts.SessionQueueSize = DefaultSessionQueueSize
	}
	if opts.MaxClockSkew < 0 {
		opts.MaxClockSkew = 0
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.GenerateID == nil {
		opts.GenerateID = GenerateRoomID
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "registry").Logger()
	}
	return &Registry{
		opts:     opts,
		clock:    opts.Clock,
		observer: opts.Observer,
		log:      logger,
	}
}

// CreateRoom registers a room under roomID with owner as its sole participant.
func (r *Registry) CreateRoom(roomID string, owner User) (Snapshot, error) {
	if !ValidRoomID(roomID) {
		return Snapshot{}, ErrInvalidRoomID
	}
	owner, err := normalizeUser(owner)
	if err != nil {
		return Snapshot{}, err
	}
	return r.create(roomID, owner)
}

// CreateRoomWithGeneratedID registers a room under a fresh random code.
func (r *Registry) CreateRoomWithGeneratedID(owner User) (Snapshot, error) {
	owner, err := normalizeUser(owner)
	if err != nil {
		return Snapshot{}, err
	}
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id, err := r.opts.GenerateID()
		if err != nil {
			return Snapshot{}, err
		}
		if !ValidRoomID(id) {
			return Snapshot{}, ErrInvalidRoomID
		}
		snap, err := r.create(id, owner)
		if errors.Is(err, ErrAlreadyExists) {
			r.log.Debug().Str("room", id).Msg("generated room id collided, retrying")
			continue
		}
		return snap, err
	}
	return Snapshot{}, ErrAlreadyExists
}

func (r *Registry) create(roomID string, owner User) (Snapshot, error) {
	room := newRoom(r, roomID, owner)
	for {
		actual, loaded := r.rooms.LoadOrStore(roomID, room)
		if !loaded {
			break
		}
		existing := actual.(*Room)
		if !existing.isClosed() {
			room.shutdown()
			return Snapshot{}, ErrAlreadyExists
		}
		// A removed room can linger until its removal finishes.
		if r.rooms.CompareAndDelete(roomID, existing) {
			r.count.Add(-1)
		}
	}
	r.count.Add(1)
	r.observer.RoomCreated(roomID, owner.ID)
	r.observer.ParticipantJoined(roomID, owner.ID, false)
	r.log.Info().Str("room", roomID).Str("owner", owner.ID).Msg("room created")
	return room.Snapshot()
}

// GetRoom returns the live room registered under roomID.
func (r *Registry) GetRoom(roomID string) (*Room, error) {
	if !ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	room := v.(*Room)
	if room.isClosed() {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Snapshot returns a copy of the room's current state.
func (r *Registry) Snapshot(roomID string) (Snapshot, error) {
	room, err := r.GetRoom(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return room.Snapshot()
}

// RemoveRoom discards a room and closes its sessions. Removing an unknown
// room is a no-op.
func (r *Registry) RemoveRoom(roomID string) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return
	}
	room := v.(*Room)
	if room.shutdown() {
		r.finishRemoval(room, RemovedExplicit)
	}
}

// finishRemoval unregisters a room that has already been shut down.
func (r *Registry) finishRemoval(room *Room, reason string) {
	if r.rooms.CompareAndDelete(room.id, room) {
		r.count.Add(-1)
	}
	r.observer.RoomRemoved(room.id, reason)
	r.log.Info().Str("room", room.id).Str("reason", reason).Msg("room removed")
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Close shuts every room down, closing all sessions and stopping timers.
func (r *Registry) Close() {
	r.rooms.Range(func(_, v any) bool {
		room := v.(*Room)
		if room.shutdown() {
			r.finishRemoval(room, RemovedShutdown)
		}
		return true
	})
}

func (r *Registry) now() time.Time {
	return r.clock.Now()
}
