package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/store"
)

// DefaultBuffer is the capacity of the pending event queue.
const DefaultBuffer = 256

const writeTimeout = 5 * time.Second

// Recorder persists room lifecycle events. Hooks enqueue without blocking;
// Run drains the queue into the store. Events are dropped when the queue is full.
type Recorder struct {
	core.NopObserver

	store   store.AuditStore
	events  chan store.RoomEvent
	log     zerolog.Logger
	dropped atomic.Uint64
	now     func() time.Time
}

var _ core.Observer = (*Recorder)(nil)

// NewRecorder returns a recorder writing to st.
func NewRecorder(st store.AuditStore, buffer int, logger *zerolog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "audit").Logger()
	}
	return &Recorder{
		store:  st,
		events: make(chan store.RoomEvent, buffer),
		log:    l,
		now:    time.Now,
	}
}

// Run writes queued events until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.write(ctx, ev)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.write(context.Background(), ev)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev store.RoomEvent) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := r.store.AppendRoomEvent(ctx, &ev); err != nil {
		r.log.Error().Err(err).Str("room_id", ev.RoomID).Str("kind", string(ev.Kind)).Msg("append room event")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(ev store.RoomEvent) {
	ev.CreatedAt = r.now()
	select {
	case r.events <- ev:
	default:
		if r.dropped.Add(1) == 1 {
			r.log.Warn().Str("room_id", ev.RoomID).Msg("audit queue full, dropping events")
		}
	}
}

func (r *Recorder) RoomCreated(roomID, ownerID string) {
	r.enqueue(store.RoomEvent{RoomID: roomID, Kind: store.RoomEventCreated, ParticipantID: ownerID})
}

func (r *Recorder) RoomRemoved(roomID, reason string) {
	r.enqueue(store.RoomEvent{RoomID: roomID, Kind: store.RoomEventRemoved, Detail: reason})
}

func (r *Recorder) ParticipantJoined(roomID, participantID string, rejoin bool) {
	detail := ""
	if rejoin {
		detail = "rejoin"
	}
	r.enqueue(store.RoomEvent{RoomID: roomID, Kind: store.RoomEventParticipantJoined, ParticipantID: participantID, Detail: detail})
}

func (r *Recorder) ParticipantLeft(roomID, participantID string) {
	r.enqueue(store.RoomEvent{RoomID: roomID, Kind: store.RoomEventParticipantLeft, ParticipantID: participantID})
}
