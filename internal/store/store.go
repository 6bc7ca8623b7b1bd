package store

import (
	"context"
	"time"
)

// RoomEventKind classifies an audit record.
type RoomEventKind string

const (
	RoomEventCreated           RoomEventKind = "room_created"
	RoomEventRemoved           RoomEventKind = "room_removed"
	RoomEventParticipantJoined RoomEventKind = "participant_joined"
	RoomEventParticipantLeft   RoomEventKind = "participant_left"
)

// RoomEvent is a lifecycle record of a room. Locations are never recorded.
type RoomEvent struct {
	ID            string
	RoomID        string
	Kind          RoomEventKind
	ParticipantID string
	Detail        string
	CreatedAt     time.Time
}

// AuditStore persists room lifecycle events.
type AuditStore interface {
	AppendRoomEvent(ctx context.Context, ev *RoomEvent) error
	// ListRoomEvents returns up to limit of the most recent events for roomID, oldest first.
	ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*RoomEvent, error)
	Close() error
}
