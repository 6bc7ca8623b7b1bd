package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventParticipantJoined announces a new or returning participant.
	EventParticipantJoined EventKind = iota
	// EventParticipantLeft announces an explicit leave.
	EventParticipantLeft
	// EventLocationUpdated carries a participant's newest accepted location.
	EventLocationUpdated
	// EventPresenceChanged flips a participant between online and offline.
	EventPresenceChanged
	// EventDestinationChanged carries the new destination, nil when cleared.
	EventDestinationChanged
	// EventRoomSnapshot replaces the client's view of the room.
	EventRoomSnapshot
)

var eventKindNames = [...]string{
	EventParticipantJoined:  "participant-joined",
	EventParticipantLeft:    "participant-left",
	EventLocationUpdated:    "location-updated",
	EventPresenceChanged:    "presence-changed",
	EventDestinationChanged: "destination-changed",
	EventRoomSnapshot:       "room-snapshot",
}

func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// droppable events are superseded by later ones or by a snapshot.
func (k EventKind) droppable() bool {
	return k == EventLocationUpdated || k == EventPresenceChanged
}

// Event describes a room change delivered to sessions. Events are shared
// between sessions and must be treated as read-only.
type Event struct {
	Kind          EventKind
	Room          string
	ParticipantID string
	Participant   *Participant // participant-joined
	Location      *Location    // location-updated, destination-changed
	Online        bool         // presence-changed
	Snapshot      *Snapshot    // room-snapshot
}
