package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello       = "hello"
	InboundTypeHeartbeat   = "heartbeat"
	InboundTypeLocation    = "location"
	InboundTypeDestination = "destination"
	InboundTypeLeave       = "leave"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Event names carried in Outbound.Event.
const (
	EventParticipantJoined  = "participant-joined"
	EventParticipantLeft    = "participant-left"
	EventLocationUpdated    = "location-updated"
	EventPresenceChanged    = "presence-changed"
	EventDestinationChanged = "destination-changed"
	EventRoomSnapshot       = "room-snapshot"
)

// Error codes that exist only on the wire.
const (
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInvalidMessage     = "invalid_message"
)

// HelloData must be the first frame of a session.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// LocationData reports the sender's position. Timestamp is in Unix milliseconds.
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// DestinationData sets the room destination, or clears it when Clear is true.
type DestinationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Clear     bool    `json:"clear,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Location is a point on the wire. Timestamp is in Unix milliseconds.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// Participant is a room member on the wire.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location *Location `json:"location,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen int64     `json:"lastSeen"`
	JoinedAt int64     `json:"joinedAt"`
}

// Room is a full room snapshot on the wire.
type Room struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"ownerId"`
	CreatedAt    int64         `json:"createdAt"`
	Destination  *Location     `json:"destination,omitempty"`
	Participants []Participant `json:"participants"`
}

// EventParticipantJoinedData announces a new or returning participant.
type EventParticipantJoinedData struct {
	Participant Participant `json:"participant"`
}

// EventParticipantLeftData announces an explicit leave.
type EventParticipantLeftData struct {
	ParticipantID string `json:"participantId"`
}

// EventLocationUpdatedData carries a participant's newest location.
type EventLocationUpdatedData struct {
	ParticipantID string   `json:"participantId"`
	Location      Location `json:"location"`
}

// EventPresenceChangedData flips a participant's online state.
type EventPresenceChangedData struct {
	ParticipantID string `json:"participantId"`
	IsOnline      bool   `json:"isOnline"`
}

// EventDestinationChangedData carries the destination; Location is null when cleared.
type EventDestinationChangedData struct {
	Location *Location `json:"location"`
}

// EventRoomSnapshotData replaces the client's view of the room.
type EventRoomSnapshotData struct {
	Room Room `json:"room"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
