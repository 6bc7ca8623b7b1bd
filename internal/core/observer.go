package core

// Outcomes reported to Observer.LocationUpdated.
const (
	LocationAccepted = "accepted"
	LocationStale    = "stale"
	LocationInvalid  = "invalid"
	LocationRejected = "rejected"
)

// Reasons reported to Observer.RoomRemoved.
const (
	RemovedExplicit = "removed"
	RemovedExpired  = "expired"
	RemovedShutdown = "shutdown"
)

// Observer receives lifecycle notifications from the registry. Hooks may be
// invoked while a room lock is held and must not block.
type Observer interface {
	RoomCreated(roomID, ownerID string)
	RoomRemoved(roomID, reason string)
	ParticipantJoined(roomID, participantID string, rejoin bool)
	ParticipantLeft(roomID, participantID string)
	PresenceChanged(roomID, participantID string, online bool)
	LocationUpdated(roomID, result string)
	SessionOpened(roomID string)
	SessionClosed(roomID string)
	EventDropped(roomID string)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RoomCreated(string, string)             {}
func (NopObserver) RoomRemoved(string, string)             {}
func (NopObserver) ParticipantJoined(string, string, bool) {}
func (NopObserver) ParticipantLeft(string, string)         {}
func (NopObserver) PresenceChanged(string, string, bool)   {}
func (NopObserver) LocationUpdated(string, string)         {}
func (NopObserver) SessionOpened(string)                   {}
func (NopObserver) SessionClosed(string)                   {}
func (NopObserver) EventDropped(string)                    {}

// Observers fans notifications out to each element in order.
type Observers []Observer

func (o Observers) RoomCreated(roomID, ownerID string) {
	for _, ob := range o {
		ob.RoomCreated(roomID, ownerID)
	}
}

func (o Observers) RoomRemoved(roomID, reason string) {
	for _, ob := range o {
		ob.RoomRemoved(roomID, reason)
	}
}

func (o Observers) ParticipantJoined(roomID, participantID string, rejoin bool) {
	for _, ob := range o {
		ob.ParticipantJoined(roomID, participantID, rejoin)
	}
}

func (o Observers) ParticipantLeft(roomID, participantID string) {
	for _, ob := range o {
		ob.ParticipantLeft(roomID, participantID)
	}
}

func (o Observers) PresenceChanged(roomID, participantID string, online bool) {
	for _, ob := range o {
		ob.PresenceChanged(roomID, participantID, online)
	}
}

func (o Observers) LocationUpdated(roomID, result string) {
	for _, ob := range o {
		ob.LocationUpdated(roomID, result)
	}
}

func (o Observers) SessionOpened(roomID string) {
	for _, ob := range o {
		ob.SessionOpened(roomID)
	}
}

func (o Observers) SessionClosed(roomID string) {
	for _, ob := range o {
		ob.SessionClosed(roomID)
	}
}

func (o Observers) EventDropped(roomID string) {
	for _, ob := range o {
		ob.EventDropped(roomID)
	}
}
