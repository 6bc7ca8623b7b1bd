package core

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLength bounds a participant display name, in runes.
const MaxNameLength = 64

// User identifies a principal acting on a room.
type User struct {
	ID   string
	Name string
}

// Location is a geographic point with the instant it was observed.
type Location struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// Validate reports ErrInvalidLocation unless the point lies within WGS84 bounds.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return ErrInvalidLocation
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return ErrInvalidLocation
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// Participant is a member of a room as seen by clients.
type Participant struct {
	ID       string
	Name     string
	Location *Location
	Online   bool
	Left     bool
	LastSeen time.Time
	JoinedAt time.Time
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	ID           string
	OwnerID      string
	CreatedAt    time.Time
	Destination  *Location
	Participants []Participant
}

// Participant looks up a participant by id.
func (s Snapshot) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Owner returns the owner's participant entry.
func (s Snapshot) Owner() Participant {
	p, _ := s.Participant(s.OwnerID)
	return p
}

func normalizeUser(u User) (User, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	if u.ID == "" {
		return u, coreError(ErrCodeBadRequest, "user id is required")
	}
	if u.Name == "" || utf8.RuneCountInString(u.Name) > MaxNameLength {
		return u, ErrInvalidName
	}
	return u, nil
}

func copyLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
