package http

import (
	"time"

	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/proto"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func locationToProto(l *core.Location) *proto.Location {
	if l == nil {
		return nil
	}
	return &proto.Location{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Timestamp: millis(l.Timestamp),
	}
}

func locationFromProto(lat, lon float64, ts int64) core.Location {
	loc := core.Location{Latitude: lat, Longitude: lon}
	if ts != 0 {
		loc.Timestamp = time.UnixMilli(ts)
	}
	return loc
}

func participantToProto(p core.Participant) proto.Participant {
	return proto.Participant{
		ID:       p.ID,
		Name:     p.Name,
		Location: locationToProto(p.Location),
		IsOnline: p.Online,
		LastSeen: millis(p.LastSeen),
		JoinedAt: millis(p.JoinedAt),
	}
}

func snapshotToProto(s core.Snapshot) proto.Room {
	room := proto.Room{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		CreatedAt:    millis(s.CreatedAt),
		Destination:  locationToProto(s.Destination),
		Participants: make([]proto.Participant, 0, len(s.Participants)),
	}
	for _, p := range s.Participants {
		room.Participants = append(room.Participants, participantToProto(p))
	}
	return room
}

func snapshotOutbound(s core.Snapshot) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventRoomSnapshot,
		Data:  proto.EventRoomSnapshotData{Room: snapshotToProto(s)},
	}
}

func errorOutbound(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

func coreErrorOutbound(err error) proto.Outbound {
	ce := core.AsCoreError(err)
	return errorOutbound(ce.Code, ce.Message)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}
	switch event.Kind {
	case core.EventParticipantJoined:
		var p proto.Participant
		if event.Participant != nil {
			p = participantToProto(*event.Participant)
		}
		out.Data = proto.EventParticipantJoinedData{Participant: p}
	case core.EventParticipantLeft:
		out.Data = proto.EventParticipantLeftData{ParticipantID: event.ParticipantID}
	case core.EventLocationUpdated:
		var loc proto.Location
		if l := locationToProto(event.Location); l != nil {
			loc = *l
		}
		out.Data = proto.EventLocationUpdatedData{ParticipantID: event.ParticipantID, Location: loc}
	case core.EventPresenceChanged:
		out.Data = proto.EventPresenceChangedData{ParticipantID: event.ParticipantID, IsOnline: event.Online}
	case core.EventDestinationChanged:
		out.Data = proto.EventDestinationChangedData{Location: locationToProto(event.Location)}
	case core.EventRoomSnapshot:
		if event.Snapshot != nil {
			return snapshotOutbound(*event.Snapshot)
		}
	}
	return out
}
