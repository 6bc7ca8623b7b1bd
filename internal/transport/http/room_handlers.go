package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/proto"
	"github.com/vovakirdan/meetpoint-server/internal/store"
)

// auditListLimit caps GET /rooms/:roomId/events.
const auditListLimit = 100

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	registry     *core.Registry
	authService  *auth.Service
	events       store.AuditStore
	shareBaseURL string
	log          *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance. events may be nil
// when the audit log is disabled.
func NewRoomHandlers(registry *core.Registry, authService *auth.Service, events store.AuditStore, shareBaseURL string, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry:     registry,
		authService:  authService,
		events:       events,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
		log:          logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	OwnerUserID string `json:"ownerUserId" binding:"required"`
	OwnerName   string `json:"ownerName"`
	RoomID      string `json:"roomId"`
}

// CreateRoomResponse is returned by POST /rooms.
type CreateRoomResponse struct {
	RoomID       string     `json:"roomId"`
	ShareURL     string     `json:"shareUrl"`
	SessionToken string     `json:"sessionToken"`
	Room         proto.Room `json:"room"`
}

// JoinRoomRequest represents the join request body.
type JoinRoomRequest struct {
	UserID string `json:"userId" binding:"required"`
	Name   string `json:"name"`
}

// JoinRoomResponse is returned by POST /rooms/:roomId/join.
type JoinRoomResponse struct {
	Room         proto.Room `json:"room"`
	SessionToken string     `json:"sessionToken"`
}

// RoomResponse wraps a room snapshot.
type RoomResponse struct {
	Room proto.Room `json:"room"`
}

// ParticipantRequest identifies the acting participant.
type ParticipantRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// LocationRequest carries a location update. Timestamp is Unix milliseconds.
type LocationRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Timestamp *int64   `json:"timestamp" binding:"required"`
}

// DestinationRequest carries a new destination.
type DestinationRequest struct {
	UserID    string   `json:"userId" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// RoomEventResponse is one audit record.
type RoomEventResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	ParticipantID string `json:"participantId,omitempty"`
	Detail        string `json:"detail,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

// CreateRoom handles room creation.
// POST /rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		badRequest(c, "invalid request body")
		return
	}

	owner := core.User{ID: req.OwnerUserID, Name: req.OwnerName}
	var (
		snap core.Snapshot
		err  error
	)
	if req.RoomID != "" {
		snap, err = h.registry.CreateRoom(req.RoomID, owner)
	} else {
		snap, err = h.registry.CreateRoomWithGeneratedID(owner)
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	owner = core.User{ID: snap.OwnerID, Name: snap.Owner().Name}
	token, err := h.authService.IssueSessionToken(snap.ID, owner.ID, owner.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, CreateRoomResponse{
		RoomID:       snap.ID,
		ShareURL:     h.shareURL(snap.ID),
		SessionToken: token,
		Room:         snapshotToProto(snap),
	})
}

func (h *RoomHandlers) shareURL(roomID string) string {
	return h.shareBaseURL + "/?roomId=" + roomID
}

// GetRoom returns a room snapshot.
// GET /rooms/:roomId
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	roomID, ok := h.bindRoom(c)
	if !ok {
		return
	}
	snap, err := h.registry.Snapshot(roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, RoomResponse{Room: snapshotToProto(snap)})
}

// JoinRoom adds a participant and issues its session token.
// POST /rooms/:roomId/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	roomID, ok := h.bindRoom(c)
	if !ok {
		return
	}
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	p, snap, err := h.registry.Join(roomID, core.User{ID: req.UserID, Name: req.Name})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	token, err := h.authService.IssueSessionToken(roomID, p.ID, p.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, JoinRoomResponse{Room: snapshotToProto(snap), SessionToken: token})
}

// LeaveRoom marks the participant as gone.
// POST /rooms/:roomId/leave
func (h *RoomHandlers) LeaveRoom(c *gin.Context) {
	roomID, req, ok := h.bindParticipant(c)
	if !ok {
		return
	}
	if err := h.registry.Leave(roomID, req.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateLocation applies a location update.
// POST /rooms/:roomId/location
func (h *RoomHandlers) UpdateLocation(c *gin.Context) {
	roomID, ok := h.bindRoom(c)
	if !ok {
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.authorize(c, roomID, req.UserID) {
		return
	}

	loc := locationFromProto(*req.Latitude, *req.Longitude, *req.Timestamp)
	if err := h.registry.UpdateLocation(roomID, req.UserID, loc); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDestination replaces the room destination.
// POST /rooms/:roomId/destination
func (h *RoomHandlers) SetDestination(c *gin.Context) {
	roomID, ok := h.bindRoom(c)
	if !ok {
		return
	}
	var req DestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.authorize(c, roomID, req.UserID) {
		return
	}

	loc := core.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := h.registry.SetDestination(roomID, req.UserID, loc); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearDestination removes the room destination.
// DELETE /rooms/:roomId/destination
func (h *RoomHandlers) ClearDestination(c *gin.Context) {
	roomID, req, ok := h.bindParticipant(c)
	if !ok {
		return
	}
	if err := h.registry.ClearDestination(roomID, req.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Heartbeat records liveness.
// POST /rooms/:roomId/heartbeat
func (h *RoomHandlers) Heartbeat(c *gin.Context) {
	roomID, req, ok := h.bindParticipant(c)
	if !ok {
		return
	}
	if err := h.registry.Heartbeat(roomID, req.UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEvents returns the room's recent audit records.
// GET /rooms/:roomId/events
func (h *RoomHandlers) ListEvents(c *gin.Context) {
	roomID, ok := h.bindRoom(c)
	if !ok {
		return
	}
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "audit log is disabled"})
		return
	}

	events, err := h.events.ListRoomEvents(c.Request.Context(), roomID, auditListLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if len(events) == 0 {
		if _, err := h.registry.GetRoom(roomID); err != nil {
			respondError(c, h.log, err)
			return
		}
	}

	resp := make([]RoomEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, RoomEventResponse{
			ID:            ev.ID,
			Kind:          string(ev.Kind),
			ParticipantID: ev.ParticipantID,
			Detail:        ev.Detail,
			CreatedAt:     ev.CreatedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoomHandlers) bindRoom(c *gin.Context) (string, bool) {
	var uri roomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidRoomID.Message, Code: core.ErrCodeInvalidRoomID})
		return "", false
	}
	return uri.RoomID, true
}

func (h *RoomHandlers) bindParticipant(c *gin.Context) (string, ParticipantRequest, bool) {
	var req ParticipantRequest
	roomID, ok := h.bindRoom(c)
	if !ok {
		return "", req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return "", req, false
	}
	if !h.authorize(c, roomID, req.UserID) {
		return "", req, false
	}
	return roomID, req, true
}

// authorize rejects requests whose session token names another participant.
func (h *RoomHandlers) authorize(c *gin.Context, roomID, userID string) bool {
	claims := sessionClaims(c)
	if claims == nil {
		return true
	}
	if err := h.authService.Authorize(claims, roomID, userID); err != nil {
		if !errors.Is(err, auth.ErrTokenMismatch) {
			h.log.Debug().Err(err).Msg("authorize session")
		}
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: core.ErrCodeForbidden})
		return false
	}
	return true
}
