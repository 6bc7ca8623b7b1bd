package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidRoomID   = "invalid_room_id"
	ErrCodeAlreadyExists   = "already_exists"
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeInvalidLocation = "invalid_location"
	ErrCodeStaleUpdate     = "stale_update"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotParticipant  = "not_participant"
	ErrCodeInvalidName     = "invalid_name"
	ErrCodeRoomFull        = "room_full"
	ErrCodeSessionConflict = "session_conflict"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
)

var (
	ErrInvalidRoomID   = coreError(ErrCodeInvalidRoomID, "room id must be 6 characters from A-Z and 0-9")
	ErrAlreadyExists   = coreError(ErrCodeAlreadyExists, "room already exists")
	ErrRoomNotFound    = coreError(ErrCodeRoomNotFound, "room not found")
	ErrInvalidLocation = coreError(ErrCodeInvalidLocation, "invalid location")
	ErrStaleUpdate     = coreError(ErrCodeStaleUpdate, "location update is older than the stored one")
	ErrForbidden       = coreError(ErrCodeForbidden, "only the room owner may change the destination")
	ErrNotParticipant  = coreError(ErrCodeNotParticipant, "not a participant of this room")
	ErrInvalidName     = coreError(ErrCodeInvalidName, "display name must be 1-64 characters")
	ErrRoomFull        = coreError(ErrCodeRoomFull, "room is full")
	ErrSessionConflict = coreError(ErrCodeSessionConflict, "participant already has an open session")
	ErrBadRequest      = coreError(ErrCodeBadRequest, "bad request")

	// ErrSessionClosed is returned by Session.Next once the session is closed.
	ErrSessionClosed = errors.New("session closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// CodeOf returns the code of the first CoreError in err's chain, or "" if none.
func CodeOf(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// AsCoreError converts err into a CoreError, falling back to bad_request.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return coreError(ErrCodeBadRequest, err.Error())
}
