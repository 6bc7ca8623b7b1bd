package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusForCode maps core error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case core.ErrCodeInvalidRoomID, core.ErrCodeInvalidLocation, core.ErrCodeInvalidName, core.ErrCodeBadRequest:
		return http.StatusBadRequest
	case core.ErrCodeAlreadyExists, core.ErrCodeStaleUpdate, core.ErrCodeRoomFull, core.ErrCodeSessionConflict:
		return http.StatusConflict
	case core.ErrCodeRoomNotFound:
		return http.StatusNotFound
	case core.ErrCodeForbidden, core.ErrCodeNotParticipant:
		return http.StatusForbidden
	case core.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse. Errors without a core code are
// logged and reported as 500.
func respondError(c *gin.Context, logger *zerolog.Logger, err error) {
	code := core.CodeOf(err)
	if code == "" {
		logger.Error().Err(err).
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(statusForCode(code), ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: core.ErrCodeBadRequest})
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
