package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/utils"
)

const (
	// ContextKeyClaims is the context key for storing validated session claims.
	ContextKeyClaims = "session_claims"
	// ContextKeyRequestID is the context key for the request correlation id.
	ContextKeyRequestID = "request_id"

	headerRequestID = "X-Request-ID"
)

// SessionMiddleware validates an optional Bearer session token. A valid
// token's claims are stored in the context; an invalid one is rejected.
// When required is true a missing token is rejected as well.
func SessionMiddleware(authService *auth.Service, required bool, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				logger.Debug().Msg("missing authorization header")
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header", Code: core.ErrCodeUnauthorized})
				return
			}
			c.Next()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format", Code: core.ErrCodeUnauthorized})
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: core.ErrCodeUnauthorized})
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// sessionClaims returns the claims stored by SessionMiddleware, if any.
func sessionClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = utils.NewID()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(headerRequestID, requestID)
		start := time.Now()

		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
