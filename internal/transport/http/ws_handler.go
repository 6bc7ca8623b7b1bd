package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/config"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/proto"
	"github.com/vovakirdan/meetpoint-server/internal/telemetry"
)

const (
	helloTimeout = 10 * time.Second
	writeTimeout = 10 * time.Second

	maxCloseReason = 123
)

// errLeft ends a session after a leave frame.
var errLeft = errors.New("participant left")

// closeError closes the connection with a specific status.
type closeError struct {
	status websocket.StatusCode
	reason string
}

func (e *closeError) Error() string { return e.reason }

func policyViolation(reason string) error {
	return &closeError{status: websocket.StatusPolicyViolation, reason: reason}
}

var errRoomClosed = &closeError{status: websocket.StatusGoingAway, reason: "room closed"}

// WSHandler upgrades HTTP connections and binds them to room sessions.
type WSHandler struct {
	registry        *core.Registry
	gateway         *core.Gateway
	authService     *auth.Service
	maxMessageBytes int64
	rateLimit       float64
	rateBurst       int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, gateway *core.Gateway, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		registry:        registry,
		gateway:         gateway,
		authService:     authService,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.WSRateLimit,
		rateBurst:       cfg.WSRateBurst,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	claims, err := h.handshake(ctx, conn)
	if err != nil {
		h.closeWith(conn, err)
		return
	}

	session, snap, err := h.open(ctx, claims)
	if err != nil {
		h.log.Debug().Err(err).Str("room_id", claims.RoomID).Str("user_id", claims.UserID).Msg("open session")
		_ = h.write(ctx, conn, coreErrorOutbound(err))
		conn.Close(websocket.StatusPolicyViolation, core.AsCoreError(err).Code)
		return
	}
	logger := h.log.With().
		Str("session_id", session.ID).
		Str("room_id", session.RoomID).
		Str("user_id", session.UserID).
		Logger()
	logger.Debug().Msg("ws session opened")

	if err := h.write(ctx, conn, snapshotOutbound(snap)); err != nil {
		h.gateway.Close(session, false)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, &logger)
	}()

	err = <-errCh

	graceful := false
	status := websocket.StatusNormalClosure
	reason := "closing"
	var ce *closeError
	switch {
	case errors.Is(err, errLeft):
		graceful = true
		reason = "left"
	case errors.As(err, &ce):
		status = ce.status
		reason = ce.reason
	case err == nil, errors.Is(err, context.Canceled):
	default:
		s := websocket.CloseStatus(err)
		if s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
			graceful = true
			break
		}
		if errors.Is(err, io.EOF) {
			break
		}
		status = websocket.StatusInternalError
		if s != 0 {
			status = s
		}
		reason = err.Error()
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		logger.Warn().Err(err).Msg("ws connection closed with error")
	}

	// Close before cancelling: a cancelled Read tears the connection down
	// without a close frame.
	conn.Close(status, reason)
	cancel()
	<-errCh

	h.gateway.Close(session, graceful)
	logger.Debug().Bool("graceful", graceful).Msg("ws session closed")
}

// handshake reads the hello frame and validates its token.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	hctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	_, data, err := conn.Read(hctx)
	if err != nil {
		return nil, err
	}
	var in proto.Inbound
	if err := json.Unmarshal(data, &in); err != nil || in.Type != proto.InboundTypeHello {
		return nil, policyViolation("expected hello")
	}
	var hello proto.HelloData
	if err := json.Unmarshal(in.Data, &hello); err != nil {
		return nil, policyViolation("invalid hello")
	}

	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		_ = h.write(ctx, conn, errorOutbound(proto.ErrCodeUnsupportedVersion, "unsupported protocol version"))
		return nil, policyViolation(proto.ErrCodeUnsupportedVersion)
	}

	claims, err := h.authService.ValidateToken(hello.Token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws hello rejected")
		_ = h.write(ctx, conn, errorOutbound(core.ErrCodeUnauthorized, "invalid session token"))
		return nil, policyViolation(core.ErrCodeUnauthorized)
	}
	return claims, nil
}

func (h *WSHandler) open(ctx context.Context, claims *auth.Claims) (*core.Session, core.Snapshot, error) {
	_, span := telemetry.Tracer().Start(ctx, "ws.session.open", trace.WithAttributes(
		attribute.String("room.id", claims.RoomID),
		attribute.String("participant.id", claims.UserID),
	))
	defer span.End()

	session, snap, err := h.gateway.Open(claims.RoomID, core.User{ID: claims.UserID, Name: claims.Name})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, core.CodeOf(err))
		return nil, core.Snapshot{}, err
	}
	return session, snap, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit, h.rateBurst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var in proto.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			logger.Debug().Err(err).Msg("undecodable ws frame")
			return policyViolation(proto.ErrCodeInvalidMessage)
		}
		if !limiter.allow() {
			if err := h.write(ctx, conn, errorOutbound(proto.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		err = h.dispatch(session, in)
		switch {
		case err == nil:
		case errors.Is(err, errLeft):
			return err
		case core.CodeOf(err) != "" || errors.Is(err, errInvalidFrame):
			if writeErr := h.write(ctx, conn, frameErrorOutbound(err)); writeErr != nil {
				return writeErr
			}
		default:
			return err
		}
	}
}

var errInvalidFrame = errors.New("invalid frame data")

func frameErrorOutbound(err error) proto.Outbound {
	if errors.Is(err, errInvalidFrame) {
		return errorOutbound(proto.ErrCodeInvalidMessage, err.Error())
	}
	return coreErrorOutbound(err)
}

// dispatch applies one inbound frame to the room.
func (h *WSHandler) dispatch(session *core.Session, in proto.Inbound) error {
	switch in.Type {
	case proto.InboundTypeHeartbeat:
		return h.registry.Heartbeat(session.RoomID, session.UserID)
	case proto.InboundTypeLocation:
		var data proto.LocationData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return errInvalidFrame
		}
		loc := locationFromProto(data.Latitude, data.Longitude, data.Timestamp)
		return h.registry.UpdateLocation(session.RoomID, session.UserID, loc)
	case proto.InboundTypeDestination:
		var data proto.DestinationData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return errInvalidFrame
		}
		if data.Clear {
			return h.registry.ClearDestination(session.RoomID, session.UserID)
		}
		loc := core.Location{Latitude: data.Latitude, Longitude: data.Longitude}
		return h.registry.SetDestination(session.RoomID, session.UserID, loc)
	case proto.InboundTypeLeave:
		if err := h.registry.Leave(session.RoomID, session.UserID); err != nil {
			return err
		}
		return errLeft
	case proto.InboundTypeHello:
		return errInvalidFrame
	default:
		return policyViolation("unknown message type")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, logger *zerolog.Logger) error {
	for {
		event, resync, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrSessionClosed) {
				return errRoomClosed
			}
			return err
		}

		var out proto.Outbound
		if resync {
			snap, err := h.gateway.Resync(session)
			if err != nil {
				if errors.Is(err, core.ErrSessionClosed) || errors.Is(err, core.ErrRoomNotFound) {
					return errRoomClosed
				}
				return err
			}
			logger.Debug().Uint64("dropped", session.Dropped()).Msg("ws session resynced")
			out = snapshotOutbound(snap)
		} else {
			out = outboundFromEvent(event)
		}

		if err := h.write(ctx, conn, out); err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("write ws event")
			}
			return err
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, out)
}

// closeWith ends a connection that never got a session.
func (h *WSHandler) closeWith(conn *websocket.Conn, err error) {
	var ce *closeError
	if errors.As(err, &ce) {
		conn.Close(ce.status, ce.reason)
		return
	}
	h.log.Debug().Err(err).Msg("ws handshake failed")
	conn.Close(websocket.StatusPolicyViolation, "handshake failed")
}
