package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/config"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/store"
)

// Deps are the services the transport layer serves.
type Deps struct {
	Registry *core.Registry
	Gateway  *core.Gateway
	Auth     *auth.Service
	// Audit is nil when the audit log is disabled.
	Audit store.AuditStore
	// Metrics serves /metrics; nil omits the route.
	Metrics stdhttp.Handler
}

// NewRouter builds the gin engine with all routes.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	rooms := NewRoomHandlers(deps.Registry, deps.Auth, deps.Audit, cfg.ShareBaseURL, logger)
	router.POST("/rooms", rooms.CreateRoom)
	router.GET("/rooms/:roomId", rooms.GetRoom)
	router.POST("/rooms/:roomId/join", rooms.JoinRoom)
	router.GET("/rooms/:roomId/events", rooms.ListEvents)

	// Mutating endpoints check the caller's session token.
	session := router.Group("/rooms/:roomId")
	session.Use(SessionMiddleware(deps.Auth, cfg.JWTRequired, logger))
	{
		session.POST("/leave", rooms.LeaveRoom)
		session.POST("/location", rooms.UpdateLocation)
		session.POST("/destination", rooms.SetDestination)
		session.DELETE("/destination", rooms.ClearDestination)
		session.POST("/heartbeat", rooms.Heartbeat)
	}

	return router
}

// NewServer builds an HTTP server. /ws is served outside gin, which refuses
// to hijack a connection once the upgrade response header is written.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Registry, deps.Gateway, deps.Auth, cfg, logger))
	mux.Handle("/", otelhttp.NewHandler(NewRouter(deps, cfg, logger), "meetpoint-http"))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
