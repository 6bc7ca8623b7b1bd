package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/meetpoint-server/internal/audit"
	"github.com/vovakirdan/meetpoint-server/internal/auth"
	"github.com/vovakirdan/meetpoint-server/internal/config"
	"github.com/vovakirdan/meetpoint-server/internal/core"
	"github.com/vovakirdan/meetpoint-server/internal/metrics"
	"github.com/vovakirdan/meetpoint-server/internal/store"
	"github.com/vovakirdan/meetpoint-server/internal/store/sqlite"
	"github.com/vovakirdan/meetpoint-server/internal/telemetry"
	transporthttp "github.com/vovakirdan/meetpoint-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	store           store.AuditStore
	recorder        *audit.Recorder
	shutdownTracer  telemetry.ShutdownFunc
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	policy, err := core.ParseSessionPolicy(cfg.SessionPolicy)
	if err != nil {
		return nil, err
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	collector := metrics.New()
	observers := core.Observers{collector}

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		shutdownTracer:  shutdownTracer,
		log:             logger,
	}

	// Audit log is optional
	if cfg.AuditDBPath != "" {
		st, err := sqlite.New(cfg.AuditDBPath)
		if err != nil {
			_ = shutdownTracer(ctx)
			return nil, fmt.Errorf("init audit store: %w", err)
		}
		logger.Info().Str("db_path", cfg.AuditDBPath).Msg("audit store initialized")
		a.store = st
		a.recorder = audit.NewRecorder(st, audit.DefaultBuffer, logger)
		observers = append(observers, a.recorder)
	}

	a.registry = core.NewRegistry(core.Options{
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		RoomGracePeriod:  cfg.RoomGracePeriod,
		SessionQueueSize: cfg.SessionQueueSize,
		MaxParticipants:  cfg.MaxParticipants,
		MaxClockSkew:     cfg.MaxClockSkew,
		SessionPolicy:    policy,
		Observer:         observers,
		Logger:           logger,
	})

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	deps := transporthttp.Deps{
		Registry: a.registry,
		Gateway:  core.NewGateway(a.registry),
		Auth:     authService,
		Metrics:  collector.Handler(),
	}
	if a.store != nil {
		deps.Audit = a.store
	}
	a.server = transporthttp.NewServer(deps, cfg, logger)

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	var recorderDone sync.WaitGroup
	if a.recorder != nil {
		recorderDone.Add(1)
		go func() {
			defer recorderDone.Done()
			a.recorder.Run(recorderCtx)
		}()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	cleanup := func() {
		a.registry.Close()
		stopRecorder()
		recorderDone.Wait()
		a.cleanup()
	}

	select {
	case err := <-serverErr:
		cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			cleanup()
			return err
		}

		cleanup()
		return <-serverErr
	}
}

// cleanup closes the audit store and flushes spans.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to flush traces")
		}
	}
}
