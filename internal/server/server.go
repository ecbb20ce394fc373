package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/aniconnect/internal/dispatch"
	"github.com/Tyrowin/aniconnect/internal/jobs"
	"github.com/Tyrowin/aniconnect/internal/ratelimit"
)

// Server assembles the chat stores, the dispatcher, the WebSocket hub, the
// sweep scheduler and the HTTP listener.
type Server struct {
	cfg        Config
	log        zerolog.Logger
	hub        *Hub
	dispatcher *dispatch.Dispatcher
	scheduler  *jobs.Scheduler
	http       *http.Server
}

// New builds a server from cfg. The configuration is sanitized and becomes
// the active one for origin checks and new clients.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	cfg = SetConfig(&cfg)

	var keyHash []byte
	if cfg.Chat.ModeratorKeyHash != "" {
		keyHash = []byte(cfg.Chat.ModeratorKeyHash)
		if _, err := bcrypt.Cost(keyHash); err != nil {
			return nil, fmt.Errorf("moderator key hash: %w", err)
		}
	}

	hub := NewHub(logger)
	stores := dispatch.NewStores(nil, cfg.Chat.MessageLogCap, cfg.Chat.BlockedWords)
	d := dispatch.New(stores, hub, logger, dispatch.Options{
		XPPerMessage:     cfg.Chat.XPPerMessage,
		SendLimit:        ratelimit.NewKeyed(cfg.Chat.SendLimitBurst, cfg.Chat.SendLimitInterval),
		ModeratorKeyHash: keyHash,
	})
	hub.SetHandler(d)

	s := &Server{
		cfg:        cfg,
		log:        logger,
		hub:        hub,
		dispatcher: d,
		scheduler:  jobs.NewScheduler(d, cfg.Chat.SweepSchedule, logger),
	}
	s.http = CreateServer(cfg.Port, s.SetupRoutes())
	return s, nil
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Dispatcher returns the event dispatcher.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartBackground starts the hub and the sweep scheduler. Start calls it;
// tests that serve through httptest call it directly.
func (s *Server) StartBackground() error {
	go s.hub.Run()
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.log.Info().Msg("hub started and ready to manage WebSocket connections")
	return nil
}

// Start runs the background workers and blocks serving HTTP until the
// listener is shut down.
func (s *Server) Start() error {
	if err := s.StartBackground(); err != nil {
		return err
	}
	s.log.Info().Str("addr", s.http.Addr).Msg("server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every client and stops the
// scheduler, all within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}

	timeout := s.cfg.ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := s.hub.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("hub: %w", err))
	}
	if err := s.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Error().Err(err).Msg("shutdown finished with errors")
		return err
	}
	s.log.Info().Msg("shutdown completed")
	return nil
}
