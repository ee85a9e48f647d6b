// Package httpserver exposes the bot's operational endpoints (health
// and readiness). The Telegram traffic itself rides on long polling,
// so this listener is optional and off by default.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmfederico/readeckbot/internal/logger"
)

// Deps carries what the handlers need, injected from app wiring.
type Deps struct {
	Log       logger.Logger
	StartTime time.Time

	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	// CheckReadeck probes the upstream Readeck instance.
	CheckReadeck func(ctx context.Context) error
	// TokenCount reports how many users have a stored token.
	TokenCount func() int
}

type Server struct {
	http *http.Server
	log  logger.Logger
}

func New(addr string, log logger.Logger, d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(accessLog(log))

	r.Get("/healthz", healthz(d))
	r.Get("/readyz", readyz(d))

	s := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &Server{http: s, log: log}
}

// Start blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Infof("ops server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("ops server shutting down")
	return s.http.Shutdown(ctx)
}
