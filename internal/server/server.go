// Package server exposes the session over HTTP: upstream proxy routes, view
// models and the live-search WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/kapu/spotmyartist/internal/config"
	"github.com/kapu/spotmyartist/internal/session"
	"go.uber.org/zap"
)

type Server struct {
	session  *session.Session
	cfg      config.ServerConfig
	logger   *zap.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	httpServer *http.Server
}

func New(sess *session.Session, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		session: sess,
		cfg:     cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/artists", s.handleArtists)
	r.Get("/artist/{id}", s.handleArtist)
	r.Get("/locations", s.handleLocations)
	r.Get("/relations", s.handleRelations)
	r.Get("/search", s.handleSearch)
	r.Get("/external-search", s.handleExternalSearch)
	r.Get("/wiki-search", s.handleWikiSearch)
	r.Get("/album-images", s.handleAlbumImages)
	r.Get("/geocode", s.handleGeocode)

	r.Route("/view", func(r chi.Router) {
		r.Get("/cards", s.handleCards)
		r.Get("/artist/{id}", s.handleArtistView)
		r.Get("/artist/{id}/map", s.handleArtistMap)
		r.Get("/map", s.handleOverviewMap)
		r.Get("/carousel", s.handleCarousel)
	})

	r.Get("/ws/search", s.handleLiveSearch)

	if s.cfg.StaticDir != "" {
		static := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
		r.Handle("/static/*", static)
	}

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the
// session.
func (s *Server) Shutdown(ctx context.Context) error {
	var serveErr error
	if s.httpServer != nil {
		serveErr = s.httpServer.Shutdown(ctx)
	}
	if err := s.session.Close(); err != nil {
		s.logger.Warn("Session close failed", zap.Error(err))
	}
	return serveErr
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Health(r.Context()))
}
