package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/dmelton/go-jukebox/internal/config"
	"github.com/dmelton/go-jukebox/internal/database"
	"github.com/dmelton/go-jukebox/internal/playback"
	"github.com/dmelton/go-jukebox/internal/stats"
	"github.com/gorilla/handlers"
)

type JukeboxApp struct {
	log            *log.Logger
	db             database.JukeboxRepository
	mux            *http.Server
	coordinator    *playback.Coordinator
	fanout         *playback.Fanout
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewJukeboxApp(mux *http.ServeMux, logger *log.Logger, coordinator *playback.Coordinator,
	fanout *playback.Fanout, db database.JukeboxRepository, st stats.StatsProvider, cfg *config.Config) *JukeboxApp {
	s := &JukeboxApp{
		log:            logger,
		db:             db,
		coordinator:    coordinator,
		fanout:         fanout,
		stats:          st,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.closeRoom))
	mux.Handle("POST /api/rooms/join", s.authMiddleware(s.joinRoom))
	mux.Handle("POST /api/rooms/leave", s.authMiddleware(s.leaveRoom))
	mux.Handle("POST /api/queue", s.authMiddleware(s.addToQueue))
	mux.Handle("GET /api/queue", s.authMiddleware(s.getQueue))
	mux.Handle("GET /api/playback/state", s.authMiddleware(s.getPlaybackState))
	mux.Handle("POST /api/playback/play", s.authMiddleware(s.startPlayback))
	mux.Handle("POST /api/playback/pause", s.authMiddleware(s.pausePlayback))
	mux.Handle("POST /api/playback/resume", s.authMiddleware(s.resumePlayback))
	mux.Handle("POST /api/playback/skip", s.authMiddleware(s.skipToNext))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *JukeboxApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *JukeboxApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
