// Package server carries the websocket transport: session actors, the
// live room registry and the command dispatch pipeline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/auth"
	"github.com/garrison-chat/garrison/internal/barrack"
	"github.com/garrison-chat/garrison/internal/config"
	"github.com/garrison-chat/garrison/internal/stats"
)

type Server struct {
	log   zerolog.Logger
	stats stats.Recorder

	auth       *auth.Manager
	sessions   *ConnectionManager
	rooms      *RoomRegistry
	dispatcher *Dispatcher

	allowedOrigins []string
	httpSrv        *http.Server
}

func NewServer(logger zerolog.Logger, cfg *config.Config, authMgr *auth.Manager, barracks *barrack.Manager, rec stats.Recorder, mux *http.ServeMux) *Server {
	workers := cfg.Server.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rooms := NewRoomRegistry(logger, rec)
	router := newCommandRouter(logger, authMgr, barracks, rooms)

	s := &Server{
		log:            logger.With().Str("component", "server").Logger(),
		stats:          rec,
		auth:           authMgr,
		sessions:       NewConnectionManager(logger, rec),
		rooms:          rooms,
		dispatcher:     NewDispatcher(logger, router, rec, workers),
		allowedOrigins: cfg.Server.AllowedOrigins,
	}

	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /sessions", s.listSessions)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
	)(mux)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)

	s.httpSrv = &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h,
	}

	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("starting server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown closes the listener, every live session and the dispatch
// pool, in that order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down")

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	s.sessions.CloseAll()
	s.dispatcher.Close()
	return nil
}

// Rooms exposes the live room registry, used by tests and diagnostics.
func (s *Server) Rooms() *RoomRegistry { return s.rooms }

func (s *Server) Sessions() *ConnectionManager { return s.sessions }

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	// a valid bearer token marks the session authenticated at accept
	// time; an invalid one is rejected before the upgrade
	var preAuthUser, preAuthToken string
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			http.Error(w, "malformed authorization header", http.StatusUnauthorized)
			return
		}

		userId, err := s.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		preAuthUser, preAuthToken = userId, token
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	sess := NewSession(s.sessions.NextId(), conn, s.log, func(sess *Session) {
		s.rooms.LeaveAll(sess.Id())
		s.sessions.Unregister(sess.Id())
	})
	sess.Activate()
	if preAuthUser != "" {
		sess.Authenticate(preAuthUser, preAuthToken)
	}

	s.sessions.Register(sess)

	go sess.writeLoop()
	go sess.readLoop(s.dispatcher.Submit)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sessions.Sessions()); err != nil {
		s.log.Error().Err(err).Msg("failed to encode sessions")
	}
}
