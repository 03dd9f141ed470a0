package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"midrev/internal/state"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Info is the static part of the status response.
type Info struct {
	RunID  string `json:"run_id"`
	Venue  string `json:"venue"`
	Mode   string `json:"mode"`
	Symbol string `json:"symbol"`
}

type StatusResponse struct {
	Info
	StartedAt time.Time      `json:"started_at"`
	Uptime    string         `json:"uptime"`
	State     state.Snapshot `json:"state"`
}

// Server exposes a read-only view of the engine state.
type Server struct {
	info      Info
	store     *state.Store
	router    *mux.Router
	startedAt time.Time
	log       *logrus.Entry
}

func NewServer(info Info, store *state.Store) *Server {
	s := &Server{
		info:      info,
		store:     store,
		router:    mux.NewRouter(),
		startedAt: time.Now().UTC(),
		log:       logrus.WithField("component", "api"),
	}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Handler returns the router wrapped with CORS for read-only dashboards.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StatusResponse{
		Info:      s.info,
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		State:     s.store.Snapshot(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}
