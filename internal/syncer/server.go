package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes registered syncers' state and run stats over HTTP, for
// operators watching a long-running `sync start` process.
type Server struct {
	logger  *zap.Logger
	syncers map[string]*Syncer
	mu      sync.RWMutex
}

type SyncerInfo struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	Stats Stats `json:"stats,omitempty"`
}

func NewServer(logger *zap.Logger) *Server {
	return &Server{
		logger:  logger,
		syncers: make(map[string]*Syncer),
	}
}

func (s *Server) RegisterSyncer(sy *Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncers[sy.ID] = sy
	s.logger.Info("syncer registered",
		zap.String("syncer_id", sy.ID),
		zap.String("state", string(sy.State.Current())))
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/v1/syncs", func(r chi.Router) {
		r.Get("/", s.listSyncers)
		r.Get("/{id}", s.getSyncer)
	})

	return r
}

func (s *Server) listSyncers(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	syncers := make([]SyncerInfo, 0, len(s.syncers))
	for _, sy := range s.syncers {
		syncers = append(syncers, SyncerInfo{
			ID:    sy.ID,
			State: sy.State.Current(),
			Stats: sy.Stats(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"syncs": syncers,
		"count": len(syncers),
	})
}

func (s *Server) getSyncer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	sy, exists := s.syncers[id]
	s.mu.RUnlock()

	if !exists {
		http.Error(w, "syncer not found", http.StatusNotFound)
		return
	}

	info := SyncerInfo{
		ID:    sy.ID,
		State: sy.State.Current(),
		Stats: sy.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("starting status server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down status server")
		srv.Shutdown(context.Background())
	}()

	return srv.ListenAndServe()
}
