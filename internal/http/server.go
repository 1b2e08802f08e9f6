package httpserver

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/movies"
	"github.com/Clark-Hu/movie-catalog/internal/storage"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	store   *movies.Store
	kv      *storage.Adapter
	logger  *log.Logger
	router  chi.Router
	httpSrv *http.Server

	// baseCtx parents every request; Shutdown cancels it so event streams end.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New constructs the HTTP server with base middleware and routes. kv is only
// consulted by the health check and may be nil.
func New(cfg config.Config, st *movies.Store, kv *storage.Adapter, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:    cfg,
		store:  st,
		kv:     kv,
		logger: logger,
		router: r,
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.httpSrv = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      http.HandlerFunc(s.ServeHTTP),
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSecs) * time.Second,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/events", s.handleEvents)
		r.Get("/{id}", s.handleGetMovie)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreateMovie)
			r.Post("/refresh", s.handleRefresh)
			r.Put("/{id}", s.handleUpdateMovie)
			r.Delete("/{id}", s.handleDeleteMovie)
		})
	})
}

// ServeHTTP exposes the router so the server can be mounted or tested directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start boots the HTTP server and blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and ends open event streams. It is
// safe to call concurrently with Start and more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Movies int    `json:"movies"`
}

// handleHealthz reports degraded when persistence is off; the list still works in memory.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Movies: len(s.store.Snapshot())}
	if s.kv == nil || !s.kv.Available() {
		resp.Status = "degraded"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}
