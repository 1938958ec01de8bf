// Package server exposes a downline tree over HTTP.
//
// The JSON API wraps every response in {"success": bool, "data": ..., "error": "..."}. Two
// rendering routes sit next to it: /api/layout returns the computed bubble
// layout and /tree.{svg,png,pdf,json} returns a rendered diagram whose
// bubbles link to the focus a click selects.
//
// Authentication is out of scope: the owner id is read from a request
// header (X-Owner-ID by default) and a missing header is answered with 401.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/downline/pkg/config"
	"github.com/matzehuels/downline/pkg/downline"
	"github.com/matzehuels/downline/pkg/observability"
	"github.com/matzehuels/downline/pkg/pipeline"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Server serves the API for one service and render runner.
type Server struct {
	svc    *downline.Service
	runner *pipeline.Runner
	logger *log.Logger
	cfg    config.ServerConfig
	render config.RenderConfig
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRenderDefaults sets the frame size, legend and transitions used when
// a request does not override them.
func WithRenderDefaults(rc config.RenderConfig) Option {
	return func(s *Server) { s.render = rc }
}

// New builds a server. Zero fields of cfg take their defaults from
// [config.Default].
func New(svc *downline.Service, runner *pipeline.Runner, cfg config.ServerConfig, opts ...Option) *Server {
	def := config.Default()
	if cfg.OwnerHeader == "" {
		cfg.OwnerHeader = def.Server.OwnerHeader
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, nil)
	}

	s := &Server{
		svc:    svc,
		runner: runner,
		logger: log.Default(),
		cfg:    cfg,
		render: def.Render,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireOwner)

		r.Route("/api", func(r chi.Router) {
			r.Get("/mlm-data", s.handleMLMData)
			r.Post("/members", s.handleAddMember)
			r.Delete("/members", s.handleDeleteMember)
			r.Patch("/members", s.handleReassignMember)
			r.Get("/check-parent", s.handleCheckParent)
			r.Get("/available-parents", s.handleAvailableParents)
			r.Post("/initialize-user", s.handleInitializeUser)
			r.Get("/layout", s.handleLayout)
		})

		r.Get("/tree.{format}", s.handleTree)
	})

	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// observe reports each request to the HTTP hooks and logs it.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"took", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}
