// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/buddy/internal/api/handler/api"
	"github.com/newthinker/buddy/internal/api/job"
	"github.com/newthinker/buddy/internal/api/middleware"
	"github.com/newthinker/buddy/internal/api/response"
	"github.com/newthinker/buddy/internal/app"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/metrics"
	"github.com/newthinker/buddy/internal/storage/history"
	"github.com/newthinker/buddy/internal/ticker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server represents the HTTP server for buddy
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
	jobs       *job.Store
	cfg        Config
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	CORSOrigins []string
	MetricsPath string
	JobTTL      time.Duration
	MaxJobs     int
}

// Dependencies holds the components the routes call into.
type Dependencies struct {
	Runner     api.Runner
	Dispatcher api.Dispatcher
	Artifacts  *backtest.ArtifactStore
	History    history.Store
	Directory  *ticker.Directory
	Metrics    *metrics.Registry
	Stats      func() map[string]any
}

// DependenciesFrom collects the routes' dependencies from a wired app.
func DependenciesFrom(a *app.App) Dependencies {
	return Dependencies{
		Runner:     a.Runner(),
		Dispatcher: a.Dispatcher(),
		Artifacts:  a.Runner().Engine().Artifacts(),
		History:    a.History(),
		Directory:  a.Runner().Directory(),
		Metrics:    a.Metrics(),
		Stats:      a.GetStats,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
		cfg:    cfg,
	}

	if err := s.setupRoutes(deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)
	handler = s.corsHandler().Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// run-all over the command endpoint pauses between tickers
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) corsHandler() *cors.Cors {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.APIKeyHeader, metrics.RequestIDHeader},
		ExposedHeaders: []string{metrics.RequestIDHeader},
		MaxAge:         300,
	})
}

func (s *Server) allowOrigin(origin string) bool {
	if len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Dependencies) error {
	if deps.Runner == nil || deps.Dispatcher == nil {
		return fmt.Errorf("runner and dispatcher are required")
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore(0)
	}

	auth := middleware.APIKeyAuth(s.cfg.APIKey)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	s.mux.HandleFunc("GET /api/health", s.handleHealth(deps.Stats))
	if deps.Metrics != nil {
		s.mux.Handle("GET "+s.cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	backtests := api.NewBacktestHandler(s.jobs, deps.Runner, s.logger.Named("backtest"))
	backtests.SetMetrics(deps.Metrics)
	s.mux.Handle("POST /api/v1/backtests", protect(backtests.Create))
	s.mux.Handle("GET /api/v1/backtests", protect(backtests.List))
	s.mux.Handle("GET /api/v1/backtests/{id}", protect(backtests.GetStatus))

	if deps.Artifacts != nil {
		artifacts := api.NewArtifactsHandler(deps.Artifacts)
		s.mux.Handle("GET /api/v1/artifacts", protect(artifacts.List))
		s.mux.Handle("GET /api/v1/artifacts/{path...}", protect(artifacts.Get))
	}

	hist := api.NewHistoryHandler(deps.History, deps.Directory, s.logger.Named("history"))
	s.mux.Handle("POST /api/v1/history", protect(hist.Save))
	s.mux.Handle("GET /api/v1/history", protect(hist.List))
	s.mux.Handle("POST /save_search_history", protect(hist.SaveLegacy))

	commands := api.NewCommandsHandler(deps.Dispatcher, s.allowOrigin, s.logger.Named("command"))
	s.mux.Handle("POST /api/v1/commands", protect(commands.Handle))
	s.mux.Handle("GET /ws/commands", protect(commands.Stream))

	return nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and the job cleanup loop. It blocks until
// the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	go s.cleanupJobs(ctx)

	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) cleanupJobs(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.jobs.Cleanup(); n > 0 {
				s.logger.Debug("expired jobs removed", zap.Int("count", n))
			}
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(stats func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if stats != nil {
			body["app"] = stats()
		}
		response.JSON(w, http.StatusOK, body)
	}
}
