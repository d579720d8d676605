package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/handler"
	"github.com/faucetdb/schemer/internal/server/middleware"
	"github.com/faucetdb/schemer/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	CORSMethods     []string
	RateLimit       int   // requests per minute per IP, 0 disables
	MaxBodySize     int64 // bytes
	IDType          string
}

// DefaultConfig returns a Config for a local operator tool.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		CORSMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		RateLimit:       120,
		MaxBodySize:     1 << 20,
		IDType:          "INT",
	}
}

// Server is the HTTP front end of schemer. It owns the Chi router, the
// profile store and the workbench that turns profiles into sessions.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	bench      *service.Workbench
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store *config.Store, bench *service.Workbench, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		bench:  bench,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: append(append([]string{}, s.cfg.CORSMethods...), "OPTIONS"),
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(s.cfg.RateLimit))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	// --- Health checks ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		schemaHandler := handler.NewSchemaHandler(s.bench, s.cfg.IDType)
		profileHandler := handler.NewProfileHandler(s.store, s.bench)

		r.Get("/types", schemaHandler.ListTypes)

		// Profile management
		r.Route("/system/profile", func(r chi.Router) {
			r.Get("/", profileHandler.ListProfiles)
			r.Post("/", profileHandler.CreateProfile)
			r.Get("/{name}", profileHandler.GetProfile)
			r.Delete("/{name}", profileHandler.DeleteProfile)
			r.Get("/{name}/test", profileHandler.TestProfile)
		})

		// Schema editing, addressed by profile and database
		r.Route("/{profile}/databases", func(r chi.Router) {
			r.Get("/", schemaHandler.ListDatabases)
			r.Post("/", schemaHandler.CreateDatabase)

			r.Route("/{db}/tables", func(r chi.Router) {
				r.Get("/", schemaHandler.ListTables)
				r.Post("/", schemaHandler.CreateTable)
				r.Delete("/{table}", schemaHandler.DropTable)

				r.Get("/{table}/keys", schemaHandler.ListKeys)
				r.Get("/{table}/columns", schemaHandler.ListColumns)
				r.Post("/{table}/columns", schemaHandler.AddColumn)
				r.Put("/{table}/columns/{column}", schemaHandler.EditColumn)
				r.Delete("/{table}/columns/{column}", schemaHandler.DeleteColumn)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when every profile used so
// far is reachable, or 503 if any is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	for name, err := range s.bench.Check(r.Context()) {
		if err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // DDL on large tables can run long
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
