// Package server exposes the latest detector states, health and metrics over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/screenwatch/internal/capture"
	"github.com/zsiec/screenwatch/internal/config"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/health"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/monitor"
)

const apiPrefix = "/api/v1"

// SessionStatus reports the capture session state.
type SessionStatus interface {
	Status() capture.Status
}

// Server is the status HTTP server.
type Server struct {
	config        *config.ServerConfig
	metricsConfig *config.MetricsConfig
	router        *mux.Router
	httpServer    *http.Server
	logger        logger.Logger
	healthMgr     *health.Manager
	errorHandler  *apperrors.ErrorHandler

	store   *monitor.Store
	session SessionStatus
}

// New creates a server and registers its routes. session may be nil.
func New(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, log *logrus.Logger,
	healthMgr *health.Manager, store *monitor.Store, session SessionStatus) *Server {
	base := logger.Service(log)

	s := &Server{
		config:        cfg,
		metricsConfig: metricsCfg,
		router:        mux.NewRouter(),
		logger:        logger.WithComponent(base, "server"),
		healthMgr:     healthMgr,
		errorHandler:  apperrors.NewErrorHandler(log),
		store:         store,
		session:       session,
	}
	s.setupRoutes(base)
	return s
}

// Start serves until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, s.config.HealthInterval)

	s.logger.WithField("port", s.config.Port).Info("Starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server within the shutdown timeout.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down status server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Status server shutdown complete")
	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(base logger.Logger) {
	s.router.Use(logger.RequestLoggerMiddleware(base))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)

	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	if s.metricsConfig != nil && s.metricsConfig.Enabled {
		s.router.Handle(s.metricsConfig.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	// Registered on the root router so its 404/405 handlers apply.
	s.router.HandleFunc(apiPrefix+"/state", s.handleStates).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/state/{detector}", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/capture", s.handleCapture).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// Handler returns the root handler: the router behind CORS handling.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}
