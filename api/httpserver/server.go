package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/aucnet/metrics"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

// RouteRegistrar is implemented by components that expose routes on the
// admin server, such as the auction handler.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// HTTPServerConfig parameterizes the admin server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// MetricsAddr is the address and port for the metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	WriteTimeout time.Duration
}

// BaseServer hosts the auctioneer's admin and diagnostics surface next to
// the UDP auction socket. It owns the readiness state probed by /readyz.
type BaseServer struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
}

// New assembles the admin server and mounts the given components' routes.
// The server starts out ready.
func New(cfg *HTTPServerConfig, routeRegistrars ...RouteRegistrar) (*BaseServer, error) {
	srv := &BaseServer{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metrics.New(cfg.MetricsAddr),
	}

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.createRouter(routeRegistrars),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	srv.isReady.Store(true)

	return srv, nil
}

func (srv *BaseServer) createRouter(routeRegistrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	for _, registrar := range routeRegistrars {
		registrar.RegisterRoutes(mux)
	}

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}

	return mux
}

func (srv *BaseServer) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

func (srv *BaseServer) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "alive")
}

func (srv *BaseServer) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

// handleDrain flips the readiness probe so load balancers stop routing here.
// The auction itself keeps running; /undrain reverses the flip.
func (srv *BaseServer) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeStatus(w, http.StatusOK, "already draining")
		return
	}
	srv.log.Info("Server marked as not ready")
	writeStatus(w, http.StatusOK, "draining")
}

func (srv *BaseServer) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeStatus(w, http.StatusOK, "already ready")
		return
	}
	srv.log.Info("Server marked as ready")
	writeStatus(w, http.StatusOK, "ready")
}

// RunInBackground starts the HTTP server, and the metrics server when one is
// configured, each on its own goroutine.
func (srv *BaseServer) RunInBackground() {
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.Info("Starting metrics server", "metricsAddress", srv.cfg.MetricsAddr)
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP and metrics servers.
func (srv *BaseServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	if srv.cfg.MetricsAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()
		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
