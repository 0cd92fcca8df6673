// techpm-mcp exposes the tracker as MCP tools over stdio. It stays running,
// so the focus timer and due reminders fire while the client is connected.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/techpm/internal/app"
	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/focus"
	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/metrics"
)

const version = "0.3.0"

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)

	// Load .env file if present (don't error if missing)
	if err := godotenv.Load(); err == nil {
		log.Println("[config] Loaded .env file")
	}

	configPath := os.Getenv("TECHPM_CONFIG")
	if configPath == "" {
		configPath = "techpm.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[config] %v", err)
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	tools := newToolset(a, focus.SystemClock{})

	s := server.NewMCPServer(
		"techpm",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tools.register(s)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = serveMetrics(cfg.MetricsAddr, a.Metrics)
	}

	logging.Info("main", "serving %s store over stdio", cfg.Storage.Driver)
	serveErr := server.ServeStdio(s)

	// Shutdown: stop reminders, flush the store
	tools.reminders.Stop()
	tools.timer.Pause()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if err := a.Close(); err != nil {
		logging.Warn("main", "close failed: %v", err)
	}

	if serveErr != nil {
		log.Fatalf("[main] server error: %v", serveErr)
	}
	logging.Info("main", "shutdown complete")
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("metrics", "listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("metrics", "server stopped: %v", err)
		}
	}()
	return srv
}
