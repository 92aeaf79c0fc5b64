// Command worker runs one node's pipeline runtime: the Stream, Recording
// and AiTask managers dispatched to by the gateway, fronted by an HTTP
// surface the gateway's WorkerClient talks to.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
	"github.com/cuemby/vms/pkg/worker"
)

func main() {
	cfg := configFromEnv()

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	wlog := log.WithNodeID(cfg.NodeID)

	w := worker.New(&worker.Config{
		NodeID:                  cfg.NodeID,
		DataDir:                 cfg.DataDir,
		CoordinatorAddr:         cfg.CoordinatorAddr,
		MaxConcurrentStreams:    cfg.MaxConcurrentStreams,
		MaxConcurrentRecordings: cfg.MaxConcurrentRecordings,
		MaxConcurrentAiTasks:    cfg.MaxConcurrentAiTasks,
	})

	if err := w.RecoverOnStartup(); err != nil {
		wlog.Error().Err(err).Msg("recovery sweep failed, continuing to serve")
	}
	metrics.RegisterComponent("worker", true, "")

	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	mux.HandleFunc("GET /metrics", metrics.Handler().ServeHTTP)
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	mux.HandleFunc("GET /live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		wlog.Info().Str("addr", cfg.HTTPAddr).Msg("worker listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		wlog.Info().Msg("shutdown signal received")
	case err := <-errCh:
		wlog.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type config struct {
	NodeID          string
	DataDir         string
	CoordinatorAddr string
	HTTPAddr        string

	MaxConcurrentStreams    int
	MaxConcurrentRecordings int
	MaxConcurrentAiTasks    int

	LogLevel string
	LogJSON  bool
}

func configFromEnv() config {
	return config{
		NodeID:                  envOr("VMS_NODE_ID", "worker-1"),
		DataDir:                 envOr("VMS_DATA_DIR", "./data/worker"),
		CoordinatorAddr:         envOr("VMS_COORDINATOR_ADDR", "127.0.0.1:8081"),
		HTTPAddr:                envOr("VMS_HTTP_ADDR", ":8082"),
		MaxConcurrentStreams:    envInt("VMS_MAX_STREAMS", 32),
		MaxConcurrentRecordings: envInt("VMS_MAX_RECORDINGS", 16),
		MaxConcurrentAiTasks:    envInt("VMS_MAX_AI_TASKS", 8),
		LogLevel:                envOr("VMS_LOG_LEVEL", "info"),
		LogJSON:                 envBool("VMS_LOG_JSON", true),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
