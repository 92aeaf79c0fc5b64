// Command gateway runs the stateless HTTP/JSON facade that validates
// client requests, acquires leases from the coordinator, and dispatches
// pipeline work to a pool of workers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cuemby/vms/pkg/gateway"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
)

func main() {
	cfg := configFromEnv()

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	glog := log.WithComponent("cmd/gateway")

	workerAddrs, err := parseWorkerAddrs(cfg.Workers)
	if err != nil {
		glog.Fatal().Err(err).Msg("failed to parse VMS_WORKERS")
	}
	workers, err := parseWorkers(cfg.Workers)
	if err != nil {
		glog.Fatal().Err(err).Msg("failed to parse VMS_WORKERS")
	}

	gw := gateway.New(&gateway.Config{
		CoordinatorAddr: cfg.CoordinatorAddr,
		Workers:         workers,
		DefaultLeaseTTL: cfg.DefaultLeaseTTL,
		DrainTimeout:    cfg.DrainTimeout,
	})

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := gw.Bootstrap(bootstrapCtx); err != nil {
		glog.Error().Err(err).Msg("bootstrap reconciliation failed, continuing to serve")
	}
	cancel()
	metrics.RegisterComponent("gateway", true, "")

	stopProbe := startWorkerHealthProbe(workerAddrs, cfg.HealthProbeInterval)
	defer stopProbe()

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	mux.HandleFunc("GET /metrics", metrics.Handler().ServeHTTP)
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	mux.HandleFunc("GET /live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		glog.Info().Str("addr", cfg.HTTPAddr).Int("workers", len(workers)).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		glog.Info().Msg("shutdown signal received")
	case err := <-errCh:
		glog.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
}

type config struct {
	CoordinatorAddr string
	Workers         string
	HTTPAddr        string

	DefaultLeaseTTL     time.Duration
	DrainTimeout        time.Duration
	HealthProbeInterval time.Duration

	LogLevel string
	LogJSON  bool
}

func configFromEnv() config {
	return config{
		CoordinatorAddr:     envOr("VMS_COORDINATOR_ADDR", "127.0.0.1:8081"),
		Workers:             os.Getenv("VMS_WORKERS"),
		HTTPAddr:            envOr("VMS_HTTP_ADDR", ":8080"),
		DefaultLeaseTTL:     envDuration("VMS_DEFAULT_LEASE_TTL", 30*time.Second),
		DrainTimeout:        envDuration("VMS_DRAIN_TIMEOUT", 10*time.Second),
		HealthProbeInterval: envDuration("VMS_WORKER_HEALTH_INTERVAL", 15*time.Second),
		LogLevel:            envOr("VMS_LOG_LEVEL", "info"),
		LogJSON:             envBool("VMS_LOG_JSON", true),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
