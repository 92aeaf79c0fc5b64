// Command coordinator runs one replica of the cluster's control plane: the
// Raft-backed Coordinator, its internal and public HTTP surface, and the
// Reaper that sweeps orphaned resource instances.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cuemby/vms/pkg/coordinator"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
	"github.com/cuemby/vms/pkg/reaper"
)

func main() {
	cfg := configFromEnv()

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	clog := log.WithComponent("cmd/coordinator")

	coord, err := coordinator.New(&coordinator.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.RaftAddr,
		DataDir:  cfg.DataDir,
	})
	if err != nil {
		clog.Fatal().Err(err).Msg("failed to construct coordinator")
	}

	if cfg.Bootstrap {
		if err := coord.Bootstrap(); err != nil {
			clog.Fatal().Err(err).Msg("failed to bootstrap cluster")
		}
	} else {
		leaderAddr, err := joinAddrFromPeers(cfg)
		if err != nil {
			clog.Fatal().Err(err).Msg("failed to resolve join target from peers file")
		}
		if err := coord.Join(leaderAddr, cfg.JoinToken); err != nil {
			clog.Fatal().Err(err).Msg("failed to join cluster")
		}
	}
	coord.Start()

	metrics.RegisterComponent("raft", true, "")
	metrics.RegisterComponent("statestore", true, "")
	metrics.RegisterComponent("leases", true, "")

	collector := coordinator.NewMetricsCollector(coord)
	collector.Start()
	defer collector.Stop()

	reap := reaper.New(coord, coord.GetEventBroker(), reaper.Config{
		Interval: cfg.ReaperInterval,
		GraceSecs: map[coretypes.ResourceKind]int64{
			coretypes.KindStream:    cfg.OrphanGraceSecs,
			coretypes.KindRecording: cfg.OrphanGraceSecs,
			coretypes.KindAiTask:    cfg.OrphanGraceSecs,
		},
	})
	reap.Start()

	mux := http.NewServeMux()
	coord.RegisterRoutes(mux)
	mux.HandleFunc("GET /metrics", metrics.Handler().ServeHTTP)
	mux.HandleFunc("GET /health", metrics.HealthHandler())
	mux.HandleFunc("GET /ready", metrics.ReadyHandler())
	mux.HandleFunc("GET /live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		clog.Info().Str("addr", cfg.HTTPAddr).Str("node_id", cfg.NodeID).Msg("coordinator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		clog.Info().Msg("shutdown signal received")
	case err := <-errCh:
		clog.Error().Err(err).Msg("http server error")
	}

	reap.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := coord.Shutdown(); err != nil {
		clog.Error().Err(err).Msg("error during coordinator shutdown")
	}
}

// config holds every environment-variable-driven setting this binary
// recognises, a plain struct populated directly in main rather than a
// cobra flag set.
type config struct {
	NodeID    string
	RaftAddr  string
	HTTPAddr  string
	DataDir   string
	Bootstrap bool
	JoinToken string
	PeersFile string

	ReaperInterval  time.Duration
	OrphanGraceSecs int64

	LogLevel string
	LogJSON  bool
}

func configFromEnv() config {
	return config{
		NodeID:          envOr("VMS_NODE_ID", "node-1"),
		RaftAddr:        envOr("VMS_RAFT_ADDR", "127.0.0.1:7000"),
		HTTPAddr:        envOr("VMS_HTTP_ADDR", ":8081"),
		DataDir:         envOr("VMS_DATA_DIR", "./data/coordinator"),
		Bootstrap:       envBool("VMS_BOOTSTRAP", false),
		JoinToken:       os.Getenv("VMS_JOIN_TOKEN"),
		PeersFile:       os.Getenv("VMS_PEERS_FILE"),
		ReaperInterval:  envDuration("VMS_REAPER_INTERVAL", 5*time.Minute),
		OrphanGraceSecs: envInt64("VMS_ORPHAN_GRACE_SECS", 30),
		LogLevel:        envOr("VMS_LOG_LEVEL", "info"),
		LogJSON:         envBool("VMS_LOG_JSON", true),
	}
}

// joinAddrFromPeers resolves which peer to contact for Join, reading the
// static peer-list file named by VMS_PEERS_FILE and falling back to
// VMS_JOIN_ADDR when no peers file is configured.
func joinAddrFromPeers(cfg config) (string, error) {
	if cfg.PeersFile == "" {
		if addr := os.Getenv("VMS_JOIN_ADDR"); addr != "" {
			return addr, nil
		}
		return "", fmt.Errorf("neither VMS_PEERS_FILE nor VMS_JOIN_ADDR is set")
	}
	peers, err := loadPeersFile(cfg.PeersFile)
	if err != nil {
		return "", err
	}
	for _, p := range peers {
		if p.NodeID != cfg.NodeID && p.HTTPAddr != "" {
			return p.HTTPAddr, nil
		}
	}
	return "", fmt.Errorf("peers file %s names no joinable peer for node %s", cfg.PeersFile, cfg.NodeID)
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

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
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
