package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/vms/pkg/health"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
)

// startWorkerHealthProbe polls each worker's /health endpoint on interval
// and reports the result into pkg/metrics' process-wide health registry,
// so an operator watching the gateway's own /health can see a degraded
// worker without needing to probe every node directly. It returns a stop
// function; calling it is a no-op if workers is empty.
func startWorkerHealthProbe(workers []workerAddr, interval time.Duration) func() {
	if len(workers) == 0 {
		return func() {}
	}

	checkers := make(map[string]health.Checker, len(workers))
	for _, w := range workers {
		checkers[w.NodeID] = health.NewHTTPChecker(fmt.Sprintf("http://%s/health", w.Addr))
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		plog := log.WithComponent("worker-health-probe")

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval/2)
				for nodeID, checker := range checkers {
					result := checker.Check(ctx)
					metrics.UpdateComponent("worker:"+nodeID, result.Healthy, result.Message)
					if !result.Healthy {
						plog.Warn().Str("node_id", nodeID).Str("message", result.Message).Msg("worker health probe failed")
					}
				}
				cancel()
			case <-stopCh:
				return
			}
		}
	}()
	return func() { close(stopCh) }
}
