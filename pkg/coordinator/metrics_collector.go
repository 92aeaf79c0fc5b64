package coordinator

import (
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/metrics"
)

// MetricsCollector periodically samples a Coordinator's lease table,
// resource instance set and Raft status into pkg/metrics.
type MetricsCollector struct {
	coord  *Coordinator
	stopCh chan struct{}
}

// NewMetricsCollector creates a collector bound to coord.
func NewMetricsCollector(coord *Coordinator) *MetricsCollector {
	return &MetricsCollector{coord: coord, stopCh: make(chan struct{})}
}

// Start begins the 15 second collection ticker.
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collection ticker.
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	c.collectLeaseMetrics()
	c.collectResourceMetrics()
	c.collectRaftMetrics()
}

var allKinds = []coretypes.ResourceKind{coretypes.KindStream, coretypes.KindRecording, coretypes.KindAiTask}

func (c *MetricsCollector) collectLeaseMetrics() {
	for _, kind := range allKinds {
		leases := c.coord.ListLeases(kind, nil)
		metrics.LeasesActive.WithLabelValues(string(kind)).Set(float64(len(leases)))
	}
}

func (c *MetricsCollector) collectResourceMetrics() {
	for _, kind := range allKinds {
		resources, err := c.coord.ListResources(kind)
		if err != nil {
			continue
		}
		counts := make(map[coretypes.ResourceState]int)
		for _, r := range resources {
			counts[r.State]++
		}
		for state, count := range counts {
			metrics.ResourcesByState.WithLabelValues(string(kind), string(state)).Set(float64(count))
		}
	}
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.coord.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	status, err := c.coord.GetClusterStatus()
	if err != nil {
		return
	}
	metrics.RaftTerm.Set(float64(status.Term))
	metrics.RaftPeers.Set(float64(len(status.Peers)))
	metrics.RaftLogIndex.Set(float64(c.coord.LastLogIndex()))
	metrics.RaftAppliedIndex.Set(float64(c.coord.AppliedIndex()))
}
