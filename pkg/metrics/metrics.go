package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lease registry metrics
	LeasesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vms_leases_active",
			Help: "Currently held leases by kind",
		},
		[]string{"kind"},
	)

	LeaseAcquiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_lease_acquires_total",
			Help: "Lease acquire attempts by kind and outcome (granted, denied)",
		},
		[]string{"kind", "outcome"},
	)

	LeaseRenewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_lease_renews_total",
			Help: "Lease renew attempts by kind and outcome (renewed, expired)",
		},
		[]string{"kind", "outcome"},
	)

	LeaseExpiresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_lease_expires_total",
			Help: "Leases reclaimed by the sweeper after their TTL elapsed",
		},
		[]string{"kind"},
	)

	// Resource state metrics
	ResourcesByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vms_resources_by_state",
			Help: "Resource instances by kind and state",
		},
		[]string{"kind", "state"},
	)

	// Raft / coordinator metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vms_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vms_raft_term",
			Help: "Current Raft term observed by this node",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vms_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vms_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vms_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Gateway metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_api_requests_total",
			Help: "Total number of gateway API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vms_api_request_duration_seconds",
			Help:    "Gateway API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Worker / pipeline metrics
	PipelineRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_pipeline_restarts_total",
			Help: "Supervised pipeline process restarts by kind",
		},
		[]string{"kind"},
	)

	PipelineGiveUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_pipeline_giveups_total",
			Help: "Supervised pipelines abandoned after exhausting restart attempts",
		},
		[]string{"kind"},
	)

	// Reaper metrics
	ReaperSweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vms_reaper_sweeps_total",
			Help: "Total number of reaper sweeps run",
		},
	)

	ReaperReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vms_reaper_reclaimed_total",
			Help: "Orphaned resources reclaimed by the reaper, by kind",
		},
		[]string{"kind"},
	)

	ReaperDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vms_reaper_sweep_duration_seconds",
			Help:    "Duration of a single reaper sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		LeasesActive,
		LeaseAcquiresTotal,
		LeaseRenewsTotal,
		LeaseExpiresTotal,
		ResourcesByState,
		RaftLeader,
		RaftTerm,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		APIRequestsTotal,
		APIRequestDuration,
		PipelineRestartsTotal,
		PipelineGiveUpsTotal,
		ReaperSweepsTotal,
		ReaperReclaimedTotal,
		ReaperDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
