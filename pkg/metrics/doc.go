/*
Package metrics defines and registers every Prometheus metric this module
exposes, and serves them over HTTP for scraping.

# Catalog

Lease registry:

  - vms_leases_active{kind}: gauge, currently held leases by kind.
  - vms_lease_acquires_total{kind,outcome}: counter, acquire attempts
    (outcome is "granted" or "denied").
  - vms_lease_renews_total{kind,outcome}: counter, renew attempts
    (outcome is "renewed" or "expired").
  - vms_lease_expires_total{kind}: counter, leases reclaimed by the
    in-memory sweeper after TTL elapsed.

Resource instances:

  - vms_resources_by_state{kind,state}: gauge, resource instance count
    by kind and state.

Raft / coordinator:

  - vms_raft_is_leader: gauge, 1 if this replica is the Raft leader.
  - vms_raft_term: gauge, current Raft term.
  - vms_raft_peers_total: gauge, peer count in the Raft configuration.
  - vms_raft_log_index / vms_raft_applied_index: gauge, log position.

Gateway:

  - vms_api_requests_total{method,status}: counter.
  - vms_api_request_duration_seconds{method}: histogram.

Worker / pipeline:

  - vms_pipeline_restarts_total{kind}: counter, supervised process restarts.
  - vms_pipeline_giveups_total{kind}: counter, pipelines abandoned after
    exhausting their restart budget.

Reaper:

  - vms_reaper_sweeps_total: counter.
  - vms_reaper_reclaimed_total{kind}: counter, orphans deleted.
  - vms_reaper_sweep_duration_seconds: histogram.

# Usage

	timer := metrics.NewTimer()
	// ... perform the operation being measured ...
	timer.ObserveDuration(metrics.ReaperDuration)

	metrics.LeasesActive.WithLabelValues("stream").Inc()

Every metric is a package-level prometheus.Collector registered at
package init; callers never construct their own. Handler() exposes them
at whatever path the caller's mux wires it to (conventionally /metrics).

A separate, coarser-grained HealthStatus aggregator lives in health.go:
RegisterComponent/UpdateComponent/GetHealth/GetReadiness track whether
named subsystems (raft, statestore, leases, worker, gateway) are up,
independent of the Prometheus time series above, for the /health, /ready,
and /live HTTP handlers each binary exposes.
*/
package metrics
