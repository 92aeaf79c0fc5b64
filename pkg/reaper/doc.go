/*
Package reaper provides orphan detection and cleanup for the resource
instance table.

A resource instance row names the lease that justifies its holder owning
the underlying pipeline. When a worker dies without releasing that lease,
the lease eventually expires out of the live registry but the row
persists — the state store never deletes a row on its own, only on an
explicit Reaper sweep. The Reaper is what turns "the lease died" into
"the row is gone", on a bounded delay rather than immediately, so a
lease that is merely unreachable during a leader election is never
mistaken for a dead holder.

# Sweep loop

The Reaper ticks on a fixed interval (default 5 minutes) and, while the
local replica holds Raft leadership, runs one sweep per resource kind:

  - list every instance of the kind from the state store
  - keep only rows whose last update is older than the kind's grace
    period and whose lease_id has no matching live registry entry
  - of those orphans, delete only the ones sitting in a terminal state
    (Stopped or Error) that have sat there past the kind's retention
    window

Orphans still in Starting or Running are not deleted but marked Error
(with holder and lease cleared), since a worker that never restarts
under the same node ID would otherwise leave them looking live forever.
Orphans in Stopping are left alone.

Each row actually deleted publishes one resource.reaped event on the
coordinator's event broker; each orphan marked Error publishes one
resource state-changed event.
*/
package reaper
