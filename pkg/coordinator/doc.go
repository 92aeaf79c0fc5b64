/*
Package coordinator implements the cluster's control plane: a Raft
quorum of replicas that agree on the lease table and resource instance
set via CoordinatorFSM.

A cluster of 1-7 coordinator replicas forms a Raft group. The leader
accepts writes (AcquireLease, RenewLease, ReleaseLease, UpsertResource);
followers forward writes to the leader's /internal/apply endpoint and
serve reads (GetLease, ListLeases, ListResources) from their own
FSM-backed copy of the state store, which may lag the leader briefly
after a write — acceptable since nothing in this system requires
linearizable reads.

Bootstrap starts a new single-replica cluster. Join contacts an existing
leader's /internal/join endpoint with a token minted by GenerateJoinToken,
which calls AddVoter on the leader's behalf. RemoveServer decommissions a
replica. GetClusterStatus reports role, term, leader and peer set for the
/cluster/status endpoint.

Leadership changes trigger no live migration: a newly elected leader's
Registry is already current, since CoordinatorFSM.Apply runs against the
same Registry on every replica as the log replays.
*/
package coordinator
