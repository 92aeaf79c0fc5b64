/*
Package statestore persists leases and resource instances behind the Store
interface. BoltStore is the production implementation (one file per
coordinator replica, a bucket for leases and a bucket for resources,
JSON-encoded values); MemStore is an in-memory double for tests that don't
need a file on disk.

Updates reach here two ways: a committed Raft log entry applied by the
coordinator's FSM, and a worker's periodic status report. Both go through
the same PutResource/PutLease upsert path — there is no separate update
method, matching the bucket's "upsert as put" pattern.
*/
package statestore
