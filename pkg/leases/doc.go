/*
Package leases implements the Lease Registry: the in-memory table of
which holder owns which (kind, resource_id). It enforces that at most
one live lease exists per resource, that a lease's version strictly
increases on every mutation, that release drops the entry immediately,
and that a lease's holder_id never changes across a renew.

The Registry is hosted on the Raft leader and rebuilt with LoadFromStore
whenever leadership moves, rather than replicated directly — the
coordinator's FSM calls Acquire/Renew/Release from inside Apply, so every
replica arrives at the same table by replaying the same committed log.
A background sweeper purges expired entries from memory only; the durable
row in the state store is cleaned up later by the reaper.
*/
package leases
