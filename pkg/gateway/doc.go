/*
Package gateway implements the stateless HTTP/JSON facade clients use to
start and stop streams, recordings, and AI tasks: POST/DELETE/GET on
/streams, /recordings, /ai/tasks, plus /healthz and /readyz.

Gateway holds no resource state of its own. Every start request acquires
a lease from the coordinator, writes a Starting resource instance, and
dispatches to a worker chosen round-robin from a WorkerPool; a worker
dispatch failure releases the lease and marks the instance Error. Every
stop request looks up the instance, dispatches a bounded-timeout stop to
the worker that holds it, releases the lease, and marks the instance
Stopped. Both paths are idempotent: starting an already-active resource
or stopping a missing one succeeds without acquiring or dispatching
anything new.

Bootstrap runs once at startup and only observes: it logs any live
resource instance held by a worker outside the current pool, but starts
or stops nothing, since the worker side of a restart is the one that
restores or errors its own instances.
*/
package gateway
