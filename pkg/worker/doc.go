/*
Package worker implements the per-node runtime that actually launches
side effects: StreamManager, RecordingManager, and AiTaskManager, each a
bounded map of resourceID to a control loop sharing baseManager's
capacity enforcement and lifecycle bookkeeping.

A Worker is addressed by the gateway over HTTP (DispatchHandler,
WithdrawHandler) and talks back to the coordinator over HTTP through a
CoordinatorClient (acquire/renew/release a lease, upsert a resource
instance's state). Each control loop renews its lease at TTL/2 with
bounded retry, and tears the instance down to Error or Stopped whenever
the lease dies, the side effect exits on its own, or a Withdraw call asks
it to drain.

RecoverOnStartup must run once before a Worker starts accepting
dispatches: any resource instance this node still held in Starting or
Running when the process last exited is moved to Error, since none of
this core's side effects survive a worker restart.
*/
package worker
