/*
Package coretypes defines the domain model shared by every other package in
this module: the lease, the resource instance, the kind enum, and the
shared state machine that all three resource kinds (Stream, Recording,
AiTask) move through.

Nothing in this package talks to a network or a disk. It exists so the
lease registry, the state store, the coordinator's FSM, the gateway, and
the worker runtime can agree on one vocabulary without importing each
other.

# State machine

	Pending --acquire ok--> Starting --pipeline up--> Running --stop--> Stopping --drained--> Stopped
	   |                        |                         |
	   +-- error ---------------+-- renew fail ------------+--> Error

ValidTransition is the single source of truth for which edges are legal.
The worker's control loop, the gateway's stop path, the reaper and worker
crash recovery consult it before writing a state change and log an
illegal edge. The gateway's start path writes a fresh Starting row
without consulting it, so a resource that ended Stopped or Error can be
started again.
*/
package coretypes
