/*
Package log wraps zerolog with the global logger and context-logger helpers
used across every binary in this module.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	leaseLog := log.WithLeaseID(lease.LeaseID)
	leaseLog.Info().Msg("lease acquired")

WithComponent and WithNodeID scope a logger to a subsystem or cluster
member; WithLeaseID and WithResourceID scope it to a single lease or
resource instance. Fields compose via zerolog's normal With() chaining.
*/
package log
