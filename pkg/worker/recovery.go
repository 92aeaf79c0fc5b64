package worker

import (
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
)

// RecoverOnStartup handles the crash recovery path: this worker's side
// effects (ffmpeg-shaped child processes, in-process plugin loops) die
// with the worker process, so every instance this node held in Starting
// or Running is unrecoverable and must be marked Error for the reaper to
// eventually clean up. Stopping/Stopped/Error rows are left untouched.
// Idempotent: calling it again after a row is already Error is a no-op
// for that row.
func (w *Worker) RecoverOnStartup() error {
	insts, err := w.client.ListResourcesByHolder(w.nodeID)
	if err != nil {
		return err
	}

	rlog := log.WithNodeID(w.nodeID)
	for _, inst := range insts {
		if inst.State != coretypes.StateStarting && inst.State != coretypes.StateRunning {
			continue
		}
		if !coretypes.ValidTransition(inst.State, coretypes.StateError) {
			rlog.Error().Str("resource_id", inst.ResourceID).Str("from", string(inst.State)).Msg("refusing illegal transition to error")
			continue
		}

		lastError := "worker restart"
		now := time.Now()
		inst.State = coretypes.StateError
		inst.LastError = &lastError
		inst.UpdatedAt = now
		inst.StoppedAt = now

		if err := w.client.UpsertResource(inst); err != nil {
			rlog.Error().Err(err).Str("resource_id", inst.ResourceID).Msg("failed to mark orphaned instance as errored")
			continue
		}
		if inst.LeaseID != nil {
			if err := w.client.ReleaseLease(*inst.LeaseID); err != nil {
				rlog.Warn().Err(err).Str("resource_id", inst.ResourceID).Msg("failed to release orphaned lease")
			}
		}
		rlog.Info().Str("resource_id", inst.ResourceID).Str("kind", string(inst.Kind)).Msg("recovered orphaned instance after restart")
	}
	return nil
}
