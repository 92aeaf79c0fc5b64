package reaper

import (
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultGraceSecs     = 30
	defaultRetentionSecs = 0
	// recordingRetentionSecs: a finished recording's row survives 30 days
	// past its last update before the Reaper removes it, long enough for
	// an operator or a separate storage-quota sweep to have acted on the
	// underlying file tree first.
	recordingRetentionSecs = 30 * 24 * 60 * 60
)

// Config controls sweep cadence, per-kind orphan grace, and per-kind
// retention. A zero Config is valid; withDefaults fills every
// unspecified field.
type Config struct {
	// Interval is how often the sweep loop ticks.
	Interval time.Duration
	// GraceSecs is the minimum time since a row's last update before it
	// is even considered an orphan candidate, keyed by kind.
	GraceSecs map[coretypes.ResourceKind]int64
	// RetentionSecs is the minimum time a terminal (Stopped/Error) row
	// must sit past its last update before the Reaper deletes it, keyed
	// by kind.
	RetentionSecs map[coretypes.ResourceKind]time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.GraceSecs == nil {
		c.GraceSecs = map[coretypes.ResourceKind]int64{}
	}
	if c.RetentionSecs == nil {
		c.RetentionSecs = map[coretypes.ResourceKind]time.Duration{}
	}
	for _, kind := range coretypes.Kinds() {
		if _, ok := c.GraceSecs[kind]; !ok {
			c.GraceSecs[kind] = defaultGraceSecs
		}
		if _, ok := c.RetentionSecs[kind]; !ok {
			if kind == coretypes.KindRecording {
				c.RetentionSecs[kind] = recordingRetentionSecs * time.Second
			} else {
				c.RetentionSecs[kind] = defaultRetentionSecs * time.Second
			}
		}
	}
	return c
}
