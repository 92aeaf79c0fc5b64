package coordinator

import (
	"bytes"
	"io"
)

// memSnapshotSink is a minimal raft.SnapshotSink backed by an in-memory
// buffer, used to exercise Snapshot/Restore without a real Raft instance.
type memSnapshotSink struct {
	bytes.Buffer
}

func (s *memSnapshotSink) ID() string    { return "test-snapshot" }
func (s *memSnapshotSink) Cancel() error { return nil }
func (s *memSnapshotSink) Close() error  { return nil }

func (s *memSnapshotSink) readCloser() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(s.Bytes()))
}
