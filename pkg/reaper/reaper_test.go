package reaper

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/events"
)

type fakeCoordinator struct {
	mu sync.Mutex

	isLeader  bool
	resources map[coretypes.ResourceKind][]*coretypes.ResourceInstance
	leases    map[string]coretypes.Lease

	deleted []string
	upserts []*coretypes.ResourceInstance
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		isLeader:  true,
		resources: make(map[coretypes.ResourceKind][]*coretypes.ResourceInstance),
		leases:    make(map[string]coretypes.Lease),
	}
}

func (f *fakeCoordinator) IsLeader() bool { return f.isLeader }

func (f *fakeCoordinator) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources[kind], nil
}

func (f *fakeCoordinator) GetLease(leaseID string) (coretypes.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lease, ok := f.leases[leaseID]
	if !ok {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}
	return lease, nil
}

func (f *fakeCoordinator) DeleteResource(kind coretypes.ResourceKind, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, resourceID)
	var kept []*coretypes.ResourceInstance
	for _, inst := range f.resources[kind] {
		if inst.ResourceID != resourceID {
			kept = append(kept, inst)
		}
	}
	f.resources[kind] = kept
	return nil
}

func (f *fakeCoordinator) UpsertResource(inst *coretypes.ResourceInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, inst)
	for _, kind := range coretypes.Kinds() {
		for i, existing := range f.resources[kind] {
			if existing.ResourceID == inst.ResourceID {
				f.resources[kind][i] = inst
				return nil
			}
		}
	}
	return nil
}

func ptr(s string) *string { return &s }

func testConfig() Config {
	return Config{
		Interval:      time.Hour,
		GraceSecs:     map[coretypes.ResourceKind]int64{coretypes.KindStream: 0, coretypes.KindRecording: 0, coretypes.KindAiTask: 0},
		RetentionSecs: map[coretypes.ResourceKind]time.Duration{coretypes.KindStream: 0, coretypes.KindRecording: 0, coretypes.KindAiTask: 0},
	}
}

func TestSweepDeletesOrphanedTerminalRow(t *testing.T) {
	coord := newFakeCoordinator()
	old := time.Now().Add(-time.Hour)
	coord.resources[coretypes.KindStream] = []*coretypes.ResourceInstance{
		{ResourceID: "cam-1", Kind: coretypes.KindStream, State: coretypes.StateStopped, LeaseID: ptr("gone"), UpdatedAt: old},
	}

	r := New(coord, events.NewBroker(), testConfig())
	n, err := r.sweepKind(coretypes.KindStream)
	if err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", n)
	}
	if len(coord.deleted) != 1 || coord.deleted[0] != "cam-1" {
		t.Fatalf("expected cam-1 deleted, got %v", coord.deleted)
	}
}

func TestSweepLeavesRowWithLiveLease(t *testing.T) {
	coord := newFakeCoordinator()
	old := time.Now().Add(-time.Hour)
	coord.leases["active"] = coretypes.Lease{
		LeaseID:            "active",
		ExpiresAtEpochSecs: time.Now().Add(time.Hour).Unix(),
	}
	coord.resources[coretypes.KindStream] = []*coretypes.ResourceInstance{
		{ResourceID: "cam-1", Kind: coretypes.KindStream, State: coretypes.StateStopped, LeaseID: ptr("active"), UpdatedAt: old},
	}

	r := New(coord, events.NewBroker(), testConfig())
	n, err := r.sweepKind(coretypes.KindStream)
	if err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no reclaim for a row with a live lease, got %d", n)
	}
}

func TestSweepMarksRunningOrphanAsErrorInsteadOfDeleting(t *testing.T) {
	coord := newFakeCoordinator()
	old := time.Now().Add(-time.Hour)
	holder := "dead-node"
	coord.resources[coretypes.KindStream] = []*coretypes.ResourceInstance{
		{ResourceID: "cam-1", Kind: coretypes.KindStream, State: coretypes.StateRunning, LeaseID: ptr("gone"), HolderNodeID: &holder, UpdatedAt: old},
	}

	r := New(coord, events.NewBroker(), testConfig())
	n, err := r.sweepKind(coretypes.KindStream)
	if err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no deletion-reclaim for a Running orphan, got %d", n)
	}
	if len(coord.deleted) != 0 {
		t.Fatalf("expected no deletion of a Running row, got %v", coord.deleted)
	}
	if len(coord.upserts) != 1 {
		t.Fatalf("expected exactly one upsert marking the orphan errored, got %d", len(coord.upserts))
	}
	got := coord.upserts[0]
	if got.State != coretypes.StateError {
		t.Fatalf("expected state error, got %s", got.State)
	}
	if got.HolderNodeID != nil {
		t.Fatalf("expected holder cleared, got %v", *got.HolderNodeID)
	}
	if got.LeaseID != nil {
		t.Fatalf("expected lease id cleared, got %v", *got.LeaseID)
	}
	if got.LastError == nil || *got.LastError == "" {
		t.Fatal("expected a last_error to be recorded")
	}
}

func TestSweepMarksStartingOrphanAsError(t *testing.T) {
	coord := newFakeCoordinator()
	old := time.Now().Add(-time.Hour)
	coord.resources[coretypes.KindRecording] = []*coretypes.ResourceInstance{
		{ResourceID: "rec-1", Kind: coretypes.KindRecording, State: coretypes.StateStarting, LeaseID: ptr("gone"), UpdatedAt: old},
	}

	r := New(coord, events.NewBroker(), testConfig())
	if _, err := r.sweepKind(coretypes.KindRecording); err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if len(coord.upserts) != 1 || coord.upserts[0].State != coretypes.StateError {
		t.Fatalf("expected the Starting orphan to be errored, got %v", coord.upserts)
	}
}

func TestSweepLeavesStartingOrphanAloneWithinGrace(t *testing.T) {
	coord := newFakeCoordinator()
	coord.resources[coretypes.KindStream] = []*coretypes.ResourceInstance{
		{ResourceID: "cam-1", Kind: coretypes.KindStream, State: coretypes.StateStarting, LeaseID: ptr("gone"), UpdatedAt: time.Now()},
	}

	cfg := testConfig()
	cfg.GraceSecs[coretypes.KindStream] = 3600
	r := New(coord, events.NewBroker(), cfg)
	if _, err := r.sweepKind(coretypes.KindStream); err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if len(coord.upserts) != 0 {
		t.Fatalf("expected grace period to suppress erroring a freshly-updated row, got %v", coord.upserts)
	}
}

func TestSweepRespectsGracePeriod(t *testing.T) {
	coord := newFakeCoordinator()
	coord.resources[coretypes.KindStream] = []*coretypes.ResourceInstance{
		{ResourceID: "cam-1", Kind: coretypes.KindStream, State: coretypes.StateStopped, LeaseID: ptr("gone"), UpdatedAt: time.Now()},
	}

	cfg := testConfig()
	cfg.GraceSecs[coretypes.KindStream] = 3600
	r := New(coord, events.NewBroker(), cfg)
	n, err := r.sweepKind(coretypes.KindStream)
	if err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected grace period to suppress reaping a freshly-updated row, got %d", n)
	}
}

func TestSweepRespectsRetentionWindow(t *testing.T) {
	coord := newFakeCoordinator()
	old := time.Now().Add(-time.Hour)
	coord.resources[coretypes.KindRecording] = []*coretypes.ResourceInstance{
		{ResourceID: "rec-1", Kind: coretypes.KindRecording, State: coretypes.StateStopped, LeaseID: ptr("gone"), UpdatedAt: old},
	}

	cfg := testConfig()
	cfg.RetentionSecs[coretypes.KindRecording] = 24 * time.Hour
	r := New(coord, events.NewBroker(), cfg)
	n, err := r.sweepKind(coretypes.KindRecording)
	if err != nil {
		t.Fatalf("sweepKind: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected retention window to suppress reaping, got %d", n)
	}
}

func TestConfigWithDefaultsFillsRecordingRetention(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RetentionSecs[coretypes.KindRecording] != recordingRetentionSecs*time.Second {
		t.Fatalf("expected default recording retention, got %v", cfg.RetentionSecs[coretypes.KindRecording])
	}
	if cfg.RetentionSecs[coretypes.KindStream] != 0 {
		t.Fatalf("expected zero default retention for streams, got %v", cfg.RetentionSecs[coretypes.KindStream])
	}
	if cfg.Interval != defaultInterval {
		t.Fatalf("expected default interval, got %v", cfg.Interval)
	}
}
