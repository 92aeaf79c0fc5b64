package statestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/vms/pkg/coretypes"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketLeases    = []byte("leases")
	bucketResources = []byte("resources")
)

// BoltStore implements Store on top of an embedded bbolt database. Resource
// instances are keyed by coretypes.ResourceKey(kind, resource_id); leases
// are keyed by lease_id, with a lookup from resource key to lease_id kept
// in the same record's sibling entry so GetLeaseByResource doesn't require
// a full bucket scan.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "vms-state.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open statestore db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLeases, bucketResources} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func leaseByResourceKey(kind coretypes.ResourceKind, resourceID string) string {
	return "by_resource/" + coretypes.ResourceKey(kind, resourceID)
}

func (s *BoltStore) PutLease(lease *coretypes.Lease) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		data, err := json.Marshal(lease)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(lease.LeaseID), data); err != nil {
			return err
		}
		return b.Put([]byte(leaseByResourceKey(lease.Kind, lease.ResourceID)), []byte(lease.LeaseID))
	})
}

func (s *BoltStore) GetLease(leaseID string) (*coretypes.Lease, error) {
	var lease coretypes.Lease
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLeases).Get([]byte(leaseID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &lease)
	})
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *BoltStore) GetLeaseByResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.Lease, error) {
	var lease coretypes.Lease
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		leaseID := b.Get([]byte(leaseByResourceKey(kind, resourceID)))
		if leaseID == nil {
			return ErrNotFound
		}
		data := b.Get(leaseID)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &lease)
	})
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (s *BoltStore) ListLeases(kind coretypes.ResourceKind) ([]*coretypes.Lease, error) {
	var leases []*coretypes.Lease
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLeases).ForEach(func(k, v []byte) error {
			if len(k) >= len("by_resource/") && string(k[:len("by_resource/")]) == "by_resource/" {
				return nil
			}
			var lease coretypes.Lease
			if err := json.Unmarshal(v, &lease); err != nil {
				return err
			}
			if kind == "" || lease.Kind == kind {
				leases = append(leases, &lease)
			}
			return nil
		})
	})
	return leases, err
}

func (s *BoltStore) DeleteLease(leaseID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLeases)
		data := b.Get([]byte(leaseID))
		if data == nil {
			return nil
		}
		var lease coretypes.Lease
		if err := json.Unmarshal(data, &lease); err != nil {
			return err
		}
		if err := b.Delete([]byte(leaseByResourceKey(lease.Kind, lease.ResourceID))); err != nil {
			return err
		}
		return b.Delete([]byte(leaseID))
	})
}

func (s *BoltStore) PutResource(inst *coretypes.ResourceInstance) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(inst)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketResources).Put([]byte(inst.Key()), data)
	})
}

func (s *BoltStore) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	var inst coretypes.ResourceInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResources).Get([]byte(coretypes.ResourceKey(kind, resourceID)))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &inst)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *BoltStore) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	var instances []*coretypes.ResourceInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			var inst coretypes.ResourceInstance
			if err := json.Unmarshal(v, &inst); err != nil {
				return err
			}
			if kind == "" || inst.Kind == kind {
				instances = append(instances, &inst)
			}
			return nil
		})
	})
	return instances, err
}

func (s *BoltStore) ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error) {
	all, err := s.ListResources("")
	if err != nil {
		return nil, err
	}
	var filtered []*coretypes.ResourceInstance
	for _, inst := range all {
		if inst.HolderNodeID != nil && *inst.HolderNodeID == nodeID {
			filtered = append(filtered, inst)
		}
	}
	return filtered, nil
}

func (s *BoltStore) DeleteResource(kind coretypes.ResourceKind, resourceID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).Delete([]byte(coretypes.ResourceKey(kind, resourceID)))
	})
}
