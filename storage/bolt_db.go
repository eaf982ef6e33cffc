package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"govor-biljaka/model"
)

var observationsBucket = []byte("observations")

// BoltObservationDB stores observations in a single bbolt file: bucket
// "observations", key = id, value = JSON-encoded model.Observation.
type BoltObservationDB struct {
	db *bolt.DB
}

func OpenBoltObservationDB(path string) (*BoltObservationDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(observationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltObservationDB{db: db}, nil
}

func (s *BoltObservationDB) Close() error {
	return s.db.Close()
}

func (s *BoltObservationDB) SaveObservation(_ context.Context, obs *model.Observation) (*model.Observation, error) {
	saved := *obs
	saved.ID = uuid.NewString()
	value, err := json.Marshal(saved)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(observationsBucket).Put([]byte(saved.ID), value)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *BoltObservationDB) ListObservations(_ context.Context) ([]model.Observation, error) {
	out := []model.Observation{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(observationsBucket).ForEach(func(k, v []byte) error {
			var obs model.Observation
			if err := json.Unmarshal(v, &obs); err != nil {
				return fmt.Errorf("decode observation %s: %w", k, err)
			}
			out = append(out, obs)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *BoltObservationDB) GetObservation(_ context.Context, id string) (*model.Observation, error) {
	var obs *model.Observation
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(observationsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		obs = &model.Observation{}
		return json.Unmarshal(v, obs)
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *BoltObservationDB) DeleteObservation(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(observationsBucket)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}
