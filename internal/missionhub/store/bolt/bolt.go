// Package bolt is a single-file Repository on bbolt for single-node hubs.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
)

var (
	bucketMissions = []byte("missions")    // mission code -> MissionDuty
	bucketIDs      = []byte("mission_ids") // mission id -> mission code
	bucketEvents   = []byte("events")      // mission code -> sub-bucket of sequence -> MissionEvent
)

// Store is a bbolt-backed Repository.
type Store struct {
	db *bbolt.DB
}

var (
	_ core.Repository        = (*Store)(nil)
	_ core.MissionRepository = (*missions)(nil)
	_ core.EventRepository   = (*events)(nil)
)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o640, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMissions, bucketIDs, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Missions() core.MissionRepository { return (*missions)(s) }
func (s *Store) Events() core.EventRepository     { return (*events)(s) }

// Close closes the database file.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

type missions Store

func (r *missions) Create(_ context.Context, m *model.MissionDuty) error {
	val, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("bolt: marshal mission %s: %w", m.MissionCode, err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMissions)
		if b.Get([]byte(m.MissionCode)) != nil {
			return core.ErrAlreadyExists
		}
		if err := b.Put([]byte(m.MissionCode), val); err != nil {
			return err
		}
		return tx.Bucket(bucketIDs).Put([]byte(m.ID), []byte(m.MissionCode))
	})
}

func (r *missions) FindByCode(_ context.Context, code string) (*model.MissionDuty, error) {
	var m *model.MissionDuty
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		m, err = getMission(tx, code)
		return err
	})
	return m, err
}

func (r *missions) FindByID(_ context.Context, id string) (*model.MissionDuty, error) {
	var m *model.MissionDuty
	err := r.db.View(func(tx *bbolt.Tx) error {
		code := tx.Bucket(bucketIDs).Get([]byte(id))
		if code == nil {
			return core.ErrNotFound
		}
		var err error
		m, err = getMission(tx, string(code))
		return err
	})
	return m, err
}

func (r *missions) FindOpenForVIN(_ context.Context, vin string) ([]*model.MissionDuty, error) {
	return r.list(func(m *model.MissionDuty) bool { return m.VIN == vin && m.Open() })
}

func (r *missions) List(_ context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error) {
	return r.list(filter.Match)
}

// list scans every mission and returns the matches in creation order.
func (r *missions) list(match func(*model.MissionDuty) bool) ([]*model.MissionDuty, error) {
	var out []*model.MissionDuty
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMissions).ForEach(func(k, v []byte) error {
			var m model.MissionDuty
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("bolt: decode mission %s: %w", k, err)
			}
			if match(&m) {
				out = append(out, &m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Transition rewrites the mission and appends the event in one transaction.
func (r *missions) Transition(_ context.Context, t *model.Transition) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		m, err := getMission(tx, t.MissionCode)
		if err != nil {
			return err
		}
		t.Apply(m)
		val, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("bolt: marshal mission %s: %w", t.MissionCode, err)
		}
		if err := tx.Bucket(bucketMissions).Put([]byte(t.MissionCode), val); err != nil {
			return err
		}
		if t.Event == nil {
			return nil
		}
		return putEvent(tx, t.Event)
	})
}

func getMission(tx *bbolt.Tx, code string) (*model.MissionDuty, error) {
	val := tx.Bucket(bucketMissions).Get([]byte(code))
	if val == nil {
		return nil, core.ErrNotFound
	}
	var m model.MissionDuty
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, fmt.Errorf("bolt: decode mission %s: %w", code, err)
	}
	return &m, nil
}

type events Store

func (r *events) Create(_ context.Context, e *model.MissionEvent) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return putEvent(tx, e)
	})
}

// putEvent appends e under its mission code. Keys are the bucket sequence so
// iteration returns append order.
func putEvent(tx *bbolt.Tx, e *model.MissionEvent) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("bolt: marshal event %s: %w", e.ID, err)
	}
	b, err := tx.Bucket(bucketEvents).CreateBucketIfNotExists([]byte(e.MissionCode))
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return b.Put(key, val)
}

func (r *events) ListByMission(_ context.Context, code string) ([]*model.MissionEvent, error) {
	out := []*model.MissionEvent{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents).Bucket([]byte(code))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var e model.MissionEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("bolt: decode event of %s: %w", code, err)
			}
			out = append(out, &e)
			return nil
		})
	})
	return out, err
}
