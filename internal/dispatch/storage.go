package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSends       = []byte("sends")
	bucketSendsByTime = []byte("sends_by_time")
)

// keyTimeLayout is fixed width so index keys sort chronologically
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no report has the given ID
var ErrNotFound = errors.New("dispatch report not found")

// Storage keeps dispatch reports in bbolt
type Storage struct {
	db *bolt.DB
}

// NewStorage creates report storage using the provided BoltDB instance
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSends, bucketSendsByTime} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sends buckets: %w", err)
	}

	return &Storage{db: db}, nil
}

// Save creates or replaces a report
func (s *Storage) Save(ctx context.Context, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSends).Put([]byte(r.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketSendsByTime).Put(makeIndexKey(r.StartedAt, r.ID), []byte(r.ID))
	})
}

// Get retrieves a report by ID
func (s *Storage) Get(ctx context.Context, id string) (*Report, error) {
	var r Report

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSends).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// ListFilter contains filters for listing reports
type ListFilter struct {
	TemplateID string
	Status     Status
	Limit      int
	Offset     int
}

// List returns report summaries, newest first. Items are left out.
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Report, error) {
	reports := make([]*Report, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		sends := tx.Bucket(bucketSends)
		c := tx.Bucket(bucketSendsByTime).Cursor()

		skipped := 0
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			data := sends.Get(id)
			if data == nil {
				continue
			}

			var r Report
			if err := json.Unmarshal(data, &r); err != nil {
				continue
			}

			if filter.TemplateID != "" && r.TemplateID != filter.TemplateID {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			r.Items = nil
			reports = append(reports, &r)

			if filter.Limit > 0 && len(reports) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return reports, err
}

// Delete removes a report
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		sends := tx.Bucket(bucketSends)

		data := sends.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var r Report
		if err := json.Unmarshal(data, &r); err == nil {
			if err := tx.Bucket(bucketSendsByTime).Delete(makeIndexKey(r.StartedAt, r.ID)); err != nil {
				return err
			}
		}
		return sends.Delete([]byte(id))
	})
}

// Cleanup removes finished reports started before now-maxAge
func (s *Storage) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	var deleted int
	stop := time.Now().UTC().Add(-maxAge).Format(keyTimeLayout)

	err := s.db.Update(func(tx *bolt.Tx) error {
		sends := tx.Bucket(bucketSends)
		index := tx.Bucket(bucketSendsByTime)
		c := index.Cursor()

		var indexKeys, ids [][]byte
		for k, id := c.First(); k != nil; k, id = c.Next() {
			if string(k) >= stop {
				break
			}

			var r Report
			if data := sends.Get(id); data != nil {
				if err := json.Unmarshal(data, &r); err == nil && !r.Finished() {
					continue
				}
			}
			indexKeys = append(indexKeys, append([]byte(nil), k...))
			ids = append(ids, append([]byte(nil), id...))
		}

		for i := range indexKeys {
			if err := index.Delete(indexKeys[i]); err != nil {
				return err
			}
			if err := sends.Delete(ids[i]); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})

	return deleted, err
}

// Count returns the number of stored reports
func (s *Storage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(bucketSends).Stats().KeyN)
		return nil
	})
	return n, err
}

func makeIndexKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(keyTimeLayout) + "|" + id)
}
