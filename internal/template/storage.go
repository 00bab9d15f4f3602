package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketRecords     = []byte("campaign_templates")
	bucketRecordNames = []byte("campaign_template_names")
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("template not found")
	// ErrNameExists is returned when a record name is already taken
	ErrNameExists = errors.New("template name already exists")
	// ErrNameRequired is returned when a record has no name
	ErrNameRequired = errors.New("template name is required")
)

// Storage persists saved campaign templates in bbolt
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new template storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketRecordNames); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template buckets: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create stores a new record, assigning its ID and version
func (s *Storage) Create(ctx context.Context, rec *Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return ErrNameRequired
	}
	if rec.Slug == "" {
		rec.Slug = SlugModern
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		names := tx.Bucket(bucketRecordNames)

		if names.Get([]byte(rec.Name)) != nil {
			return fmt.Errorf("%w: %q", ErrNameExists, rec.Name)
		}

		rec.ID = uuid.New().String()
		rec.Version = 1
		rec.CreatedAt = time.Now().UTC()
		rec.UpdatedAt = rec.CreatedAt

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}

		if err := records.Put([]byte(rec.ID), data); err != nil {
			return err
		}
		return names.Put([]byte(rec.Name), []byte(rec.ID))
	})
}

// Get retrieves a record by ID
func (s *Storage) Get(ctx context.Context, id string) (*Record, error) {
	var rec *Record

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByName retrieves a record by its unique name
func (s *Storage) GetByName(ctx context.Context, name string) (*Record, error) {
	var rec *Record

	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketRecordNames).Get([]byte(name))
		if id == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketRecords).Get(id)
		if data == nil {
			return ErrNotFound
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Find looks a record up by ID first and by name second
func (s *Storage) Find(ctx context.Context, idOrName string) (*Record, error) {
	rec, err := s.Get(ctx, idOrName)
	if errors.Is(err, ErrNotFound) {
		return s.GetByName(ctx, idOrName)
	}
	return rec, err
}

// List returns records matching the filter
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	var out []*Record
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		skipped := 0

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}

			if filter.Slug != "" && rec.Slug != filter.Slug {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(rec.Name), search) &&
				!strings.Contains(strings.ToLower(rec.Description), search) &&
				!strings.Contains(strings.ToLower(rec.Request.Subject), search) {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			out = append(out, &rec)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return out, err
}

// Update replaces an existing record and bumps its version
func (s *Storage) Update(ctx context.Context, rec *Record) error {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return ErrNameRequired
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		names := tx.Bucket(bucketRecordNames)

		existingData := records.Get([]byte(rec.ID))
		if existingData == nil {
			return ErrNotFound
		}

		var existing Record
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}

		if existing.Name != rec.Name {
			if names.Get([]byte(rec.Name)) != nil {
				return fmt.Errorf("%w: %q", ErrNameExists, rec.Name)
			}
			if err := names.Delete([]byte(existing.Name)); err != nil {
				return err
			}
			if err := names.Put([]byte(rec.Name), []byte(rec.ID)); err != nil {
				return err
			}
		}

		rec.Version = existing.Version + 1
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}
		return records.Put([]byte(rec.ID), data)
	})
}

// Delete removes a record by ID. Deleting a missing record is not an error.
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)

		data := records.Get([]byte(id))
		if data == nil {
			return nil
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}

		if err := tx.Bucket(bucketRecordNames).Delete([]byte(rec.Name)); err != nil {
			return err
		}
		return records.Delete([]byte(id))
	})
}

// Stats returns record counts in total and per slug
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{BySlug: make(map[Slug]int64)}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			stats.Total++
			stats.BySlug[rec.Slug]++
			return nil
		})
	})

	return stats, err
}
