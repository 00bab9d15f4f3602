package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSandbox      = []byte("sandbox")
	bucketSandboxIndex = []byte("sandbox_ids")
)

// keyTimeLayout is fixed width so keys sort chronologically
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no captured message has the given ID
var ErrNotFound = errors.New("sandbox message not found")

// Message is a campaign email captured instead of (or besides) being delivered
type Message struct {
	ID           string            `json:"id"`
	From         string            `json:"from"`
	To           []string          `json:"to"`
	OriginalTo   []string          `json:"original_to,omitempty"` // recipients before redirect
	Subject      string            `json:"subject"`
	Tag          string            `json:"tag,omitempty"`
	HTML         string            `json:"html,omitempty"`
	Text         string            `json:"text,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Mode         string            `json:"mode"` // sandbox, redirect
	ProviderID   string            `json:"provider_id,omitempty"`
	CapturedAt   time.Time         `json:"captured_at"`
	SimulatedErr string            `json:"simulated_error,omitempty"`
	Error        string            `json:"error,omitempty"` // redirect delivery failure
}

// Storage keeps captured messages in bbolt, ordered by capture time
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new sandbox storage using the provided BoltDB instance
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSandbox, bucketSandboxIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox buckets: %w", err)
	}

	return &Storage{db: db}, nil
}

// Save stores a message in the sandbox
func (s *Storage) Save(ctx context.Context, msg *Message) error {
	if msg.CapturedAt.IsZero() {
		msg.CapturedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSandbox)
		index := tx.Bucket(bucketSandboxIndex)

		// Replace an earlier capture of the same message
		if old := index.Get([]byte(msg.ID)); old != nil {
			if err := bucket.Delete(old); err != nil {
				return err
			}
		}

		key := makeIndexKey(msg.CapturedAt, msg.ID)
		if err := bucket.Put(key, data); err != nil {
			return err
		}
		return index.Put([]byte(msg.ID), key)
	})
}

// Get retrieves a message by ID
func (s *Storage) Get(ctx context.Context, id string) (*Message, error) {
	var msg Message

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketSandboxIndex).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketSandbox).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &msg)
	})
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// ListFilter contains filters for listing messages
type ListFilter struct {
	Mode   string
	Tag    string
	To     string
	Limit  int
	Offset int
}

// List returns message summaries matching the filter, newest first.
// Bodies are left out; use Get for the full message.
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Message, error) {
	messages := make([]*Message, 0)
	to := strings.ToLower(filter.To)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()

		skipped := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var msg Message
			if err := json.Unmarshal(v, &msg); err != nil {
				continue
			}

			if filter.Mode != "" && msg.Mode != filter.Mode {
				continue
			}
			if filter.Tag != "" && msg.Tag != filter.Tag {
				continue
			}
			if to != "" && !containsAddress(msg.To, msg.OriginalTo, to) {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			msg.HTML, msg.Text = "", ""
			messages = append(messages, &msg)

			if filter.Limit > 0 && len(messages) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return messages, err
}

// Delete removes a message by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(bucketSandboxIndex)
		key := index.Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		if err := tx.Bucket(bucketSandbox).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}

// Clear removes messages captured before now-olderThan; zero clears everything
func (s *Storage) Clear(ctx context.Context, olderThan time.Duration) (int, error) {
	var count int

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSandbox)
		index := tx.Bucket(bucketSandboxIndex)
		c := bucket.Cursor()

		var stop []byte
		if olderThan > 0 {
			stop = []byte(time.Now().UTC().Add(-olderThan).Format(keyTimeLayout))
		}

		var keysToDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if stop != nil && string(k) >= string(stop) {
				break
			}
			keysToDelete = append(keysToDelete, k)
		}

		for _, k := range keysToDelete {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			if err := index.Delete([]byte(idFromKey(k))); err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}

// Stats summarizes the sandbox contents
type Stats struct {
	Total     int64            `json:"total"`
	ByMode    map[string]int64 `json:"by_mode"`
	ByTag     map[string]int64 `json:"by_tag"`
	OldestAt  time.Time        `json:"oldest_at,omitempty"`
	NewestAt  time.Time        `json:"newest_at,omitempty"`
	TotalSize int64            `json:"total_size"`
}

// Stats returns sandbox statistics
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByMode: make(map[string]int64),
		ByTag:  make(map[string]int64),
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var msg Message
			if err := json.Unmarshal(v, &msg); err != nil {
				continue
			}

			stats.Total++
			stats.TotalSize += int64(len(v))
			stats.ByMode[msg.Mode]++
			if msg.Tag != "" {
				stats.ByTag[msg.Tag]++
			}

			if stats.OldestAt.IsZero() {
				stats.OldestAt = msg.CapturedAt
			}
			stats.NewestAt = msg.CapturedAt
		}
		return nil
	})

	return stats, err
}

func containsAddress(to, originalTo []string, want string) bool {
	for _, list := range [][]string{to, originalTo} {
		for _, addr := range list {
			if strings.Contains(strings.ToLower(addr), want) {
				return true
			}
		}
	}
	return false
}

func makeIndexKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(keyTimeLayout) + "|" + id)
}

func idFromKey(key []byte) string {
	s := string(key)
	if i := strings.LastIndexByte(s, '|'); i >= 0 {
		return s[i+1:]
	}
	return s
}
