package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DB is the shared bbolt database holding templates, send reports,
// sandbox captures and rate limit counters
type DB struct {
	db   *bolt.DB
	path string
}

// Open opens the database file, creating its directory if needed
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// DB returns the underlying bolt.DB instance
func (d *DB) DB() *bolt.DB {
	return d.db
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Size returns the size of the database file in bytes
func (d *DB) Size() int64 {
	info, err := os.Stat(d.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}
