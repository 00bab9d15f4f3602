package metrics

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ContentStats contains stored object counts for the content gauges
type ContentStats struct {
	Templates       int64
	Reports         int64
	SandboxMessages int64
}

// ContentStatsProvider provides stored object counts
type ContentStatsProvider interface {
	ContentStats(ctx context.Context) (*ContentStats, error)
}

var (
	bucketMetrics = []byte("metrics")
	keyCounters   = []byte("counters")
)

// Collector persists counters across restarts and refreshes the gauges
type Collector struct {
	db             *bolt.DB
	metrics        *Metrics
	content        ContentStatsProvider
	storagePath    string
	flushInterval  time.Duration
	systemInterval time.Duration
	startTime      time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector and restores persisted counters into m.
// content may be nil.
func NewCollector(db *bolt.DB, m *Metrics, content ContentStatsProvider, storagePath string, flushInterval time.Duration) (*Collector, error) {
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMetrics)
		return err
	})
	if err != nil {
		return nil, err
	}

	c := &Collector{
		db:             db,
		metrics:        m,
		content:        content,
		storagePath:    storagePath,
		flushInterval:  flushInterval,
		systemInterval: 5 * time.Second,
		startTime:      time.Now(),
		stopCh:         make(chan struct{}),
	}

	if err := c.loadCounters(); err != nil {
		return nil, err
	}

	return c, nil
}

// Start begins the collector background tasks
func (c *Collector) Start(ctx context.Context) {
	c.collectSystemMetrics(ctx)

	c.wg.Add(2)
	go c.loop(ctx, c.flushInterval, func(context.Context) { c.persistCounters() })
	go c.loop(ctx, c.systemInterval, c.collectSystemMetrics)
}

// Stop stops the collector and persists final values
func (c *Collector) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return c.persistCounters()
}

func (c *Collector) loadCounters() error {
	return c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMetrics).Get(keyCounters)
		if data == nil {
			return nil
		}

		var saved map[string]map[string]float64
		if err := json.Unmarshal(data, &saved); err != nil {
			return nil // Skip invalid data
		}
		c.metrics.restore(saved)
		return nil
	})
}

func (c *Collector) persistCounters() error {
	data, err := json.Marshal(c.metrics.snapshot())
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetrics).Put(keyCounters, data)
	})
}

func (c *Collector) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// collectSystemMetrics collects current system state
func (c *Collector) collectSystemMetrics(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.storagePath != "" {
		if info, err := os.Stat(c.storagePath); err == nil {
			c.metrics.StorageUsedBytes.Set(float64(info.Size()))
		}
	}

	if c.content != nil {
		stats, err := c.content.ContentStats(ctx)
		if err == nil {
			c.metrics.TemplatesStored.Set(float64(stats.Templates))
			c.metrics.ReportsStored.Set(float64(stats.Reports))
			c.metrics.SandboxMessages.Set(float64(stats.SandboxMessages))
		}
	}
}
