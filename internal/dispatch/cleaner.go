package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// CleanupFunc removes records older than maxAge and returns how many went
type CleanupFunc func(ctx context.Context, maxAge time.Duration) (int, error)

// CleanupTask is one retention rule run by the Cleaner
type CleanupTask struct {
	Name   string
	MaxAge time.Duration // 0 = keep forever, task is not run
	Run    CleanupFunc
}

// Cleaner periodically applies retention to send reports and sandbox captures
type Cleaner struct {
	tasks    []CleanupTask
	interval time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewCleaner creates a new cleaner service
func NewCleaner(interval time.Duration, logger *slog.Logger, tasks ...CleanupTask) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	active := make([]CleanupTask, 0, len(tasks))
	for _, task := range tasks {
		if task.MaxAge > 0 && task.Run != nil {
			active = append(active, task)
		}
	}

	return &Cleaner{
		tasks:    active,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Tasks returns the names of the retention rules that will run
func (c *Cleaner) Tasks() []string {
	names := make([]string, len(c.tasks))
	for i, task := range c.tasks {
		names[i] = task.Name
	}
	return names
}

// Start starts the cleanup goroutine
func (c *Cleaner) Start(ctx context.Context) {
	if len(c.tasks) == 0 {
		c.logger.Info("cleaner disabled, nothing to expire")
		return
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("cleaner started", "interval", c.interval, "tasks", c.Tasks())
}

// Stop stops the cleaner and waits for the goroutine to finish
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		c.logger.Info("cleaner stopped")
	})
}

func (c *Cleaner) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run cleanup immediately on start
	c.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce applies every retention rule once
func (c *Cleaner) RunOnce(ctx context.Context) {
	for _, task := range c.tasks {
		deleted, err := task.Run(ctx, task.MaxAge)
		if err != nil {
			c.logger.Error("cleanup failed", "task", task.Name, "error", err)
			continue
		}
		if deleted > 0 {
			c.logger.Info("cleaned up expired records", "task", task.Name, "deleted", deleted)
		}
	}
}
