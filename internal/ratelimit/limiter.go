package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/federalgaz/campaignmail/internal/config"
)

var bucketRateLimits = []byte("rate_limits")

// Level represents the level of rate limiting
type Level string

const (
	LevelGlobal          Level = "global"
	LevelAPIKey          Level = "api_key"
	LevelRecipientDomain Level = "recipient_domain"
)

// Counter tracks the send counts of one key
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Limiter enforces hourly and daily send quotas at several levels.
// Counters live in memory and are flushed to bbolt periodically.
type Limiter struct {
	db       *bolt.DB
	config   config.RateLimitConfig
	counters map[string]*Counter // key -> counter
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewLimiter creates a new rate limiter
func NewLimiter(db *bolt.DB, cfg config.RateLimitConfig, flushInterval time.Duration) (*Limiter, error) {
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRateLimits)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limits bucket: %w", err)
	}

	l := &Limiter{
		db:       db,
		config:   cfg,
		counters: make(map[string]*Counter),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}

	if err := l.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	go l.persistLoop(flushInterval)

	return l, nil
}

// Request describes one message about to be sent
type Request struct {
	APIKey    string // key identity from the API, empty for CLI sends
	Recipient string // recipient address or bare domain
}

// Result contains the rate limit check result
type Result struct {
	Allowed    bool
	DeniedBy   Level
	DeniedKey  string
	RetryAfter time.Duration
}

// Stats contains rate limit statistics
type Stats struct {
	Level       Level     `json:"level"`
	Key         string    `json:"key"`
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Allow checks if the send is allowed and increments counters
func (l *Limiter) Allow(ctx context.Context, req *Request) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	checks := l.getChecks(req)

	for _, check := range checks {
		counter := l.getOrCreateCounter(check.key, now)
		resetExpiredCounters(counter, now)

		if denied := exceeded(check, counter.HourlyCount, counter.DailyCount, counter, now); denied != nil {
			return denied, nil
		}
	}

	for _, check := range checks {
		counter := l.counters[check.key]
		counter.HourlyCount++
		counter.DailyCount++
	}

	return &Result{Allowed: true}, nil
}

// Check checks if the send would be allowed without incrementing counters
func (l *Limiter) Check(ctx context.Context, req *Request) (*Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	for _, check := range l.getChecks(req) {
		counter, exists := l.counters[check.key]
		if !exists {
			continue
		}

		hourly, daily := counter.HourlyCount, counter.DailyCount
		if now.Sub(counter.HourStart) >= time.Hour {
			hourly = 0
		}
		if now.Sub(counter.DayStart) >= 24*time.Hour {
			daily = 0
		}

		if denied := exceeded(check, hourly, daily, counter, now); denied != nil {
			return denied, nil
		}
	}

	return &Result{Allowed: true}, nil
}

// GetStats returns current counters for one key
func (l *Limiter) GetStats(ctx context.Context, level Level, key string) (*Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{Level: level, Key: key}

	counter, exists := l.counters[makeKey(level, key)]
	if !exists {
		return stats, nil
	}

	now := l.now()
	stats.HourlyCount = counter.HourlyCount
	stats.DailyCount = counter.DailyCount
	stats.HourStart = counter.HourStart
	stats.DayStart = counter.DayStart

	if now.Sub(counter.HourStart) >= time.Hour {
		stats.HourlyCount = 0
	}
	if now.Sub(counter.DayStart) >= 24*time.Hour {
		stats.DailyCount = 0
	}

	return stats, nil
}

// Stop stops the rate limiter and persists counters
func (l *Limiter) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	return l.persistCounters()
}

type limitCheck struct {
	level Level
	key   string
	limit *config.LimitValues
}

func exceeded(check limitCheck, hourly, daily int, counter *Counter, now time.Time) *Result {
	if check.limit.MessagesPerHour > 0 && hourly >= check.limit.MessagesPerHour {
		return &Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.HourStart.Add(time.Hour).Sub(now),
		}
	}
	if check.limit.MessagesPerDay > 0 && daily >= check.limit.MessagesPerDay {
		return &Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.DayStart.Add(24 * time.Hour).Sub(now),
		}
	}
	return nil
}

func (l *Limiter) getChecks(req *Request) []limitCheck {
	var checks []limitCheck

	if l.config.Global != nil {
		checks = append(checks, limitCheck{
			level: LevelGlobal,
			key:   makeKey(LevelGlobal, "global"),
			limit: l.config.Global,
		})
	}

	if req.APIKey != "" && l.config.DefaultAPIKey != nil {
		checks = append(checks, limitCheck{
			level: LevelAPIKey,
			key:   makeKey(LevelAPIKey, req.APIKey),
			limit: l.config.DefaultAPIKey,
		})
	}

	if domain := recipientDomain(req.Recipient); domain != "" {
		limit := l.config.DefaultRecipientDomain
		if specific, ok := l.config.RecipientDomains[domain]; ok {
			limit = specific
		}
		if limit != nil {
			checks = append(checks, limitCheck{
				level: LevelRecipientDomain,
				key:   makeKey(LevelRecipientDomain, domain),
				limit: limit,
			})
		}
	}

	return checks
}

func (l *Limiter) getOrCreateCounter(key string, now time.Time) *Counter {
	counter, exists := l.counters[key]
	if !exists {
		counter = &Counter{
			HourStart: now,
			DayStart:  now,
		}
		l.counters[key] = counter
	}
	return counter
}

func resetExpiredCounters(counter *Counter, now time.Time) {
	if now.Sub(counter.HourStart) >= time.Hour {
		counter.HourlyCount = 0
		counter.HourStart = now
	}
	if now.Sub(counter.DayStart) >= 24*time.Hour {
		counter.DailyCount = 0
		counter.DayStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil // Skip invalid entries
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		for key, counter := range l.counters {
			data, err := json.Marshal(counter)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.persistCounters()
		}
	}
}

// recipientDomain accepts an address or a bare domain
func recipientDomain(recipient string) string {
	recipient = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(recipient), ">"))
	if at := strings.LastIndex(recipient, "@"); at >= 0 {
		recipient = recipient[at+1:]
	}
	return strings.ToLower(recipient)
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}

// Config returns the quota configuration
func (l *Limiter) Config() config.RateLimitConfig {
	return l.config
}

// Limits returns the limit applied to key at level, nil when unlimited
func (l *Limiter) Limits(level Level, key string) *config.LimitValues {
	switch level {
	case LevelGlobal:
		return l.config.Global
	case LevelAPIKey:
		return l.config.DefaultAPIKey
	case LevelRecipientDomain:
		if specific, ok := l.config.RecipientDomains[strings.ToLower(key)]; ok {
			return specific
		}
		return l.config.DefaultRecipientDomain
	}
	return nil
}
