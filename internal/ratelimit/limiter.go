// Package ratelimit enforces hourly and daily sending quotas. Counters are
// kept in memory and flushed to BoltDB so a restart does not reset them.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRateLimits = []byte("rate_limits")

// Level is the scope a quota is counted in
type Level string

const (
	LevelGlobal          Level = "global"
	LevelRecipientDomain Level = "recipient_domain"
	LevelTag             Level = "tag" // campaign, or the rule kind of an automated email
)

// Config contains quota configuration. A nil limit disables that level.
type Config struct {
	Global          *LimitConfig
	RecipientDomain *LimitConfig
	Tag             *LimitConfig

	FlushInterval time.Duration
}

// LimitConfig contains quota values. Zero means unlimited.
type LimitConfig struct {
	MessagesPerHour int `json:"messages_per_hour"`
	MessagesPerDay  int `json:"messages_per_day"`
}

// Counter tracks the messages counted in the current windows
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Request describes one message about to be sent
type Request struct {
	RecipientDomain string
	Tag             string
}

// Result is the outcome of a quota check
type Result struct {
	Allowed    bool
	DeniedBy   Level
	DeniedKey  string
	RetryAfter time.Duration
}

// Stats is a snapshot of one counter
type Stats struct {
	Level       Level     `json:"level"`
	Key         string    `json:"key"`
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start,omitzero"`
	DayStart    time.Time `json:"day_start,omitzero"`
}

// Limiter counts messages against the configured quotas
type Limiter struct {
	db       *bolt.DB
	config   Config
	counters map[string]*Counter
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewLimiter creates a limiter and loads persisted counters
func NewLimiter(db *bolt.DB, cfg Config) (*Limiter, error) {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
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

	go l.persistLoop()

	return l, nil
}

// Allow checks every applicable quota and counts the message when all of
// them have room. A denied message is not counted anywhere.
func (l *Limiter) Allow(ctx context.Context, req Request) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	checks := l.checks(req)

	for _, check := range checks {
		counter := l.counter(check.key, now)
		resetExpired(counter, now)

		if res, denied := exceeded(check, counter, now); denied {
			return res
		}
	}

	for _, check := range checks {
		counter := l.counters[check.key]
		counter.HourlyCount++
		counter.DailyCount++
	}

	return Result{Allowed: true}
}

// Stats returns the counter of one level and key
func (l *Limiter) Stats(level Level, key string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Level: level, Key: key}
	counter, ok := l.counters[makeKey(level, key)]
	if !ok {
		return stats
	}

	now := l.now()
	stats.HourStart = counter.HourStart
	stats.DayStart = counter.DayStart
	if now.Sub(counter.HourStart) < time.Hour {
		stats.HourlyCount = counter.HourlyCount
	}
	if now.Sub(counter.DayStart) < 24*time.Hour {
		stats.DailyCount = counter.DailyCount
	}
	return stats
}

// Stop ends background persistence and flushes the counters
func (l *Limiter) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	return l.persistCounters()
}

type limitCheck struct {
	level Level
	key   string
	limit *LimitConfig
}

func (l *Limiter) checks(req Request) []limitCheck {
	var checks []limitCheck

	if l.config.Global != nil {
		checks = append(checks, limitCheck{LevelGlobal, makeKey(LevelGlobal, "global"), l.config.Global})
	}
	if req.RecipientDomain != "" && l.config.RecipientDomain != nil {
		checks = append(checks, limitCheck{LevelRecipientDomain, makeKey(LevelRecipientDomain, req.RecipientDomain), l.config.RecipientDomain})
	}
	if req.Tag != "" && l.config.Tag != nil {
		checks = append(checks, limitCheck{LevelTag, makeKey(LevelTag, req.Tag), l.config.Tag})
	}

	return checks
}

func exceeded(check limitCheck, counter *Counter, now time.Time) (Result, bool) {
	switch {
	case check.limit.MessagesPerHour > 0 && counter.HourlyCount >= check.limit.MessagesPerHour:
		return Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.HourStart.Add(time.Hour).Sub(now),
		}, true
	case check.limit.MessagesPerDay > 0 && counter.DailyCount >= check.limit.MessagesPerDay:
		return Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.DayStart.Add(24 * time.Hour).Sub(now),
		}, true
	}
	return Result{}, false
}

func (l *Limiter) counter(key string, now time.Time) *Counter {
	counter, ok := l.counters[key]
	if !ok {
		counter = &Counter{HourStart: now, DayStart: now}
		l.counters[key] = counter
	}
	return counter
}

func resetExpired(counter *Counter, now time.Time) {
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

// persistCounters writes live counters to the database and evicts counters
// whose hour and day windows have both expired.
func (l *Limiter) persistCounters() error {
	l.mu.Lock()
	now := l.now()
	snapshot := make(map[string][]byte, len(l.counters))
	var expired []string
	for key, counter := range l.counters {
		if now.Sub(counter.HourStart) >= time.Hour && now.Sub(counter.DayStart) >= 24*time.Hour {
			delete(l.counters, key)
			expired = append(expired, key)
			continue
		}
		data, err := json.Marshal(counter)
		if err != nil {
			continue
		}
		snapshot[key] = data
	}
	l.mu.Unlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}
		for _, key := range expired {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		for key, data := range snapshot {
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop() {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			_ = l.persistCounters()
		}
	}
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}
