package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLimiter(t *testing.T, db *bolt.DB, cfg Config, clock *time.Time) *Limiter {
	t.Helper()

	cfg.FlushInterval = time.Hour // flushed explicitly by Stop
	limiter, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	limiter.now = func() time.Time { return *clock }
	t.Cleanup(func() { limiter.Stop() })
	return limiter
}

func TestNewLimiterDefaultFlushInterval(t *testing.T) {
	limiter, err := NewLimiter(setupTestDB(t), Config{})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	defer limiter.Stop()

	if limiter.config.FlushInterval != 10*time.Second {
		t.Errorf("expected default FlushInterval=10s, got %v", limiter.config.FlushInterval)
	}
}

func TestAllowGlobalLimit(t *testing.T) {
	clock := testNow
	limiter := newTestLimiter(t, setupTestDB(t), Config{
		Global: &LimitConfig{MessagesPerHour: 3, MessagesPerDay: 10},
	}, &clock)
	ctx := context.Background()
	req := Request{RecipientDomain: "example.com", Tag: "campaign"}

	for i := 0; i < 3; i++ {
		if res := limiter.Allow(ctx, req); !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res := limiter.Allow(ctx, req)
	if res.Allowed {
		t.Fatal("request 4 should be denied")
	}
	if res.DeniedBy != LevelGlobal {
		t.Errorf("expected DeniedBy=global, got %s", res.DeniedBy)
	}
	if res.RetryAfter != time.Hour {
		t.Errorf("expected RetryAfter=1h, got %v", res.RetryAfter)
	}

	clock = clock.Add(time.Hour)
	if res := limiter.Allow(ctx, req); !res.Allowed {
		t.Error("request in the next hour should be allowed")
	}
}

func TestAllowPerKeyLevels(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		first    Request
		other    Request
		deniedBy Level
	}{
		{
			name:     "recipient domain",
			cfg:      Config{RecipientDomain: &LimitConfig{MessagesPerHour: 2}},
			first:    Request{RecipientDomain: "gmail.com"},
			other:    Request{RecipientDomain: "yahoo.com"},
			deniedBy: LevelRecipientDomain,
		},
		{
			name:     "tag",
			cfg:      Config{Tag: &LimitConfig{MessagesPerHour: 2}},
			first:    Request{Tag: "campaign"},
			other:    Request{Tag: "refund"},
			deniedBy: LevelTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := testNow
			limiter := newTestLimiter(t, setupTestDB(t), tt.cfg, &clock)
			ctx := context.Background()

			limiter.Allow(ctx, tt.first)
			limiter.Allow(ctx, tt.first)

			res := limiter.Allow(ctx, tt.first)
			if res.Allowed {
				t.Fatal("third request should be denied")
			}
			if res.DeniedBy != tt.deniedBy {
				t.Errorf("DeniedBy = %s, want %s", res.DeniedBy, tt.deniedBy)
			}

			if res := limiter.Allow(ctx, tt.other); !res.Allowed {
				t.Error("a different key should have its own quota")
			}
		})
	}
}

func TestAllowDailyLimit(t *testing.T) {
	clock := testNow
	limiter := newTestLimiter(t, setupTestDB(t), Config{
		Global: &LimitConfig{MessagesPerHour: 100, MessagesPerDay: 2},
	}, &clock)
	ctx := context.Background()

	limiter.Allow(ctx, Request{})
	clock = clock.Add(2 * time.Hour)
	limiter.Allow(ctx, Request{})

	res := limiter.Allow(ctx, Request{})
	if res.Allowed {
		t.Fatal("third request of the day should be denied")
	}
	if res.RetryAfter != 22*time.Hour {
		t.Errorf("expected RetryAfter=22h, got %v", res.RetryAfter)
	}
}

func TestDeniedRequestIsNotCounted(t *testing.T) {
	clock := testNow
	limiter := newTestLimiter(t, setupTestDB(t), Config{
		Global:          &LimitConfig{MessagesPerHour: 10},
		RecipientDomain: &LimitConfig{MessagesPerHour: 1},
	}, &clock)
	ctx := context.Background()

	limiter.Allow(ctx, Request{RecipientDomain: "gmail.com"})
	if res := limiter.Allow(ctx, Request{RecipientDomain: "gmail.com"}); res.Allowed {
		t.Fatal("second gmail.com request should be denied")
	}

	stats := limiter.Stats(LevelGlobal, "global")
	if stats.HourlyCount != 1 {
		t.Errorf("global HourlyCount = %d, want 1", stats.HourlyCount)
	}
}

func TestStats(t *testing.T) {
	clock := testNow
	limiter := newTestLimiter(t, setupTestDB(t), Config{
		Tag: &LimitConfig{MessagesPerHour: 10, MessagesPerDay: 100},
	}, &clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		limiter.Allow(ctx, Request{Tag: "confirmation"})
	}

	stats := limiter.Stats(LevelTag, "confirmation")
	if stats.HourlyCount != 4 || stats.DailyCount != 4 {
		t.Errorf("Stats() = %+v, want 4/4", stats)
	}

	clock = clock.Add(90 * time.Minute)
	stats = limiter.Stats(LevelTag, "confirmation")
	if stats.HourlyCount != 0 || stats.DailyCount != 4 {
		t.Errorf("Stats() after an hour = %+v, want 0/4", stats)
	}

	if empty := limiter.Stats(LevelTag, "refund"); empty.HourlyCount != 0 || empty.DailyCount != 0 {
		t.Errorf("Stats() of unknown key = %+v, want zero counts", empty)
	}
}

func TestZeroLimitsAreUnlimited(t *testing.T) {
	clock := testNow
	limiter := newTestLimiter(t, setupTestDB(t), Config{Global: &LimitConfig{}}, &clock)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if res := limiter.Allow(ctx, Request{}); !res.Allowed {
			t.Fatalf("request %d denied with zero limits", i+1)
		}
	}
}

func TestPersistence(t *testing.T) {
	db := setupTestDB(t)
	cfg := Config{Global: &LimitConfig{MessagesPerHour: 5}, FlushInterval: time.Hour}
	ctx := context.Background()

	first, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	first.now = func() time.Time { return testNow }
	for i := 0; i < 3; i++ {
		first.Allow(ctx, Request{})
	}
	if err := first.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	second, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	defer second.Stop()
	second.now = func() time.Time { return testNow.Add(time.Minute) }

	if got := second.Stats(LevelGlobal, "global").HourlyCount; got != 3 {
		t.Errorf("restored HourlyCount = %d, want 3", got)
	}
}

func TestStopTwice(t *testing.T) {
	limiter, err := NewLimiter(setupTestDB(t), Config{})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	if err := limiter.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := limiter.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestExpiredCountersAreEvicted(t *testing.T) {
	clock := testNow
	db := setupTestDB(t)
	limiter := newTestLimiter(t, db, Config{
		RecipientDomain: &LimitConfig{MessagesPerHour: 10},
	}, &clock)
	ctx := context.Background()

	limiter.Allow(ctx, Request{RecipientDomain: "old.example"})
	if err := limiter.persistCounters(); err != nil {
		t.Fatalf("persistCounters() error = %v", err)
	}

	clock = clock.Add(25 * time.Hour)
	limiter.Allow(ctx, Request{RecipientDomain: "new.example"})
	if err := limiter.persistCounters(); err != nil {
		t.Fatalf("persistCounters() error = %v", err)
	}

	limiter.mu.Lock()
	_, oldInMemory := limiter.counters[makeKey(LevelRecipientDomain, "old.example")]
	_, newInMemory := limiter.counters[makeKey(LevelRecipientDomain, "new.example")]
	limiter.mu.Unlock()
	if oldInMemory {
		t.Error("expired counter kept in memory")
	}
	if !newInMemory {
		t.Error("live counter evicted")
	}

	err := db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket.Get([]byte(makeKey(LevelRecipientDomain, "old.example"))) != nil {
			t.Error("expired counter kept in the database")
		}
		if bucket.Get([]byte(makeKey(LevelRecipientDomain, "new.example"))) == nil {
			t.Error("live counter missing from the database")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
