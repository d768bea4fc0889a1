package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"
)

// Snapshot contains account state exported as gauges
type Snapshot struct {
	CreditsRemaining  int64
	SubscribersActive int64
}

// SnapshotProvider reports current account state
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Collector periodically refreshes system and account gauges
type Collector struct {
	metrics     *Metrics
	source      SnapshotProvider
	storagePath string
	interval    time.Duration
	startTime   time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a new gauge collector. source may be nil.
func NewCollector(m *Metrics, source SnapshotProvider, storagePath string, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Collector{
		metrics:     m,
		source:      source,
		storagePath: storagePath,
		interval:    interval,
		startTime:   time.Now(),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start(ctx context.Context) {
	c.Collect(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Collect(ctx)
			}
		}
	}()
}

// Stop stops the collection loop and waits for it to exit
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Collect refreshes all gauges once
func (c *Collector) Collect(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.storagePath != "" {
		if info, err := os.Stat(c.storagePath); err == nil {
			c.metrics.StorageUsedBytes.Set(float64(info.Size()))
		}
	}

	if c.source == nil {
		return
	}
	snap, err := c.source.Snapshot(ctx)
	if err != nil || snap == nil {
		return
	}
	c.metrics.CreditsRemaining.Set(float64(snap.CreditsRemaining))
	c.metrics.SubscribersActive.Set(float64(snap.SubscribersActive))
}
