package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSnapshots struct {
	snap *Snapshot
	err  error
}

func (f *fakeSnapshots) Snapshot(ctx context.Context) (*Snapshot, error) {
	return f.snap, f.err
}

func TestCollector_Collect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postcard.db")
	if err := os.WriteFile(path, make([]byte, 4096), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m := New()
	c := NewCollector(m, &fakeSnapshots{snap: &Snapshot{CreditsRemaining: 750, SubscribersActive: 12}}, path, time.Hour)
	c.Collect(context.Background())

	if got := gaugeValue(t, m.CreditsRemaining); got != 750 {
		t.Errorf("credits = %v, want 750", got)
	}
	if got := gaugeValue(t, m.SubscribersActive); got != 12 {
		t.Errorf("subscribers = %v, want 12", got)
	}
	if got := gaugeValue(t, m.StorageUsedBytes); got != 4096 {
		t.Errorf("storage = %v, want 4096", got)
	}
	if got := gaugeValue(t, m.Goroutines); got < 1 {
		t.Errorf("goroutines = %v, want > 0", got)
	}
}

func TestCollector_SourceError(t *testing.T) {
	m := New()
	m.CreditsRemaining.Set(5)

	c := NewCollector(m, &fakeSnapshots{err: errors.New("db closed")}, "", time.Hour)
	c.Collect(context.Background())

	if got := gaugeValue(t, m.CreditsRemaining); got != 5 {
		t.Errorf("credits = %v, want previous value 5", got)
	}
}

func TestCollector_StartStop(t *testing.T) {
	m := New()
	c := NewCollector(m, nil, "", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Stop()

	if got := gaugeValue(t, m.UptimeSeconds); got <= 0 {
		t.Errorf("uptime = %v, want > 0", got)
	}
}
