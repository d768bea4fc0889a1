package app

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/campaign"
	"github.com/foxzi/postcard/internal/config"
	"github.com/foxzi/postcard/internal/credits"
	"github.com/foxzi/postcard/internal/metrics"
	"github.com/foxzi/postcard/internal/rule"
	"github.com/foxzi/postcard/internal/subscriber"
	"github.com/foxzi/postcard/internal/template"
)

// Stores groups the BoltDB-backed stores. The CLI opens them directly.
type Stores struct {
	Templates   *template.Storage
	Rules       *rule.Storage
	Subscribers *subscriber.Storage
	Campaigns   *campaign.Storage
	Credits     *credits.Ledger
}

var _ metrics.SnapshotProvider = (*Stores)(nil)

// OpenStores creates every store on db
func OpenStores(db *bolt.DB, cfg *config.Config) (*Stores, error) {
	var (
		s   Stores
		err error
	)

	if s.Templates, err = template.NewStorage(db); err != nil {
		return nil, fmt.Errorf("failed to create template storage: %w", err)
	}
	if s.Rules, err = rule.NewStorage(db); err != nil {
		return nil, fmt.Errorf("failed to create rule storage: %w", err)
	}
	if s.Subscribers, err = subscriber.NewStorage(db); err != nil {
		return nil, fmt.Errorf("failed to create subscriber storage: %w", err)
	}
	if s.Campaigns, err = campaign.NewStorage(db); err != nil {
		return nil, fmt.Errorf("failed to create campaign storage: %w", err)
	}
	if s.Credits, err = credits.NewLedger(db, cfg.Credits.Initial); err != nil {
		return nil, fmt.Errorf("failed to create credit ledger: %w", err)
	}

	return &s, nil
}

// Snapshot reports the remaining credits and active subscribers
func (s *Stores) Snapshot(ctx context.Context) (*metrics.Snapshot, error) {
	b, err := s.Credits.Balance(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.Subscribers.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &metrics.Snapshot{
		CreditsRemaining:  b.Remaining(),
		SubscribersActive: int64(counts[subscriber.StatusActive]),
	}, nil
}
