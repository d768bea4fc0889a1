package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketCampaigns = []byte("campaigns")

// Storage provides campaign storage operations
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new campaign storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCampaigns)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create campaigns bucket: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create stores a new campaign and assigns its ID
func (s *Storage) Create(ctx context.Context, c *Campaign) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = StatusDraft
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, c)
	})
}

// Get retrieves a campaign by ID, returning nil if it does not exist
func (s *Storage) Get(ctx context.Context, id string) (*Campaign, error) {
	var c *Campaign
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		c, err = get(tx, id)
		return err
	})
	return c, err
}

// List returns campaigns newest first
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Campaign, error) {
	list, err := s.scan(func(c *Campaign) bool {
		return filter.Status == "" || c.Status == filter.Status
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

// Due returns scheduled campaigns whose time has come, oldest first
func (s *Storage) Due(ctx context.Context, now time.Time) ([]*Campaign, error) {
	list, err := s.scan(func(c *Campaign) bool {
		return c.Status == StatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ScheduledAt.Before(*list[j].ScheduledAt)
	})
	return list, nil
}

// Update replaces an existing campaign
func (s *Storage) Update(ctx context.Context, c *Campaign) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := get(tx, c.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrNotFound
		}
		c.CreatedAt = existing.CreatedAt
		c.UpdatedAt = time.Now()
		return put(tx, c)
	})
}

// Transition moves a campaign from one status to another atomically.
// ErrStatusChanged is returned when the stored status is not from.
func (s *Storage) Transition(ctx context.Context, id string, from, to Status) (*Campaign, error) {
	var c *Campaign
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		c, err = get(tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotFound
		}
		if c.Status != from {
			return fmt.Errorf("%w: %s is %s", ErrStatusChanged, id, c.Status)
		}
		c.Status = to
		c.UpdatedAt = time.Now()
		return put(tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a campaign by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).Delete([]byte(id))
	})
}

func (s *Storage) scan(keep func(*Campaign) bool) ([]*Campaign, error) {
	var list []*Campaign
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCampaigns).ForEach(func(k, v []byte) error {
			var c Campaign
			if err := json.Unmarshal(v, &c); err != nil {
				return nil
			}
			if keep(&c) {
				list = append(list, &c)
			}
			return nil
		})
	})
	return list, err
}

func get(tx *bolt.Tx, id string) (*Campaign, error) {
	data := tx.Bucket(bucketCampaigns).Get([]byte(id))
	if data == nil {
		return nil, nil
	}
	var c Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func put(tx *bolt.Tx, c *Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign: %w", err)
	}
	return tx.Bucket(bucketCampaigns).Put([]byte(c.ID), data)
}
