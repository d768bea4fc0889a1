package rule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/template"
)

var bucketRules = []byte("rules")

var (
	// ErrNotFound is returned when a rule does not exist
	ErrNotFound = errors.New("rule not found")
	// ErrInvalidKind is returned for an unknown rule kind
	ErrInvalidKind = errors.New("invalid rule kind")
)

// Storage persists rules in BoltDB
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new rule storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRules)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rule bucket: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create stores a new rule. Name and content default from the kind presets.
func (s *Storage) Create(ctx context.Context, r *Rule) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	if r.Name == "" {
		r.Name = Title(r.Kind)
	}
	if r.Input == (template.Input{}) {
		r.Input = Defaults(r.Kind)
	}
	r.Variant = template.ParseVariant(string(r.Variant))

	r.ID = uuid.New().String()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt

	return s.put(r)
}

// Get retrieves a rule by ID, returning nil if it does not exist
func (s *Storage) Get(ctx context.Context, id string) (*Rule, error) {
	var r *Rule
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRules).Get([]byte(id))
		if data == nil {
			return nil
		}
		r = &Rule{}
		return json.Unmarshal(data, r)
	})
	return r, err
}

// List returns rules ordered by creation time
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Rule, error) {
	var rules []*Rule
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRules).ForEach(func(k, v []byte) error {
			var r Rule
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			if filter.Kind != "" && r.Kind != filter.Kind {
				return nil
			}
			if filter.ActiveOnly && !r.Active {
				return nil
			}
			rules = append(rules, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules, nil
}

// ActiveByKind returns active rules triggered by kind
func (s *Storage) ActiveByKind(ctx context.Context, kind Kind) ([]*Rule, error) {
	return s.List(ctx, ListFilter{Kind: kind, ActiveOnly: true})
}

// Update replaces an existing rule
func (s *Storage) Update(ctx context.Context, r *Rule) error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, r.Kind)
	}
	existing, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	r.Variant = template.ParseVariant(string(r.Variant))
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()
	return s.put(r)
}

// Toggle flips the active flag of a rule and returns the updated rule
func (s *Storage) Toggle(ctx context.Context, id string) (*Rule, error) {
	var r Rule
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRules)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}

		r.Active = !r.Active
		r.UpdatedAt = time.Now()

		updated, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("failed to marshal rule: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes a rule by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRules).Delete([]byte(id))
	})
}

func (s *Storage) put(r *Rule) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRules).Put([]byte(r.ID), data)
	})
}
