package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/email"
)

var (
	bucketSubscribers = []byte("subscribers")
	bucketEmails      = []byte("subscriber_emails")
)

var (
	// ErrNotFound is returned when a subscriber does not exist
	ErrNotFound = errors.New("subscriber not found")
	// ErrExists is returned when the email is already subscribed
	ErrExists = errors.New("subscriber already exists")
)

// Storage persists subscribers in BoltDB with a unique email index
type Storage struct {
	db *bolt.DB
}

var _ Directory = (*Storage)(nil)

// NewStorage creates a new subscriber storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSubscribers); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketEmails)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber buckets: %w", err)
	}
	return &Storage{db: db}, nil
}

// Add stores a new subscriber. The email is normalized before indexing.
func (s *Storage) Add(ctx context.Context, sub *Subscriber) error {
	addr, err := email.Normalize(sub.Email)
	if err != nil {
		return fmt.Errorf("%w: %q", err, sub.Email)
	}
	sub.Email = addr
	sub.Name = strings.TrimSpace(sub.Name)
	if sub.Status == "" {
		sub.Status = StatusActive
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return s.add(tx, sub)
	})
}

func (s *Storage) add(tx *bolt.Tx, sub *Subscriber) error {
	emails := tx.Bucket(bucketEmails)
	if emails.Get([]byte(sub.Email)) != nil {
		return fmt.Errorf("%w: %s", ErrExists, sub.Email)
	}

	sub.ID = uuid.New().String()
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber: %w", err)
	}
	if err := tx.Bucket(bucketSubscribers).Put([]byte(sub.ID), data); err != nil {
		return err
	}
	return emails.Put([]byte(sub.Email), []byte(sub.ID))
}

// Get retrieves a subscriber by ID, returning nil if it does not exist
func (s *Storage) Get(ctx context.Context, id string) (*Subscriber, error) {
	var sub *Subscriber
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSubscribers).Get([]byte(id))
		if data == nil {
			return nil
		}
		sub = &Subscriber{}
		return json.Unmarshal(data, sub)
	})
	return sub, err
}

// GetByEmail retrieves a subscriber by address, returning nil if unknown
func (s *Storage) GetByEmail(ctx context.Context, addr string) (*Subscriber, error) {
	norm, err := email.Normalize(addr)
	if err != nil {
		return nil, nil
	}

	var sub *Subscriber
	err = s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketEmails).Get([]byte(norm))
		if id == nil {
			return nil
		}
		data := tx.Bucket(bucketSubscribers).Get(id)
		if data == nil {
			return nil
		}
		sub = &Subscriber{}
		return json.Unmarshal(data, sub)
	})
	return sub, err
}

// List returns subscribers in email order
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Subscriber, error) {
	var subs []*Subscriber
	search := strings.ToLower(filter.Search)

	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketSubscribers)
		c := tx.Bucket(bucketEmails).Cursor()

		skipped := 0
		for k, id := c.First(); k != nil; k, id = c.Next() {
			data := records.Get(id)
			if data == nil {
				continue
			}
			var sub Subscriber
			if err := json.Unmarshal(data, &sub); err != nil {
				continue
			}

			if filter.Status != "" && sub.Status != filter.Status {
				continue
			}
			if search != "" &&
				!strings.Contains(sub.Email, search) &&
				!strings.Contains(strings.ToLower(sub.Name), search) {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			subs = append(subs, &sub)
			if filter.Limit > 0 && len(subs) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return subs, err
}

// Active returns every subscriber that is not inactive
func (s *Storage) Active(ctx context.Context) ([]*Subscriber, error) {
	return s.List(ctx, ListFilter{Status: StatusActive})
}

// Count returns the number of subscribers per status
func (s *Storage) Count(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubscribers).ForEach(func(k, v []byte) error {
			var sub Subscriber
			if err := json.Unmarshal(v, &sub); err != nil {
				return nil
			}
			counts[sub.Status]++
			return nil
		})
	})
	return counts, err
}

// SetStatus changes the status of a subscriber
func (s *Storage) SetStatus(ctx context.Context, id string, status Status) (*Subscriber, error) {
	var sub Subscriber
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubscribers)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &sub); err != nil {
			return err
		}

		sub.Status = status
		sub.UpdatedAt = time.Now()

		updated, err := json.Marshal(&sub)
		if err != nil {
			return fmt.Errorf("failed to marshal subscriber: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Delete removes a subscriber by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubscribers)
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		var sub Subscriber
		if err := json.Unmarshal(data, &sub); err != nil {
			return err
		}
		if err := tx.Bucket(bucketEmails).Delete([]byte(sub.Email)); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
}
