package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSandbox = []byte("sandbox")

// Captured is a message held by the sandbox gateway
type Captured struct {
	Message
	Raw        []byte    `json:"raw,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Sandbox stores messages in BoltDB instead of delivering them
type Sandbox struct {
	db  *bolt.DB
	now func() time.Time
}

// NewSandbox creates a sandbox gateway
func NewSandbox(db *bolt.DB) (*Sandbox, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSandbox)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox bucket: %w", err)
	}
	return &Sandbox{db: db, now: time.Now}, nil
}

// Name returns the gateway name
func (s *Sandbox) Name() string { return "sandbox" }

// Send captures msg
func (s *Sandbox) Send(ctx context.Context, msg *Message) error {
	now := s.now()
	// Bytes assigns msg.ID when unset, so it runs before the copy.
	raw := msg.Bytes(now)
	c := Captured{Message: *msg, Raw: raw, CapturedAt: now}

	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to marshal captured message: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSandbox).Put(sandboxKey(c.CapturedAt, c.ID), data)
	})
}

// List returns captured messages newest first, without raw bodies
func (s *Sandbox) List(ctx context.Context, limit int) ([]*Captured, error) {
	var list []*Captured
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var m Captured
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			m.Raw = nil
			list = append(list, &m)
			if limit > 0 && len(list) >= limit {
				break
			}
		}
		return nil
	})
	return list, err
}

// Get returns a captured message by ID, or nil if unknown
func (s *Sandbox) Get(ctx context.Context, id string) (*Captured, error) {
	var found *Captured
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSandbox).ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var m Captured
			if err := json.Unmarshal(v, &m); err != nil {
				return nil
			}
			if m.ID == id {
				found = &m
			}
			return nil
		})
	})
	return found, err
}

// Clear removes every captured message and returns how many were removed
func (s *Sandbox) Clear(ctx context.Context) (int, error) {
	var count int
	err := s.db.Update(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketSandbox).Stats().KeyN
		if err := tx.DeleteBucket(bucketSandbox); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketSandbox)
		return err
	})
	return count, err
}

// sandboxKey orders captured messages by time
func sandboxKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", t.UnixNano(), id))
}
