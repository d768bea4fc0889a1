package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEvents = []byte("stripe_events")

// Processed records the outcome of a handled event
type Processed struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Done       bool      `json:"done"`
	ReceivedAt time.Time `json:"received_at"`
}

// EventLog remembers event IDs so Stripe redeliveries are not re-sent
type EventLog struct {
	db  *bolt.DB
	now func() time.Time
}

// NewEventLog creates the event log bucket
func NewEventLog(db *bolt.DB) (*EventLog, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create events bucket: %w", err)
	}
	return &EventLog{db: db, now: time.Now}, nil
}

// Claim marks ev as being processed. It returns false if ev was seen before.
func (l *EventLog) Claim(ctx context.Context, ev *Event) (bool, error) {
	claimed := false
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b.Get([]byte(ev.ID)) != nil {
			return nil
		}
		data, err := json.Marshal(Processed{ID: ev.ID, Type: ev.Type, ReceivedAt: l.now()})
		if err != nil {
			return err
		}
		claimed = true
		return b.Put([]byte(ev.ID), data)
	})
	return claimed, err
}

// Complete stores the final counts of a claimed event
func (l *EventLog) Complete(ctx context.Context, id string, sent, failed int) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		var p Processed
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		p.Sent, p.Failed, p.Done = sent, failed, true
		out, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

// Release forgets a claim so a redelivery is processed again
func (l *EventLog) Release(ctx context.Context, id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).Delete([]byte(id))
	})
}

// Get returns the record for id, or nil
func (l *EventLog) Get(ctx context.Context, id string) (*Processed, error) {
	var p *Processed
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEvents).Get([]byte(id))
		if data == nil {
			return nil
		}
		p = &Processed{}
		return json.Unmarshal(data, p)
	})
	return p, err
}
