// Package credits tracks the email sending allowance.
package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCredits = []byte("credits")
	keyBalance    = []byte("balance")
)

var (
	// ErrInsufficient is returned when a consume exceeds the remaining credits
	ErrInsufficient = errors.New("insufficient email credits")
	// ErrInvalidAmount is returned for non-positive amounts
	ErrInvalidAmount = errors.New("credit amount must be positive")
	// ErrUnknownTier is returned by GrantTier for an unknown tier
	ErrUnknownTier = errors.New("unknown credit tier")
)

// Balance is the current allowance
type Balance struct {
	Total     int64     `json:"total"`
	Used      int64     `json:"used"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Remaining returns unused credits, never negative
func (b Balance) Remaining() int64 {
	return max(0, b.Total-b.Used)
}

// PercentUsed returns the used share in percent, capped at 100
func (b Balance) PercentUsed() float64 {
	if b.Total <= 0 {
		if b.Used > 0 {
			return 100
		}
		return 0
	}
	return min(100, float64(b.Used)/float64(b.Total)*100)
}

// Tier is a purchasable credit bundle
type Tier struct {
	ID      string `json:"id"`
	Credits int64  `json:"credits"`
	Price   string `json:"price"`
}

// Tiers returns the available credit bundles
func Tiers() []Tier {
	return []Tier{
		{ID: "starter", Credits: 1000, Price: "$20"},
		{ID: "growth", Credits: 5000, Price: "$50"},
		{ID: "scale", Credits: 50000, Price: "$200"},
	}
}

// Ledger stores the balance in BoltDB
type Ledger struct {
	db *bolt.DB
}

// NewLedger creates a ledger. initial is granted once when no balance exists.
func NewLedger(db *bolt.DB, initial int64) (*Ledger, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketCredits)
		if err != nil {
			return err
		}
		if bucket.Get(keyBalance) != nil {
			return nil
		}
		return putBalance(bucket, Balance{Total: initial, UpdatedAt: time.Now()})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credits bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Balance returns the current balance
func (l *Ledger) Balance(ctx context.Context) (Balance, error) {
	var b Balance
	err := l.db.View(func(tx *bolt.Tx) error {
		var err error
		b, err = getBalance(tx.Bucket(bucketCredits))
		return err
	})
	return b, err
}

// Grant adds n credits. No payment is taken.
func (l *Ledger) Grant(ctx context.Context, n int64) (Balance, error) {
	if n <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return l.update(func(b *Balance) error {
		b.Total += n
		return nil
	})
}

// GrantTier adds the credits of the tier with id
func (l *Ledger) GrantTier(ctx context.Context, id string) (Balance, error) {
	for _, tier := range Tiers() {
		if tier.ID == id {
			return l.Grant(ctx, tier.Credits)
		}
	}
	return Balance{}, fmt.Errorf("%w: %q", ErrUnknownTier, id)
}

// Consume uses n credits, all or nothing
func (l *Ledger) Consume(ctx context.Context, n int64) (Balance, error) {
	if n <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return l.update(func(b *Balance) error {
		if b.Remaining() < n {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficient, n, b.Remaining())
		}
		b.Used += n
		return nil
	})
}

// Refund returns n previously consumed credits
func (l *Ledger) Refund(ctx context.Context, n int64) (Balance, error) {
	if n <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return l.update(func(b *Balance) error {
		b.Used = max(0, b.Used-n)
		return nil
	})
}

func (l *Ledger) update(fn func(b *Balance) error) (Balance, error) {
	var b Balance
	err := l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCredits)
		var err error
		if b, err = getBalance(bucket); err != nil {
			return err
		}
		if err := fn(&b); err != nil {
			return err
		}
		b.UpdatedAt = time.Now()
		return putBalance(bucket, b)
	})
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func getBalance(bucket *bolt.Bucket) (Balance, error) {
	var b Balance
	data := bucket.Get(keyBalance)
	if data == nil {
		return b, nil
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	return b, nil
}

func putBalance(bucket *bolt.Bucket, b Balance) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	return bucket.Put(keyBalance, data)
}
