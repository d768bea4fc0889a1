package subscriber

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/email"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "subscribers.db"), 0600, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewStorage(db)
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	return storage
}

func TestStorage_Add(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	sub := &Subscriber{Email: " Jane@Example.COM ", Name: "Jane Smith"}
	if err := storage.Add(ctx, sub); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if sub.ID == "" || sub.Email != "jane@example.com" || sub.Status != StatusActive {
		t.Errorf("Add() = %+v", sub)
	}

	if err := storage.Add(ctx, &Subscriber{Email: "jane@example.com"}); !errors.Is(err, ErrExists) {
		t.Errorf("Add() duplicate error = %v, want ErrExists", err)
	}
	if err := storage.Add(ctx, &Subscriber{Email: "nope"}); !errors.Is(err, email.ErrInvalidAddress) {
		t.Errorf("Add() invalid error = %v, want ErrInvalidAddress", err)
	}

	got, err := storage.GetByEmail(ctx, "JANE@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got == nil || got.ID != sub.ID {
		t.Errorf("GetByEmail() = %+v, want %s", got, sub.ID)
	}
}

func TestStorage_ActiveExcludesInactive(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, sub := range []*Subscriber{
		{Email: "a@example.com"},
		{Email: "b@example.com", Status: StatusInactive},
		{Email: "c@example.com"},
	} {
		if err := storage.Add(ctx, sub); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	active, err := storage.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Active() = %d subscribers, want 2", len(active))
	}
	for _, sub := range active {
		if sub.Status == StatusInactive {
			t.Errorf("Active() returned inactive %s", sub.Email)
		}
	}

	counts, err := storage.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if counts[StatusActive] != 2 || counts[StatusInactive] != 1 {
		t.Errorf("Count() = %v", counts)
	}
}

func TestStorage_List(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, sub := range []*Subscriber{
		{Email: "zoe@example.com", Name: "Zoe"},
		{Email: "adam@example.com", Name: "Adam Smith"},
		{Email: "mia@shop.test", Name: "Mia Smith", Status: StatusInactive},
	} {
		if err := storage.Add(ctx, sub); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"all in email order", ListFilter{}, []string{"adam@example.com", "mia@shop.test", "zoe@example.com"}},
		{"status", ListFilter{Status: StatusInactive}, []string{"mia@shop.test"}},
		{"search name", ListFilter{Search: "smith"}, []string{"adam@example.com", "mia@shop.test"}},
		{"search email", ListFilter{Search: "shop.test"}, []string{"mia@shop.test"}},
		{"limit offset", ListFilter{Offset: 1, Limit: 1}, []string{"mia@shop.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := storage.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var got []string
			for _, sub := range list {
				got = append(got, sub.Email)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorage_SetStatusAndDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	sub := &Subscriber{Email: "a@example.com"}
	if err := storage.Add(ctx, sub); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	updated, err := storage.SetStatus(ctx, sub.ID, StatusInactive)
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if updated.Status != StatusInactive {
		t.Errorf("SetStatus() status = %s", updated.Status)
	}
	if _, err := storage.SetStatus(ctx, "missing", StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus() missing error = %v, want ErrNotFound", err)
	}

	if err := storage.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := storage.GetByEmail(ctx, "a@example.com"); got != nil {
		t.Error("Delete() kept email index")
	}
	// The address can be subscribed again once deleted.
	if err := storage.Add(ctx, &Subscriber{Email: "a@example.com"}); err != nil {
		t.Errorf("Add() after delete error = %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"active":   StatusActive,
		"inactive": StatusInactive,
		"":         StatusActive,
		"paused":   StatusActive,
	}
	for in, want := range tests {
		if got := ParseStatus(in); got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
