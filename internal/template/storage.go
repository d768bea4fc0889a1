package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTemplates     = []byte("templates")
	bucketTemplateNames = []byte("template_names")
)

var (
	// ErrNotFound is returned when a template does not exist
	ErrNotFound = errors.New("template not found")
	// ErrNameRequired is returned when a template has no name
	ErrNameRequired = errors.New("template name is required")
	// ErrNameTaken is returned when a template name is already used
	ErrNameTaken = errors.New("template name already exists")
)

// Storage provides template storage operations
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new template storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTemplates); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketTemplateNames); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template buckets: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create stores a new template and assigns its ID
func (s *Storage) Create(ctx context.Context, tmpl *Template) error {
	if strings.TrimSpace(tmpl.Name) == "" {
		return ErrNameRequired
	}
	tmpl.Variant = ParseVariant(string(tmpl.Variant))

	return s.db.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)
		names := tx.Bucket(bucketTemplateNames)

		if existing := names.Get([]byte(tmpl.Name)); existing != nil {
			return fmt.Errorf("%w: %q", ErrNameTaken, tmpl.Name)
		}

		tmpl.ID = uuid.New().String()
		tmpl.Version = 1
		tmpl.CreatedAt = time.Now()
		tmpl.UpdatedAt = tmpl.CreatedAt

		data, err := json.Marshal(tmpl)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}

		if err := templates.Put([]byte(tmpl.ID), data); err != nil {
			return err
		}
		return names.Put([]byte(tmpl.Name), []byte(tmpl.ID))
	})
}

// Get retrieves a template by ID, returning nil if it does not exist
func (s *Storage) Get(ctx context.Context, id string) (*Template, error) {
	var tmpl *Template

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTemplates).Get([]byte(id))
		if data == nil {
			return nil
		}
		tmpl = &Template{}
		return json.Unmarshal(data, tmpl)
	})

	return tmpl, err
}

// GetByName retrieves a template by name, returning nil if it does not exist
func (s *Storage) GetByName(ctx context.Context, name string) (*Template, error) {
	var tmpl *Template

	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketTemplateNames).Get([]byte(name))
		if id == nil {
			return nil
		}
		data := tx.Bucket(bucketTemplates).Get(id)
		if data == nil {
			return nil
		}
		tmpl = &Template{}
		return json.Unmarshal(data, tmpl)
	})

	return tmpl, err
}

// List returns templates with optional filtering
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	var templates []*Template
	search := strings.ToLower(filter.Search)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTemplates).Cursor()

		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var tmpl Template
			if err := json.Unmarshal(v, &tmpl); err != nil {
				continue
			}

			if filter.Kind != "" && tmpl.Kind != filter.Kind {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(tmpl.Name), search) &&
				!strings.Contains(strings.ToLower(tmpl.Description), search) {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			templates = append(templates, &tmpl)
			if filter.Limit > 0 && len(templates) >= filter.Limit {
				break
			}
		}
		return nil
	})

	return templates, err
}

// Update replaces an existing template and bumps its version
func (s *Storage) Update(ctx context.Context, tmpl *Template) error {
	if strings.TrimSpace(tmpl.Name) == "" {
		return ErrNameRequired
	}
	tmpl.Variant = ParseVariant(string(tmpl.Variant))

	return s.db.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)
		names := tx.Bucket(bucketTemplateNames)

		existingData := templates.Get([]byte(tmpl.ID))
		if existingData == nil {
			return ErrNotFound
		}

		var existing Template
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}

		if existing.Name != tmpl.Name {
			if existingID := names.Get([]byte(tmpl.Name)); existingID != nil {
				return fmt.Errorf("%w: %q", ErrNameTaken, tmpl.Name)
			}
			if err := names.Delete([]byte(existing.Name)); err != nil {
				return err
			}
			if err := names.Put([]byte(tmpl.Name), []byte(tmpl.ID)); err != nil {
				return err
			}
		}

		tmpl.Version = existing.Version + 1
		tmpl.CreatedAt = existing.CreatedAt
		tmpl.UpdatedAt = time.Now()

		data, err := json.Marshal(tmpl)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}
		return templates.Put([]byte(tmpl.ID), data)
	})
}

// Delete removes a template by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		templates := tx.Bucket(bucketTemplates)

		data := templates.Get([]byte(id))
		if data == nil {
			return nil // Already deleted
		}

		var tmpl Template
		if err := json.Unmarshal(data, &tmpl); err != nil {
			return err
		}

		if err := tx.Bucket(bucketTemplateNames).Delete([]byte(tmpl.Name)); err != nil {
			return err
		}
		return templates.Delete([]byte(id))
	})
}

// Stats returns template counts overall and per kind
func (s *Storage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByKind: make(map[string]int64)}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTemplates).ForEach(func(k, v []byte) error {
			var tmpl Template
			if err := json.Unmarshal(v, &tmpl); err != nil {
				return nil
			}
			stats.Total++
			if tmpl.Kind != "" {
				stats.ByKind[tmpl.Kind]++
			}
			return nil
		})
	})

	return stats, err
}
