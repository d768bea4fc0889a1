package subscriber

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/postcard/internal/email"
)

// maxImportErrors bounds the error list returned by ImportCSV
const maxImportErrors = 50

// ImportCSV adds subscribers from r. Columns are email, name and an optional
// status. A header row naming an "email" column is detected and skipped.
// Duplicates and invalid rows are counted as skipped; the import is applied
// in a single transaction.
func (s *Storage) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	cols := columns{email: 0, name: 1, status: 2}
	result := &ImportResult{}

	err := s.db.Update(func(tx *bolt.Tx) error {
		line := 0
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read csv: %w", err)
			}
			line++

			if line == 1 {
				if header, ok := parseHeader(record); ok {
					cols = header
					continue
				}
			}

			result.Total++
			sub, err := cols.subscriber(record)
			if err != nil {
				result.skip(line, err)
				continue
			}
			if err := s.add(tx, sub); err != nil {
				result.skip(line, err)
				continue
			}
			result.Imported++
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ImportResult) skip(line int, err error) {
	r.Skipped++
	if len(r.Errors) < maxImportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("line %d: %v", line, err))
	}
}

type columns struct {
	email, name, status int
}

func parseHeader(record []string) (columns, bool) {
	cols := columns{email: -1, name: -1, status: -1}
	for i, field := range record {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "email", "e-mail", "email address":
			cols.email = i
		case "name", "full name":
			cols.name = i
		case "status":
			cols.status = i
		}
	}
	return cols, cols.email >= 0
}

func (c columns) subscriber(record []string) (*Subscriber, error) {
	addr, err := email.Normalize(field(record, c.email))
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		Email:  addr,
		Name:   field(record, c.name),
		Status: ParseStatus(strings.ToLower(field(record, c.status))),
	}, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
