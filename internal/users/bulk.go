package users

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/employdex/base-platform/internal/rbac"
)

// bulkColumns is the required CSV header, in order.
var bulkColumns = []string{"first_name", "last_name", "email", "mobile", "password"}

// RowError reports why one CSV line was skipped. Lines are 1-based and
// include the header.
type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// BulkResult summarizes a CSV import.
type BulkResult struct {
	Created int        `json:"created"`
	Failed  []RowError `json:"failed"`
}

// BulkCreate imports users from CSV in a single transaction. Rows that fail
// validation or collide with existing accounts are reported per line; valid
// rows are committed together with the default User role assigned.
func (s *Service) BulkCreate(ctx context.Context, actorID int64, r io.Reader) (*BulkResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("users: read csv header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	result := &BulkResult{Failed: []RowError{}}
	var created []int64

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		defaultRole, err := tx.RoleIDByName(ctx, rbac.RoleUser)
		if err != nil {
			return err
		}
		for line := 2; ; line++ {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				result.Failed = append(result.Failed, RowError{Line: line, Error: "malformed csv row"})
				continue
			}
			input, err := parseBulkRow(record)
			if err != nil {
				result.Failed = append(result.Failed, RowError{Line: line, Error: err.Error()})
				continue
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			id, inserted, err := tx.CreateUserIfAbsent(ctx, input, string(hash))
			if err != nil {
				return err
			}
			if !inserted {
				result.Failed = append(result.Failed, RowError{Line: line, Error: "email or mobile already registered"})
				continue
			}
			if err := tx.ReplaceUserRoles(ctx, id, []int64{defaultRole}); err != nil {
				return err
			}
			created = append(created, id)
		}
	})
	if err != nil {
		return nil, err
	}

	result.Created = len(created)
	s.record(ctx, actorID, "user.bulk_import", actorID, map[string]any{
		"created": result.Created,
		"failed":  len(result.Failed),
	})
	return result, nil
}

func checkHeader(header []string) error {
	if len(header) != len(bulkColumns) {
		return fmt.Errorf("users: csv header must be %s", strings.Join(bulkColumns, ","))
	}
	for i, col := range bulkColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return fmt.Errorf("users: csv header must be %s", strings.Join(bulkColumns, ","))
		}
	}
	return nil
}

func parseBulkRow(record []string) (Input, error) {
	if len(record) != len(bulkColumns) {
		return Input{}, fmt.Errorf("expected %d columns, got %d", len(bulkColumns), len(record))
	}
	input := Input{
		FirstName: strings.TrimSpace(record[0]),
		LastName:  strings.TrimSpace(record[1]),
		Email:     strings.ToLower(strings.TrimSpace(record[2])),
		Mobile:    strings.TrimSpace(record[3]),
		Password:  record[4],
	}
	switch {
	case input.FirstName == "":
		return Input{}, fmt.Errorf("first_name is required")
	case input.Email == "" || !strings.Contains(input.Email, "@"):
		return Input{}, fmt.Errorf("invalid email")
	case len(input.Mobile) < 7:
		return Input{}, fmt.Errorf("invalid mobile")
	case len(input.Password) < 8:
		return Input{}, fmt.Errorf("password must be at least 8 characters")
	}
	return input, nil
}
