// Package audit records every accepted settings submission so owners can
// see who changed a device and when.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/presence-core/internal/device"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Change is one accepted settings submission.
type Change struct {
	ID          string            `json:"id"`
	MACAddress  string            `json:"mac_address"`
	Source      string            `json:"source"`
	UserAlias   string            `json:"user_alias"`
	DeviceAlias string            `json:"device_alias"`
	Visibility  device.Visibility `json:"visibility"`

	// Previous is empty when the submission created the entry.
	Previous  device.Visibility `json:"previous_visibility,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewChange describes the replacement of prev by next, submitted from source.
func NewChange(source string, prev device.Settings, existed bool, next device.Settings) *Change {
	c := &Change{
		MACAddress:  next.MACAddress,
		Source:      source,
		UserAlias:   next.UserAlias,
		DeviceAlias: next.DeviceAlias,
		Visibility:  next.Visibility,
	}
	if existed {
		c.Previous = prev.Visibility
	}
	return c
}

// Filter controls which changes to return.
type Filter struct {
	MACAddress string // optional: one device only
	Limit      int    // default DefaultLimit, max MaxLimit
	Offset     int
}

// ListResult is one page of changes, newest first.
type ListResult struct {
	Changes []Change `json:"changes"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository stores settings changes.
type Repository interface {
	Create(ctx context.Context, c *Change) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores changes in the settings_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over a migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts c. ID and CreatedAt are filled in if empty.
func (r *SQLiteRepository) Create(ctx context.Context, c *Change) error {
	if c.ID == "" {
		c.ID = "chg-" + uuid.NewString()[:8]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings_history (id, mac_address, source, user_alias, device_alias, visibility, previous_visibility, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MACAddress, c.Source, c.UserAlias, c.DeviceAlias,
		string(c.Visibility), nullableString(string(c.Previous)),
		c.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting settings change: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns changes matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clamp(filter)

	var conditions []string
	var args []any
	if filter.MACAddress != "" {
		conditions = append(conditions, "mac_address = ?")
		args = append(args, filter.MACAddress)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM settings_history %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting settings changes: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, mac_address, source, user_alias, device_alias, visibility, previous_visibility, created_at
		 FROM settings_history %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying settings changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var (
			c          Change
			visibility string
			previous   sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&c.ID, &c.MACAddress, &c.Source, &c.UserAlias,
			&c.DeviceAlias, &visibility, &previous, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning settings change: %w", err)
		}
		c.Visibility = device.Visibility(visibility)
		if previous.Valid {
			c.Previous = device.Visibility(previous.String)
		}

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing settings change timestamp %q: %w", createdAt, err)
		}
		c.CreatedAt = t

		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings changes: %w", err)
	}

	return &ListResult{
		Changes: changes,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func clamp(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
