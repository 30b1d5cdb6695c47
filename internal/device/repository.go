package device

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Repository persists registry entries.
type Repository interface {
	// List returns every stored entry. A store that does not exist yet is
	// empty, not an error. Unparseable data returns ErrCorruptRegistry.
	List(ctx context.Context) ([]Settings, error)

	// Upsert stores s keyed by s.MACAddress, replacing any prior entry.
	Upsert(ctx context.Context, s Settings) error
}

const (
	registryDirPermissions  = 0750
	registryFilePermissions = 0600

	// CorruptSuffix is appended to a registry file that failed to parse;
	// the original bytes are kept next to the fresh file for recovery.
	CorruptSuffix = ".corrupt"
)

// FileRepository stores the registry as one JSON array file that is
// rewritten in full on every upsert.
//
// The rewrite goes to a temporary file in the same directory which is
// then renamed over the original, so readers never see a partial file.
type FileRepository struct {
	path string

	mu      sync.Mutex
	entries map[string]Settings
	loaded  bool
}

// NewFileRepository creates a repository for the file at path. The file
// and its directory are created on the first upsert.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path:    path,
		entries: make(map[string]Settings),
	}
}

// Path returns the registry file path.
func (r *FileRepository) Path() string {
	return r.path
}

// List reads the registry file. A corrupt file is moved aside to
// path+CorruptSuffix so the next upsert starts a clean file.
func (r *FileRepository) List(ctx context.Context) ([]Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// load replaces r.entries with the file contents. r.mu must be held.
// On any error r.entries is left empty.
func (r *FileRepository) load() ([]Settings, error) {
	r.entries = make(map[string]Settings)
	r.loaded = true

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var list []Settings
	if err := json.Unmarshal(data, &list); err != nil {
		corruptErr := fmt.Errorf("%w: %s: %w", ErrCorruptRegistry, r.path, err)
		if renameErr := os.Rename(r.path, r.path+CorruptSuffix); renameErr != nil {
			return nil, errors.Join(corruptErr, renameErr)
		}
		return nil, corruptErr
	}

	for _, s := range list {
		r.entries[s.MACAddress] = s
	}
	return list, nil
}

// Upsert replaces the entry and rewrites the whole file.
func (r *FileRepository) Upsert(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Without a prior List the rewrite would drop everything else in the
	// file. Load errors leave an empty set, same as Registry.Load.
	if !r.loaded {
		_, _ = r.load() //nolint:errcheck // Reported by List during Registry.Load
	}

	// The entry stays in r.entries even if the flush fails: the registry
	// keeps it live, so the next successful flush must write it too.
	r.entries[s.MACAddress] = s
	return r.flush()
}

func (r *FileRepository) flush() error {
	list := make([]Settings, 0, len(r.entries))
	for _, s := range r.entries {
		list = append(list, s)
	}
	sortByMAC(list)

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, registryDirPermissions); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing registry file: %w", err)
	}
	if err := os.Chmod(tmpName, registryFilePermissions); err != nil {
		return fmt.Errorf("setting registry file permissions: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

// SQLiteRepository stores entries in the device_settings table created
// by the embedded migrations.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all rows ordered by MAC address.
func (r *SQLiteRepository) List(ctx context.Context) ([]Settings, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac_address, user_alias, device_alias, visibility, last_changed
		FROM device_settings
		ORDER BY mac_address`)
	if err != nil {
		return nil, fmt.Errorf("querying device settings: %w", err)
	}
	defer rows.Close()

	var list []Settings
	for rows.Next() {
		var s Settings
		var visibility string
		if err := rows.Scan(&s.MACAddress, &s.UserAlias, &s.DeviceAlias, &visibility, &s.LastChanged); err != nil {
			return nil, fmt.Errorf("%w: scanning device_settings row: %w", ErrCorruptRegistry, err)
		}
		s.Visibility = Visibility(visibility)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device settings: %w", err)
	}
	return list, nil
}

// Upsert inserts the row or replaces every column of the existing one.
func (r *SQLiteRepository) Upsert(ctx context.Context, s Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_settings (mac_address, user_alias, device_alias, visibility, last_changed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mac_address) DO UPDATE SET
			user_alias = excluded.user_alias,
			device_alias = excluded.device_alias,
			visibility = excluded.visibility,
			last_changed = excluded.last_changed`,
		s.MACAddress, s.UserAlias, s.DeviceAlias, string(s.Visibility), s.LastChanged,
	)
	if err != nil {
		return fmt.Errorf("upserting device settings: %w", err)
	}
	return nil
}
