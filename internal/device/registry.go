package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory DeviceRegistry in front of a Repository.
//
// Reads never touch the repository. Upsert updates memory first and then
// persists, so the running process keeps the new value even when the
// write fails. All methods are safe for concurrent use.
type Registry struct {
	repo      Repository
	entries   map[string]Settings
	mu        sync.RWMutex
	persistMu sync.Mutex
	logger    Logger
}

// NewRegistry creates an empty registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		entries: make(map[string]Settings),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load replaces the cache with the repository contents.
//
// A missing store yields an empty registry. A corrupt or unreadable one
// is logged and also yields an empty registry; owners re-register through
// the settings form. Only context cancellation is returned.
func (r *Registry) Load(ctx context.Context) error {
	list, err := r.repo.List(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("loading registry: %w", ctxErr)
		}
		if errors.Is(err, ErrCorruptRegistry) {
			r.logger.Error("device registry is corrupt, starting empty", "error", err)
		} else {
			r.logger.Error("device registry unreadable, starting empty", "error", err)
		}
		list = nil
	}

	entries := make(map[string]Settings, len(list))
	for _, s := range list {
		if s.MACAddress == "" {
			r.logger.Warn("skipping registry entry without mac_address", "user_alias", s.UserAlias)
			continue
		}
		entries[s.MACAddress] = s
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	r.logger.Info("device registry loaded", "count", len(entries))
	return nil
}

// Get returns the entry for mac, matched exactly.
func (r *Registry) Get(mac string) (Settings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.entries[mac]
	return s, ok
}

// Upsert inserts or fully replaces the entry keyed by s.MACAddress, then
// persists it. A persistence failure is returned wrapped in
// ErrPersistFailed; the cache keeps the new entry regardless.
func (r *Registry) Upsert(ctx context.Context, s Settings) error {
	if err := ValidateSettings(s); err != nil {
		return err
	}

	// persistMu orders repository writes the same way as cache updates.
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	_, existed := r.entries[s.MACAddress]
	r.entries[s.MACAddress] = s
	r.mu.Unlock()

	r.logger.Debug("device settings updated",
		"mac", s.MACAddress,
		"visibility", s.Visibility,
		"new", !existed,
	)

	if err := r.repo.Upsert(ctx, s); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return nil
}

// Count returns the number of known entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns all entries sorted by MAC address.
func (r *Registry) List() []Settings {
	r.mu.RLock()
	list := make([]Settings, 0, len(r.entries))
	for _, s := range r.entries {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sortByMAC(list)
	return list
}

// Stats counts entries per visibility. Entries with an empty visibility
// are counted under "".
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:        len(r.entries),
		ByVisibility: make(map[Visibility]int, len(Visibilities())),
	}
	for _, s := range r.entries {
		stats.ByVisibility[s.Visibility]++
	}
	return stats
}

func sortByMAC(list []Settings) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].MACAddress < list[j].MACAddress
	})
}
