package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/presence-core/internal/device"
	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/database"
	_ "github.com/nerrad567/presence-core/migrations" // registers settings_history schema
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestNewChange(t *testing.T) {
	prev := device.Settings{MACAddress: "AA", Visibility: device.VisibilityAnon}
	next := device.Settings{MACAddress: "AA", UserAlias: "alice", DeviceAlias: "phone", Visibility: device.VisibilityAll}

	c := NewChange("10.0.0.5", prev, true, next)
	if c.Previous != device.VisibilityAnon || c.Visibility != device.VisibilityAll {
		t.Errorf("visibility %q -> %q, want anon -> all", c.Previous, c.Visibility)
	}
	if c.Source != "10.0.0.5" || c.UserAlias != "alice" {
		t.Errorf("change = %+v", c)
	}

	created := NewChange("10.0.0.5", device.Settings{}, false, next)
	if created.Previous != "" {
		t.Errorf("Previous = %q for a new entry, want empty", created.Previous)
	}
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t)
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	entries := []*Change{
		{MACAddress: "AA", Source: "10.0.0.5", Visibility: device.VisibilityAll, CreatedAt: base},
		{MACAddress: "BB", Source: "10.0.0.6", Visibility: device.VisibilityUser, CreatedAt: base.Add(time.Second)},
		{MACAddress: "AA", Source: "10.0.0.5", Visibility: device.VisibilityIgnore, Previous: device.VisibilityAll, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, c := range entries {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if !strings.HasPrefix(c.ID, "chg-") {
			t.Errorf("ID = %q, want chg- prefix", c.ID)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Changes) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3/3", all.Total, len(all.Changes))
	}
	if all.Changes[0].Visibility != device.VisibilityIgnore {
		t.Errorf("newest first: got %q", all.Changes[0].Visibility)
	}
	if all.Changes[0].Previous != device.VisibilityAll {
		t.Errorf("Previous = %q, want all", all.Changes[0].Previous)
	}
	if all.Changes[2].Previous != "" {
		t.Errorf("Previous of first change = %q, want empty", all.Changes[2].Previous)
	}
	if !all.Changes[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", all.Changes[2].CreatedAt, base)
	}
	if all.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", all.Limit, DefaultLimit)
	}

	onlyAA, err := repo.List(ctx, Filter{MACAddress: "AA", Limit: 1})
	if err != nil {
		t.Fatalf("List(AA) error = %v", err)
	}
	if onlyAA.Total != 2 || len(onlyAA.Changes) != 1 {
		t.Errorf("List(AA) total=%d len=%d, want 2/1", onlyAA.Total, len(onlyAA.Changes))
	}
}

func TestSQLiteRepository_EmptyList(t *testing.T) {
	result, err := openRepo(t).List(context.Background(), Filter{MACAddress: "missing"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Changes == nil || len(result.Changes) != 0 {
		t.Errorf("Changes = %v, want empty non-nil slice", result.Changes)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{Filter{}, DefaultLimit, 0},
		{Filter{Limit: 1000, Offset: -4}, MaxLimit, 0},
		{Filter{Limit: 10, Offset: 20}, 10, 20},
	}
	for _, tt := range tests {
		got := clamp(tt.in)
		if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
			t.Errorf("clamp(%+v) = %+v", tt.in, got)
		}
	}
}
