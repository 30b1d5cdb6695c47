package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/presence-core/internal/device"
)

var fixedNow = time.UnixMilli(1_760_443_200_000)

func newTestService(t *testing.T, entries ...device.Settings) (*SettingsService, *Coordinator, *device.Registry, *memRepository) {
	t.Helper()
	reg, repo := newTestRegistry(t, entries...)
	coord := NewCoordinator()
	coord.ReplaceSnapshot(snapshotOf(
		DiscoveredDevice{IPv4: "10.0.0.5", DeviceMAC: "AA", Location: "kitchen"},
		DiscoveredDevice{IPv4: "10.0.0.6", DeviceMAC: "BB", Location: "lab"},
	))
	svc := NewSettingsService(coord, reg)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, coord, reg, repo
}

func TestSettingsService_SubmitNewDevice(t *testing.T) {
	svc, coord, reg, repo := newTestService(t)

	got, err := svc.Submit(context.Background(), "10.0.0.5:51234", Form{
		UserAlias:   "alice",
		DeviceAlias: "phone",
		Visibility:  device.VisibilityAll,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	want := device.Settings{
		UserAlias:   "alice",
		DeviceAlias: "phone",
		MACAddress:  "AA",
		Visibility:  device.VisibilityAll,
		LastChanged: fixedNow.UnixMilli(),
	}
	if got != want {
		t.Errorf("Submit() = %+v, want %+v", got, want)
	}
	if stored, ok := reg.Get("AA"); !ok || stored != want {
		t.Errorf("registry entry = %+v, %v, want %+v", stored, ok, want)
	}
	if repo.entries["AA"] != want {
		t.Errorf("persisted entry = %+v, want %+v", repo.entries["AA"], want)
	}
	if !coord.IsDirty() {
		t.Error("IsDirty() = false after submit")
	}

	summary := coord.Current(reg)
	if summary.PeopleCount != 1 || summary.People[0].Name != "alice" {
		t.Errorf("Current() = %+v, want alice present", summary)
	}
}

func TestSettingsService_SubmitReplacesExisting(t *testing.T) {
	svc, _, reg, _ := newTestService(t,
		device.Settings{UserAlias: "bob", DeviceAlias: "old", MACAddress: "BB", Visibility: device.VisibilityAll, LastChanged: 1},
	)

	_, err := svc.Submit(context.Background(), "10.0.0.6", Form{
		UserAlias:   "bob",
		DeviceAlias: "laptop",
		Visibility:  device.VisibilityIgnore,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	stored, _ := reg.Get("BB")
	if stored.DeviceAlias != "laptop" || stored.Visibility != device.VisibilityIgnore {
		t.Errorf("entry = %+v, want laptop/ignore", stored)
	}
	if stored.LastChanged != fixedNow.UnixMilli() {
		t.Errorf("LastChanged = %d, want %d", stored.LastChanged, fixedNow.UnixMilli())
	}
}

func TestSettingsService_SubmitUnknownCaller(t *testing.T) {
	svc, coord, reg, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), "10.0.0.99:4000", Form{UserAlias: "mallory", Visibility: device.VisibilityAll})
	if !errors.Is(err, ErrCallerUnknown) {
		t.Fatalf("Submit() error = %v, want ErrCallerUnknown", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
	if coord.IsDirty() {
		t.Error("IsDirty() = true after unknown caller")
	}
}

func TestSettingsService_SubmitPersistFailure(t *testing.T) {
	svc, coord, reg, repo := newTestService(t)
	repo.upsertErr = errors.New("disk full")

	_, err := svc.Submit(context.Background(), "10.0.0.5", Form{UserAlias: "alice", Visibility: device.VisibilityUser})
	if !errors.Is(err, device.ErrPersistFailed) {
		t.Fatalf("Submit() error = %v, want ErrPersistFailed", err)
	}
	if _, ok := reg.Get("AA"); !ok {
		t.Error("entry missing from memory after persist failure")
	}
	if !coord.IsDirty() {
		t.Error("IsDirty() = false after persist failure, want set")
	}
}

func TestSettingsService_SubmitInvalidVisibility(t *testing.T) {
	svc, coord, reg, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), "10.0.0.5", Form{UserAlias: "alice", Visibility: "everyone"})
	if !errors.Is(err, device.ErrInvalidVisibility) {
		t.Fatalf("Submit() error = %v, want ErrInvalidVisibility", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
	if coord.IsDirty() {
		t.Error("IsDirty() = true after rejected submit")
	}
}

func TestSettingsService_Lookup(t *testing.T) {
	svc, _, _, _ := newTestService(t,
		device.Settings{UserAlias: "bob", DeviceAlias: "laptop", MACAddress: "BB", Visibility: device.VisibilityAnon},
	)

	t.Run("unknown caller", func(t *testing.T) {
		view, err := svc.Lookup("192.168.1.20:80")
		if !errors.Is(err, ErrCallerUnknown) {
			t.Fatalf("Lookup() error = %v, want ErrCallerUnknown", err)
		}
		if view.RegistrySize != 1 || view.MACAddress != "" {
			t.Errorf("Lookup() = %+v, want only RegistrySize 1", view)
		}
	})

	t.Run("known device without entry", func(t *testing.T) {
		view, err := svc.Lookup("10.0.0.5:1234")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if view.MACAddress != "AA" || view.Exists {
			t.Errorf("Lookup() = %+v, want AA without entry", view)
		}
		if view.Settings.Visibility != device.VisibilityAll {
			t.Errorf("default Visibility = %q, want all", view.Settings.Visibility)
		}
	})

	t.Run("registered device", func(t *testing.T) {
		view, err := svc.Lookup("[::ffff:10.0.0.6]:1234")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if !view.Exists || view.Settings.DeviceAlias != "laptop" {
			t.Errorf("Lookup() = %+v, want bob's laptop", view)
		}
	})
}

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.5", "10.0.0.5"},
		{"10.0.0.5:8000", "10.0.0.5"},
		{" 10.0.0.5 ", "10.0.0.5"},
		{"::ffff:10.0.0.5", "10.0.0.5"},
		{"[::ffff:10.0.0.5]:51000", "10.0.0.5"},
		{"[fe80::1%eth0]:80", "fe80::1"},
		{"fe80::1", "fe80::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"not-an-ip", "not-an-ip"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeAddr(tt.in); got != tt.want {
			t.Errorf("NormalizeAddr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
