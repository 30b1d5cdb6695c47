package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/presence-core/internal/device"
)

// Registry is what the settings service needs from the device registry.
// *device.Registry satisfies it.
type Registry interface {
	Lookup
	Upsert(ctx context.Context, s device.Settings) error
	Count() int
}

// Form is a settings submission.
type Form struct {
	UserAlias   string
	DeviceAlias string
	Visibility  device.Visibility
}

// View is what the settings page shows a caller.
type View struct {
	MACAddress   string
	Settings     device.Settings
	Exists       bool
	RegistrySize int
}

// SettingsService identifies callers by their network address and lets
// them edit the registry entry of their own device.
type SettingsService struct {
	coord  *Coordinator
	reg    Registry
	now    func() time.Time
	logger Logger
}

// NewSettingsService creates a service over coord and reg.
func NewSettingsService(coord *Coordinator, reg Registry) *SettingsService {
	return &SettingsService{
		coord:  coord,
		reg:    reg,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetClock replaces the time source used for last_changed.
func (s *SettingsService) SetClock(now func() time.Time) {
	s.now = now
}

// SetLogger sets the logger for the service.
func (s *SettingsService) SetLogger(logger Logger) {
	s.logger = logger
}

// Resolve returns the MAC of the snapshot device whose IPv4 equals the
// normalised caller address.
func (s *SettingsService) Resolve(addr string) (mac string, ok bool) {
	d, ok := s.coord.DeviceByIPv4(NormalizeAddr(addr))
	if !ok {
		return "", false
	}
	return d.DeviceMAC, true
}

// Lookup returns the caller's current settings. A device without a
// registry entry gets visibility all pre-selected. Unknown callers get
// ErrCallerUnknown together with a View carrying only RegistrySize.
func (s *SettingsService) Lookup(addr string) (View, error) {
	view := View{RegistrySize: s.reg.Count()}

	mac, ok := s.Resolve(addr)
	if !ok {
		return view, ErrCallerUnknown
	}

	view.MACAddress = mac
	view.Settings, view.Exists = s.reg.Get(mac)
	if !view.Exists {
		view.Settings = device.Settings{MACAddress: mac, Visibility: device.VisibilityAll}
	}
	return view, nil
}

// Submit applies form to the caller's registry entry and marks the
// summary dirty.
//
// An unknown caller is a no-op returning ErrCallerUnknown. A persistence
// failure is returned wrapped in device.ErrPersistFailed, but the entry is
// live in memory and dirty is still raised. Validation errors change
// nothing.
func (s *SettingsService) Submit(ctx context.Context, addr string, form Form) (device.Settings, error) {
	mac, ok := s.Resolve(addr)
	if !ok {
		s.logger.Debug("settings submission from unknown caller", "addr", addr)
		return device.Settings{}, ErrCallerUnknown
	}

	settings, exists := s.reg.Get(mac)
	if !exists {
		settings = device.Settings{MACAddress: mac}
	}
	settings.UserAlias = form.UserAlias
	settings.DeviceAlias = form.DeviceAlias
	settings.Visibility = form.Visibility
	settings.LastChanged = s.now().UnixMilli()

	err := s.reg.Upsert(ctx, settings)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrPersistFailed):
		s.logger.Error("device settings kept in memory only", "mac", mac, "error", err)
	default:
		return device.Settings{}, fmt.Errorf("updating settings for %s: %w", mac, err)
	}

	s.coord.MarkDirty()
	s.logger.Info("device settings submitted",
		"mac", mac,
		"visibility", settings.Visibility,
		"new", !exists,
	)
	return settings, err
}
