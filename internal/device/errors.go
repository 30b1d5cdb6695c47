package device

import "errors"

var (
	// ErrCorruptRegistry means the persisted registry exists but cannot be
	// parsed. Registry.Load logs it and starts empty.
	ErrCorruptRegistry = errors.New("device: registry file is corrupt")

	// ErrPersistFailed wraps a repository write failure after an upsert.
	// The in-memory entry has already been updated when it is returned.
	ErrPersistFailed = errors.New("device: persisting registry failed")

	ErrInvalidVisibility = errors.New("device: invalid visibility")

	ErrInvalidSettings = errors.New("device: invalid settings")
)
