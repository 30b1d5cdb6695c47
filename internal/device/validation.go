package device

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxAliasLength bounds user and device aliases, in runes.
const MaxAliasLength = 64

// ParseVisibility accepts exactly all, user, anon or ignore, ignoring
// surrounding whitespace.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.TrimSpace(s))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVisibility, s)
	}
	return v, nil
}

// ValidateSettings checks an entry before it enters the registry. An
// empty visibility is allowed (default-constructed entry); anything else
// must be a known mode.
func ValidateSettings(s Settings) error {
	if s.MACAddress == "" {
		return fmt.Errorf("%w: mac_address is required", ErrInvalidSettings)
	}
	if n := utf8.RuneCountInString(s.UserAlias); n > MaxAliasLength {
		return fmt.Errorf("%w: user_alias has %d characters, max %d", ErrInvalidSettings, n, MaxAliasLength)
	}
	if n := utf8.RuneCountInString(s.DeviceAlias); n > MaxAliasLength {
		return fmt.Errorf("%w: device_alias has %d characters, max %d", ErrInvalidSettings, n, MaxAliasLength)
	}
	if s.Visibility != "" && !s.Visibility.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, s.Visibility)
	}
	return nil
}
