package device

import "time"

// Visibility is a per-device display policy.
type Visibility string

const (
	// VisibilityAll shows the owner and the device alias.
	VisibilityAll Visibility = "all"

	// VisibilityUser shows the device under its owner only.
	VisibilityUser Visibility = "user"

	// VisibilityAnon shows the device as an anonymous person.
	VisibilityAnon Visibility = "anon"

	// VisibilityIgnore hides the device from every summary.
	VisibilityIgnore Visibility = "ignore"
)

// Visibilities lists the accepted values in the order the settings form
// offers them.
func Visibilities() []Visibility {
	return []Visibility{VisibilityAll, VisibilityUser, VisibilityAnon, VisibilityIgnore}
}

// Valid reports whether v is one of the four known modes.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityAll, VisibilityUser, VisibilityAnon, VisibilityIgnore:
		return true
	}
	return false
}

// Hidden reports whether a device with this visibility is excluded from
// summaries. The empty value of a default-constructed entry is shown.
func (v Visibility) Hidden() bool {
	return v == VisibilityIgnore
}

// Settings is one registry entry: who owns a device and how it is shown.
//
// The JSON tags are the on-disk format of the registry file.
type Settings struct {
	UserAlias   string     `json:"user_alias"`
	DeviceAlias string     `json:"device_alias"`
	MACAddress  string     `json:"mac_address"`
	Visibility  Visibility `json:"visibility"`

	// LastChanged is milliseconds since the Unix epoch.
	LastChanged int64 `json:"last_changed"`
}

// LastChangedTime converts LastChanged to a time.Time. Zero stays zero.
func (s Settings) LastChangedTime() time.Time {
	if s.LastChanged == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LastChanged)
}

// Stats summarises the registry for the metrics endpoint.
type Stats struct {
	Total        int                `json:"total"`
	ByVisibility map[Visibility]int `json:"by_visibility"`
}
