package presence

import "time"

// DiscoveredDevice is one record of a discovery message: a device seen on
// the network by a sensor. Unknown JSON fields are ignored.
type DiscoveredDevice struct {
	IPv4      string   `json:"ipv4"`
	IPv6      []string `json:"ipv6"`
	DeviceMAC string   `json:"device_mac"`
	RemoteIP  string   `json:"remote_ip"`
	RemoteMAC string   `json:"remote_mac"`
	Location  string   `json:"location"`
}

// Snapshot is the most recent full discovery list. It is replaced as a
// whole and never merged; holders must treat Devices as read-only.
type Snapshot struct {
	Devices    []DiscoveredDevice
	ReceivedAt time.Time
}

// Len returns the number of discovered devices.
func (s Snapshot) Len() int {
	return len(s.Devices)
}

// Summary is the document published on the status topic.
type Summary struct {
	People              []Person `json:"people"`
	PeopleCount         int      `json:"peopleCount"`
	DeviceCount         int      `json:"deviceCount"`
	UnknownDevicesCount int      `json:"unknownDevicesCount"`
}

// Person groups the visible devices of one user alias.
type Person struct {
	Name    string         `json:"name"`
	Devices []PersonDevice `json:"devices"`
}

// PersonDevice is a device display alias and where it was seen.
type PersonDevice struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}
