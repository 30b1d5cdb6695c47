package presence

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DiscoveryVersion is the envelope version produced by presence-scan.
// Bare arrays are the unversioned original format and stay accepted.
const DiscoveryVersion = 1

// DiscoveryEnvelope is the versioned discovery message:
//
//	{"version":1,"devices":[...]}
type DiscoveryEnvelope struct {
	Version int                `json:"version"`
	Devices []DiscoveredDevice `json:"devices"`
}

// DecodeDiscovery parses a discovery payload: either a JSON array of
// records or a DiscoveryEnvelope. A missing or null ipv6 list decodes as
// empty. The returned Snapshot has a zero ReceivedAt.
func DecodeDiscovery(payload []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty", ErrMalformedDiscovery)
	}

	var devices []DiscoveredDevice
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &devices); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrMalformedDiscovery, err)
		}
	case '{':
		var env struct {
			Version int                 `json:"version"`
			Devices *[]DiscoveredDevice `json:"devices"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %w", ErrMalformedDiscovery, err)
		}
		if env.Devices == nil {
			return Snapshot{}, fmt.Errorf("%w: envelope without devices", ErrMalformedDiscovery)
		}
		devices = *env.Devices
	default:
		return Snapshot{}, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedDiscovery)
	}

	for i := range devices {
		if devices[i].IPv6 == nil {
			devices[i].IPv6 = []string{}
		}
	}
	if devices == nil {
		devices = []DiscoveredDevice{}
	}
	return Snapshot{Devices: devices}, nil
}

// EncodeDiscovery produces the versioned envelope for devices.
func EncodeDiscovery(devices []DiscoveredDevice) ([]byte, error) {
	env := DiscoveryEnvelope{
		Version: DiscoveryVersion,
		Devices: append([]DiscoveredDevice{}, devices...),
	}
	for i := range env.Devices {
		if env.Devices[i].IPv6 == nil {
			env.Devices[i].IPv6 = []string{}
		}
	}
	return json.Marshal(env)
}

// EncodeSummary serialises s for the status topic. Empty lists encode as
// [] rather than null.
func EncodeSummary(s Summary) ([]byte, error) {
	if s.People == nil {
		s.People = []Person{}
	}
	for i := range s.People {
		if s.People[i].Devices == nil {
			s.People[i].Devices = []PersonDevice{}
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return data, nil
}
