package presence

import "github.com/nerrad567/presence-core/internal/device"

// Lookup is the read side of the device registry.
type Lookup interface {
	Get(mac string) (device.Settings, bool)
}

// Aggregate combines the registry and a discovery snapshot into a
// Summary.
//
// Unmatched devices only count as unknown. Matched devices whose
// visibility is ignore are dropped before anything is counted. The rest
// are grouped by user alias in the order each alias is first seen in the
// snapshot, and every counter is derived from those groups.
func Aggregate(reg Lookup, snap Snapshot) Summary {
	summary := Summary{People: []Person{}}
	groups := make(map[string]int)

	for _, d := range snap.Devices {
		settings, ok := reg.Get(d.DeviceMAC)
		if !ok {
			summary.UnknownDevicesCount++
			continue
		}
		if settings.Visibility.Hidden() {
			continue
		}

		idx, seen := groups[settings.UserAlias]
		if !seen {
			idx = len(summary.People)
			groups[settings.UserAlias] = idx
			summary.People = append(summary.People, Person{
				Name:    settings.UserAlias,
				Devices: []PersonDevice{},
			})
		}
		summary.People[idx].Devices = append(summary.People[idx].Devices, PersonDevice{
			Name:     settings.DeviceAlias,
			Location: d.Location,
		})
		summary.DeviceCount++
	}

	summary.PeopleCount = len(summary.People)
	return summary
}
