package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementPresence holds one point per published summary.
const MeasurementPresence = "presence"

// WritePresence records the three summary counters at the current time.
// It never blocks on the network.
func (c *Client) WritePresence(people, devices, unknown int) {
	c.WritePresenceAt(people, devices, unknown, time.Now())
}

// WritePresenceAt is WritePresence with an explicit timestamp.
func (c *Client) WritePresenceAt(people, devices, unknown int, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementPresence,
		nil,
		map[string]interface{}{
			"people":  people,
			"devices": devices,
			"unknown": unknown,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}
