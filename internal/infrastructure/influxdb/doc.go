// Package influxdb records presence history in InfluxDB v2.
//
// Each time the status topic is published, the counters of that summary
// (people, devices, unknown) are written as one point of the "presence"
// measurement. Writes are batched according to influxdb.batch_size and
// influxdb.flush_interval and never block the publish loop.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // time series not configured
//	}
//	defer client.Close()
//
//	client.WritePresence(summary.PeopleCount, summary.DeviceCount, summary.UnknownDevicesCount)
package influxdb
