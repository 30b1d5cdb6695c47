// Package presence turns network discovery snapshots into presence
// summaries and keeps them published.
//
// The package holds the shared Coordinator state and the three tasks that
// use it:
//
//   - IngestLoop replaces the snapshot for every discovery message
//   - PublishLoop publishes Aggregate(registry, snapshot) whenever the
//     coordinator is dirty
//   - SettingsService maps a caller address to its device and updates the
//     registry
//
// Aggregate is a pure function. Devices whose visibility is ignore never
// reach any group or counter.
//
// Usage:
//
//	coord := presence.NewCoordinator()
//	ingest := presence.NewIngestLoop(coord, bus, cfg.MQTT.ReceiveTimeout())
//	publish := presence.NewPublishLoop(coord, registry, bus, cfg.MQTT.ReceiveTimeout())
//	go ingest.Run(ctx)
//	go publish.Run(ctx)
//	...
//	coord.Shutdown()
package presence
