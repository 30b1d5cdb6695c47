// Package mqtt is the bus connection for Presence Core.
//
// Presence Core sits between discovery producers (network sensors that
// publish the observed device list) and summary consumers (dashboards,
// door displays) on a shared MQTT broker:
//
//	sensors → discovery topic → Presence Core → status topic → consumers
//
// This package manages:
//   - One auto-reconnecting paho connection shared by all loops
//   - Publishing with bounded waits (publish_timeout_ms)
//   - Subscriptions that survive reconnects
//   - An optional retained availability topic with LWT
//   - Inbox, a bounded drop-oldest queue between paho and a consumer loop
//
// paho drives the keep-alive PINGs on its own goroutines, so callers only
// need IsConnected to observe link state.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	inbox := mqtt.NewInbox(mqtt.DefaultInboxSize)
//	if err := client.SubscribeDiscovery(inbox.Handler()); err != nil {
//	    return err
//	}
//	for msg := range inbox.C() {
//	    ...
//	}
package mqtt
