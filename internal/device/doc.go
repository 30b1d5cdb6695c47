// Package device is the DeviceRegistry: who owns which network device and
// how it may be shown in presence summaries.
//
// Entries are keyed by MAC address and carry a user alias, a device alias,
// a Visibility (all, user, anon, ignore) and a last-changed timestamp in
// milliseconds.
//
// The Registry keeps every entry in memory behind an RWMutex and writes
// through to a Repository on each upsert:
//   - FileRepository: a JSON array file, rewritten whole via temp file and
//     rename (the default backend)
//   - SQLiteRepository: the device_settings table (registry.backend: sqlite)
//
// A missing, unreadable or corrupt store never stops the process. The
// registry starts empty and devices re-register through the settings form.
//
// Usage:
//
//	reg := device.NewRegistry(device.NewFileRepository(cfg.Registry.Path))
//	reg.SetLogger(logger)
//	if err := reg.Load(ctx); err != nil {
//	    return err
//	}
//	if s, ok := reg.Get("aa:bb:cc:dd:ee:ff"); ok && !s.Visibility.Hidden() {
//	    ...
//	}
package device
