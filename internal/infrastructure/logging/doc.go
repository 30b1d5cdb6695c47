// Package logging provides structured logging for Presence Core.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("publish").Info("status published", "people", 3)
//
// MAC addresses are fine to log at debug level. Never log broker or
// InfluxDB credentials.
package logging
