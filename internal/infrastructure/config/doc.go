// Package config handles loading and validating Presence Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (PRESENCE_*)
//   - Validation of required fields, reported as one ValidationError
//   - Default value handling
//
// Security Considerations:
//   - MQTT and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.MQTT.Topics.Status)
package config
