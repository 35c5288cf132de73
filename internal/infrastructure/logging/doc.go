// Package logging provides structured logging for the Tuya Homie gateway.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level, and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Component child loggers (component=mqtt, component=poller, ...)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting gateway", "backend", cfg.Backend.BaseURL)
//	logger.Component("router").Warn("dropping command", "topic", topic)
//
// # Security
//
// Never log MQTT passwords or InfluxDB tokens. config.MQTTAuthConfig
// implements fmt.Stringer with the password redacted.
package logging
