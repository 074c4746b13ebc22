// Package observability provides logging, metrics, and tracing
// functionality for the gateway.
//
// Logging goes through the Logger interface backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// HTTP metrics live in a dedicated registry; Handler also exposes the
// default registry, where component packages register their collectors.
//
// Tracing uses OpenTelemetry with an optional OTLP gRPC exporter. The
// request ID and the active trace IDs are attached to log lines through
// Logger.WithContext.
package observability
