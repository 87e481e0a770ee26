// Package observability provides the three pillars used across the
// zeptoclaw runtime: Prometheus metrics, a redacting slog handler, and
// OpenTelemetry tracing.
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	slog.SetDefault(logger)
//
//	metrics := observability.NewMetrics()
//	metrics.MessageReceived("telegram", "inbound")
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "zeptoclaw"})
//	defer shutdown(context.Background())
//	ctx, span := tracer.TraceLLMRequest(ctx, "anthropic", "claude-sonnet-4-20250514")
//	defer span.End()
//
// Logging redacts API keys, bearer tokens, passwords, and JWTs from both
// the log message and structured attributes, and sensitive map keys
// (password, secret, token, api_key, ...) outright, before anything is
// written to the configured output — so a provider key embedded in an
// error message never reaches disk.
package observability
