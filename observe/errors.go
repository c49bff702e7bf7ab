package observe

import "errors"

// Configuration errors.
var (
	// ErrMissingServiceName indicates Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct indicates Tracing.SamplePct is not in [0.0, 1.0].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0.0 and 1.0")

	// ErrInvalidTracingExporter indicates an unknown tracing exporter name.
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")

	// ErrInvalidMetricsExporter indicates an unknown metrics exporter name.
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("observe: invalid log level")
)

// RedactedFields lists field keys whose values are replaced with
// "[REDACTED]" in log output. Bearer material must never reach a log
// sink; callers log token presence and expiry, not values.
var RedactedFields = []string{
	"token",
	"access_token",
	"subject_token",
	"id_token",
	"assertion",
	"client_assertion",
	"id_jag",
	"refresh_token",
	"password",
	"secret",
	"client_secret",
	"api_key",
	"apiKey",
	"credential",
	"private_key",
	"authorization",
}
