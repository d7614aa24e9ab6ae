package ultravox

import (
	"net/http"
	"strings"
	"time"
)

// Config holds the options for creating a Session.
// The zero value is usable; every field is optional.
type Config struct {
	// VersionSuffix is an application-supplied version string appended to the
	// clientVersion query parameter of the join URL, after a ":" separator.
	// Use this to identify your application's build in server-side logs.
	// Required: No
	VersionSuffix string

	// ExperimentalMessages lists message kinds the application opts into.
	// Inbound messages whose type is not part of the core protocol are
	// normally dropped; kinds named here are passed through verbatim to the
	// OnExperimentalMessage listener instead. The set is also advertised to
	// the server via the experimentalMessages join URL query parameter.
	// Required: No (empty means no pass-through)
	ExperimentalMessages []string

	// DialTimeout bounds the signaling WebSocket connection establishment.
	// If zero, no timeout is applied (not recommended for production);
	// Join then hangs until the context is cancelled or the remote answers.
	// Recommended: 15-30 seconds
	// Required: No
	DialTimeout time.Duration

	// HandshakeHeaders adds custom headers to the WebSocket handshake request.
	// Useful for proxy authentication, tracing headers, etc.
	// Required: No
	HandshakeHeaders http.Header

	// Logger is called for significant events and can be used for debugging
	// and monitoring. Events include status_changed, handshake_complete,
	// dropped_message, and other operational events. The fields parameter
	// contains structured data relevant to each event.
	// Required: No (if nil, no logging occurs)
	Logger func(event string, fields map[string]any)

	// StructuredLogger provides leveled structured logging. If both Logger
	// and StructuredLogger are provided, StructuredLogger takes precedence.
	// Use NewLogger() or NewLoggerFromEnv() to create one.
	// Required: No
	StructuredLogger *Logger
}

// ValidateConfig checks a Config for values the session cannot work with.
func ValidateConfig(cfg Config) error {
	if cfg.DialTimeout < 0 {
		return NewConfigError("DialTimeout", cfg.DialTimeout.String(), "cannot be negative")
	}
	for _, kind := range cfg.ExperimentalMessages {
		if kind == "" {
			return NewConfigError("ExperimentalMessages", "", "message kind cannot be empty")
		}
		// Kinds are comma-joined into a single query parameter.
		if strings.Contains(kind, ",") {
			return NewConfigError("ExperimentalMessages", kind, "message kind cannot contain a comma")
		}
	}
	if cfg.VersionSuffix != "" && strings.ContainsAny(cfg.VersionSuffix, " \t\n") {
		return NewConfigError("VersionSuffix", cfg.VersionSuffix, "cannot contain whitespace")
	}
	return nil
}
