package ultravox

import (
	"errors"
	"fmt"
)

// Common error variables
var (
	// ErrClosed is returned when an operation loses a race with Leave: the
	// session was torn down while the operation was still in flight.
	ErrClosed = errors.New("ultravox: session is closed")

	// ErrNotLive is returned when an operation that requires a live session
	// (sendText, setOutputMedium) is attempted outside of one. The operation
	// has no side effect and the session state is unchanged.
	ErrNotLive = errors.New("ultravox: session is not live")

	// ErrInvalidConfig is returned when configuration fields are invalid.
	ErrInvalidConfig = errors.New("ultravox: invalid configuration")

	// ErrConnectionFailed is returned when the signaling channel or the
	// media transport cannot be established during a join attempt.
	ErrConnectionFailed = errors.New("ultravox: connection failed")

	// ErrSendTimeout is returned when publishing an outbound message times out.
	ErrSendTimeout = errors.New("ultravox: send timeout")
)

// ConfigError represents a configuration validation error.
// It names the configuration field that is invalid.
type ConfigError struct {
	Field   string // The configuration field that is invalid
	Value   string // The invalid value (if safe to log)
	Message string // Detailed error message
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("ultravox: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("ultravox: invalid config field %q: %s", e.Field, e.Message)
}

// Is implements error matching for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ConnectionError represents a failure to establish the signaling channel
// or the media transport during a join attempt. The session is reset to
// disconnected before the error is returned; it is not retried.
type ConnectionError struct {
	URL       string // The URL that failed to connect
	Operation string // The operation that failed: "join_url", "handshake", "media_connect"
	Cause     error  // The underlying error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ultravox: %s failed for %q: %v", e.Operation, e.URL, e.Cause)
	}
	return fmt.Sprintf("ultravox: %s failed for %q", e.Operation, e.URL)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// SendError represents a failure to publish an outbound message, on either
// the media data channel or the signaling fallback channel.
type SendError struct {
	MessageType string // The type of message being sent
	Channel     string // The channel used: "data" or "fallback"
	Cause       error  // The underlying error
}

func (e *SendError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("ultravox: failed to send %s message over %s channel: %v", e.MessageType, e.Channel, e.Cause)
	}
	return fmt.Sprintf("ultravox: failed to send %s message: %v", e.MessageType, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Cause
}

// IsTimeout returns true if the error was caused by a timeout.
func (e *SendError) IsTimeout() bool {
	return errors.Is(e.Cause, ErrSendTimeout)
}

// Helper functions for creating specific errors

// NewConfigError creates a new configuration error.
func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// NewConnectionError creates a new connection error.
func NewConnectionError(url, operation string, cause error) *ConnectionError {
	return &ConnectionError{URL: url, Operation: operation, Cause: cause}
}

// NewSendError creates a new send error.
func NewSendError(messageType, channel string, cause error) *SendError {
	return &SendError{MessageType: messageType, Channel: channel, Cause: cause}
}
