package ultravox

import (
	"errors"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("DialTimeout", "-1s", "must not be negative")

	th := NewTestHelper(t)
	th.AssertContains(err.Error(), "DialTimeout")
	th.AssertContains(err.Error(), "-1s")
	th.AssertContains(err.Error(), "must not be negative")

	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("expected match with ErrInvalidConfig")
	}
}

func TestConfigError_NoValue(t *testing.T) {
	err := NewConfigError("ExperimentalMessages", "", "kinds must be non-empty")
	if errors.Is(err, ErrClosed) {
		t.Error("unexpected match with unrelated sentinel")
	}
	NewTestHelper(t).AssertContains(err.Error(), "ExperimentalMessages")
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewConnectionError("wss://api.example.com/call", "handshake", cause)

	th := NewTestHelper(t)
	th.AssertContains(err.Error(), "handshake")
	th.AssertContains(err.Error(), "wss://api.example.com/call")
	th.AssertContains(err.Error(), "refused")

	if !errors.Is(err, ErrConnectionFailed) {
		t.Error("expected match with ErrConnectionFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected unwrap to reach the cause")
	}

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatal("expected errors.As to extract *ConnectionError")
	}
	if connErr.Operation != "handshake" {
		t.Errorf("unexpected operation %q", connErr.Operation)
	}
}

func TestSendError(t *testing.T) {
	cause := errors.New("data channel closed")
	err := NewSendError("input_text_message", "data", cause)

	th := NewTestHelper(t)
	th.AssertContains(err.Error(), "input_text_message")
	th.AssertContains(err.Error(), "data channel")

	if !errors.Is(err, cause) {
		t.Error("expected unwrap to reach the cause")
	}
	if err.IsTimeout() {
		t.Error("non-timeout cause must not report timeout")
	}
}

func TestSendError_Timeout(t *testing.T) {
	err := NewSendError("client_tool_result", "fallback", ErrSendTimeout)
	if !err.IsTimeout() {
		t.Error("expected timeout classification")
	}
	if !errors.Is(err, ErrSendTimeout) {
		t.Error("expected match with ErrSendTimeout")
	}
}
