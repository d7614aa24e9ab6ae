package ultravox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"nhooyr.io/websocket"
)

// MockSignalingServer simulates the signaling endpoint a join URL points at:
// it accepts the WebSocket, optionally sends some preamble frames, then sends
// room_info, and keeps the channel open recording anything the client sends.
type MockSignalingServer struct {
	server   *httptest.Server
	t        *testing.T
	preamble []any         // frames sent before room_info
	roomInfo any           // nil means never send credentials
	gate     chan struct{} // when set, room_info waits for Release

	mu       sync.Mutex
	requests []*http.Request
	received []string
	extra    chan any // frames pushed after the handshake
}

// NewMockSignalingServer creates a mock server that completes the handshake
// with the given room credentials.
func NewMockSignalingServer(t *testing.T) *MockSignalingServer {
	ms := &MockSignalingServer{
		t: t,
		roomInfo: map[string]any{
			"type":    "room_info",
			"roomUrl": "https://room.example.com/sfu",
			"token":   "room-token-123",
		},
		extra: make(chan any, 16),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handleWebSocket))
	return ms
}

// Close shuts down the mock server.
func (ms *MockSignalingServer) Close() {
	ms.server.Close()
}

// URL returns the WebSocket join URL for the mock server.
func (ms *MockSignalingServer) URL() string {
	return "ws" + strings.TrimPrefix(ms.server.URL, "http")
}

// AddPreamble adds a frame the server sends before room_info.
func (ms *MockSignalingServer) AddPreamble(msg any) {
	ms.preamble = append(ms.preamble, msg)
}

// SuppressRoomInfo makes the server close instead of sending credentials.
func (ms *MockSignalingServer) SuppressRoomInfo() {
	ms.roomInfo = nil
}

// HoldRoomInfo makes the server park the handshake until Release is called.
func (ms *MockSignalingServer) HoldRoomInfo() {
	ms.gate = make(chan struct{})
}

// Release lets a held handshake proceed.
func (ms *MockSignalingServer) Release() {
	close(ms.gate)
}

// Push sends a frame to the connected client after the handshake.
func (ms *MockSignalingServer) Push(msg any) {
	ms.extra <- msg
}

// Received returns everything the client sent over the channel.
func (ms *MockSignalingServer) Received() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]string(nil), ms.received...)
}

// LastRequest returns the most recent handshake HTTP request.
func (ms *MockSignalingServer) LastRequest() *http.Request {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return nil
	}
	return ms.requests[len(ms.requests)-1]
}

func (ms *MockSignalingServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	ms.requests = append(ms.requests, r.Clone(context.Background()))
	ms.mu.Unlock()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // For testing only
	})
	if err != nil {
		ms.t.Errorf("failed to upgrade to websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	write := func(msg any) bool {
		data, err := json.Marshal(msg)
		if err != nil {
			ms.t.Errorf("failed to marshal message: %v", err)
			return false
		}
		return conn.Write(r.Context(), websocket.MessageText, data) == nil
	}

	for _, msg := range ms.preamble {
		if !write(msg) {
			return
		}
	}
	if ms.roomInfo == nil {
		return
	}
	if ms.gate != nil {
		select {
		case <-ms.gate:
		case <-r.Context().Done():
			return
		}
	}
	if !write(ms.roomInfo) {
		return
	}

	// Record inbound frames and forward pushed ones.
	go func() {
		for msg := range ms.extra {
			if !write(msg) {
				return
			}
		}
	}()
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		ms.mu.Lock()
		ms.received = append(ms.received, string(data))
		ms.mu.Unlock()
	}
}

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

func (th *TestHelper) AssertNoError(err error) {
	if err != nil {
		th.t.Fatalf("unexpected error: %v", err)
	}
}

func (th *TestHelper) AssertError(err error) {
	if err == nil {
		th.t.Fatal("expected error but got nil")
	}
}

func (th *TestHelper) AssertEqual(expected, actual any) {
	if expected != actual {
		th.t.Errorf("expected %v, got %v", expected, actual)
	}
}

func (th *TestHelper) AssertContains(haystack, needle string) {
	if !strings.Contains(haystack, needle) {
		th.t.Errorf("expected %q to contain %q", haystack, needle)
	}
}
