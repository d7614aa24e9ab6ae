package ultravox

import (
	"testing"
)

func TestDecodeInbound_State(t *testing.T) {
	decoded, err := decodeInbound([]byte(`{"type":"state","state":"thinking"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := decoded.(stateMessage)
	if !ok {
		t.Fatalf("expected stateMessage, got %T", decoded)
	}
	if m.State != "thinking" {
		t.Errorf("expected state thinking, got %q", m.State)
	}
}

func TestDecodeInbound_Transcript(t *testing.T) {
	raw := `{"type":"transcript","ordinal":2,"delta":" there","final":true,"role":"agent","medium":"voice"}`
	decoded, err := decodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := decoded.(transcriptMessage)
	if !ok {
		t.Fatalf("expected transcriptMessage, got %T", decoded)
	}
	if *m.Ordinal != 2 {
		t.Errorf("expected ordinal 2, got %d", *m.Ordinal)
	}
	if m.Text != nil {
		t.Error("expected absent text to stay nil")
	}
	if m.Delta == nil || *m.Delta != " there" {
		t.Errorf("unexpected delta: %v", m.Delta)
	}
	if !m.Final || m.Role != RoleAgent || m.Medium != MediumVoice {
		t.Errorf("unexpected fields: %+v", m)
	}
}

func TestDecodeInbound_TranscriptKeepsEmptyText(t *testing.T) {
	// An explicitly empty text is a full replacement, not an absent field.
	decoded, err := decodeInbound([]byte(`{"type":"transcript","ordinal":0,"text":"","role":"user","medium":"text"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := decoded.(transcriptMessage)
	if m.Text == nil || *m.Text != "" {
		t.Errorf("expected empty text pointer, got %v", m.Text)
	}
}

func TestDecodeInbound_ClientToolInvocation(t *testing.T) {
	raw := `{"type":"client_tool_invocation","toolName":"lookup","invocationId":"inv-1","parameters":{"q":"weather"}}`
	decoded, err := decodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := decoded.(clientToolInvocationMessage)
	if !ok {
		t.Fatalf("expected clientToolInvocationMessage, got %T", decoded)
	}
	if m.ToolName != "lookup" || m.InvocationID != "inv-1" {
		t.Errorf("unexpected fields: %+v", m)
	}
	if m.Parameters["q"] != "weather" {
		t.Errorf("unexpected parameters: %v", m.Parameters)
	}
}

func TestDecodeInbound_RoomInfo(t *testing.T) {
	raw := `{"type":"room_info","roomUrl":"https://room.example.com","token":"tok"}`
	decoded, err := decodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := decoded.(roomInfoMessage)
	if !ok {
		t.Fatalf("expected roomInfoMessage, got %T", decoded)
	}
	if m.RoomURL != "https://room.example.com" || m.Token != "tok" {
		t.Errorf("unexpected fields: %+v", m)
	}
}

func TestDecodeInbound_Unknown(t *testing.T) {
	decoded, err := decodeInbound([]byte(`{"type":"debug_stats","frames":12}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := decoded.(unknownMessage)
	if !ok {
		t.Fatalf("expected unknownMessage, got %T", decoded)
	}
	if m.Type != "debug_stats" {
		t.Errorf("expected type debug_stats, got %q", m.Type)
	}
}

func TestDecodeInbound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"type":`},
		{name: "missing type", raw: `{"state":"thinking"}`},
		{name: "state missing state", raw: `{"type":"state"}`},
		{name: "transcript missing ordinal", raw: `{"type":"transcript","text":"hi"}`},
		{name: "transcript negative ordinal", raw: `{"type":"transcript","ordinal":-1,"text":"hi"}`},
		{name: "transcript missing role", raw: `{"type":"transcript","ordinal":0,"text":"hi","medium":"voice"}`},
		{name: "transcript unrecognized role", raw: `{"type":"transcript","ordinal":0,"text":"hi","role":"system","medium":"voice"}`},
		{name: "transcript missing medium", raw: `{"type":"transcript","ordinal":0,"text":"hi","role":"agent"}`},
		{name: "transcript unrecognized medium", raw: `{"type":"transcript","ordinal":0,"text":"hi","role":"agent","medium":"telepathy"}`},
		{name: "invocation missing toolName", raw: `{"type":"client_tool_invocation","invocationId":"i","parameters":{}}`},
		{name: "invocation missing invocationId", raw: `{"type":"client_tool_invocation","toolName":"t","parameters":{}}`},
		{name: "invocation missing parameters", raw: `{"type":"client_tool_invocation","toolName":"t","invocationId":"i"}`},
		{name: "room_info missing token", raw: `{"type":"room_info","roomUrl":"https://room.example.com"}`},
		{name: "room_info missing roomUrl", raw: `{"type":"room_info","token":"tok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeInbound([]byte(tt.raw)); err == nil {
				t.Error("expected error for malformed message")
			}
		})
	}
}
