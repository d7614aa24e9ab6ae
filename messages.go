package ultravox

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced an utterance.
type Role string

const (
	// RoleUser marks utterances spoken or typed by the local user.
	RoleUser Role = "user"
	// RoleAgent marks utterances produced by the remote agent.
	RoleAgent Role = "agent"
)

// Medium identifies how an utterance or reply is conveyed.
type Medium string

const (
	// MediumVoice conveys content as audio.
	MediumVoice Medium = "voice"
	// MediumText conveys content as text.
	MediumText Medium = "text"
)

// envelope is used for initial JSON parsing to determine the message type
// before unmarshaling into the specific message struct.
type envelope struct {
	Type string `json:"type"`
}

// Inbound message types. These are produced only by decodeInbound, which
// validates required fields and fails closed: a frame that does not satisfy
// its declared type's schema yields an error and is dropped by the caller.

// stateMessage is the server-declared session phase.
type stateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// transcriptMessage is a transcript fragment in the positional model.
// Text and Delta are pointers so that "absent" and "empty" stay distinct.
type transcriptMessage struct {
	Type    string  `json:"type"`
	Ordinal *int    `json:"ordinal"`
	Text    *string `json:"text"`
	Delta   *string `json:"delta"`
	Final   bool    `json:"final"`
	Role    Role    `json:"role"`
	Medium  Medium  `json:"medium"`
}

// clientToolInvocationMessage is a server request to run a local tool.
type clientToolInvocationMessage struct {
	Type         string         `json:"type"`
	ToolName     string         `json:"toolName"`
	InvocationID string         `json:"invocationId"`
	Parameters   map[string]any `json:"parameters"`
}

// roomInfoMessage carries the transport credentials produced by the
// signaling handshake.
type roomInfoMessage struct {
	Type    string `json:"type"`
	RoomURL string `json:"roomUrl"`
	Token   string `json:"token"`
}

// Outbound message types produced by the session.

type setOutputMediumMessage struct {
	Type   string `json:"type"`
	Medium Medium `json:"medium"`
}

type inputTextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type clientToolResultMessage struct {
	Type         string `json:"type"`
	InvocationID string `json:"invocationId"`
	Result       string `json:"result,omitempty"`
	ResponseType string `json:"responseType,omitempty"`
	ErrorType    string `json:"errorType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Wire names for the message types the core produces or consumes.
const (
	typeState                = "state"
	typeTranscript           = "transcript"
	typeClientToolInvocation = "client_tool_invocation"
	typeRoomInfo             = "room_info"
	typeSetOutputMedium      = "set_output_medium"
	typeInputTextMessage     = "input_text_message"
	typeClientToolResult     = "client_tool_result"
)

// unknownMessage wraps a frame whose type the core does not recognize.
// It is forwarded to the application only when the type is part of the
// configured experimental-message filter.
type unknownMessage struct {
	Type string
	Raw  json.RawMessage
}

// decodeInbound parses and validates a single inbound control frame.
// It returns one of stateMessage, transcriptMessage,
// clientToolInvocationMessage, roomInfoMessage or unknownMessage.
// Malformed frames, including recognized types missing required fields,
// yield an error; they must never reach the dispatch path.
func decodeInbound(raw []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}

	switch env.Type {
	case typeState:
		var m stateMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse state: %w", err)
		}
		if m.State == "" {
			return nil, fmt.Errorf("state message missing state")
		}
		return m, nil

	case typeTranscript:
		var m transcriptMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
		if m.Ordinal == nil {
			return nil, fmt.Errorf("transcript message missing ordinal")
		}
		if *m.Ordinal < 0 {
			return nil, fmt.Errorf("transcript ordinal %d is negative", *m.Ordinal)
		}
		if m.Role != RoleUser && m.Role != RoleAgent {
			return nil, fmt.Errorf("transcript role %q is not recognized", m.Role)
		}
		if m.Medium != MediumVoice && m.Medium != MediumText {
			return nil, fmt.Errorf("transcript medium %q is not recognized", m.Medium)
		}
		return m, nil

	case typeClientToolInvocation:
		var m clientToolInvocationMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse client_tool_invocation: %w", err)
		}
		if m.ToolName == "" {
			return nil, fmt.Errorf("client_tool_invocation missing toolName")
		}
		if m.InvocationID == "" {
			return nil, fmt.Errorf("client_tool_invocation missing invocationId")
		}
		if m.Parameters == nil {
			return nil, fmt.Errorf("client_tool_invocation missing parameters")
		}
		return m, nil

	case typeRoomInfo:
		var m roomInfoMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parse room_info: %w", err)
		}
		if m.RoomURL == "" || m.Token == "" {
			return nil, fmt.Errorf("room_info missing roomUrl or token")
		}
		return m, nil

	default:
		return unknownMessage{Type: env.Type, Raw: json.RawMessage(raw)}, nil
	}
}
