package ultravox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session. It transitions only through
// the defined edges: disconnected -> connecting -> idle on join, the live
// states move between each other on server state messages, and any state
// reaches disconnected through disconnecting on leave.
type Status string

const (
	// StatusDisconnected means no call is in progress.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting means a join attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusIdle means the call is up and the agent is waiting.
	StatusIdle Status = "idle"
	// StatusListening means the agent is listening to the user.
	StatusListening Status = "listening"
	// StatusThinking means the agent is preparing a response.
	StatusThinking Status = "thinking"
	// StatusSpeaking means the agent is speaking.
	StatusSpeaking Status = "speaking"
	// StatusDisconnecting means a leave is in flight.
	StatusDisconnecting Status = "disconnecting"
)

// IsLive reports whether the session is in an established call.
func (s Status) IsLive() bool {
	switch s {
	case StatusIdle, StatusListening, StatusThinking, StatusSpeaking:
		return true
	}
	return false
}

// maxDataChannelPayload is the practical size limit of one data-channel
// message. Larger encoded payloads are routed over the signaling fallback
// channel instead.
const maxDataChannelPayload = 1024

// Session owns the lifecycle of a single call. All mutable session state
// (status, transcript sequence, mute flags, known participants) is guarded
// by a single mutex; inbound frames from the media data channel and from the
// signaling fallback channel funnel through the same dispatch path.
//
// A Session models exactly one logical call. After Leave it returns to
// disconnected and may be joined again.
type Session struct {
	cfg    Config
	bridge MediaBridge

	// experimental is the set of message kinds opted into for pass-through.
	experimental map[string]struct{}

	mu             sync.Mutex
	status         Status
	callID         string
	transcripts    transcriptAggregator
	micMuted       bool
	speakerMuted   bool
	participants   map[string]struct{}
	hs             *handshakeClient
	hsCancel       context.CancelFunc
	mediaConnected bool

	tools toolRegistry

	// Listener registration, per category. Listeners are invoked from the
	// session's internal goroutines and should not block.
	handlerMu             sync.RWMutex
	onStatusChanged       func(Status)
	onTranscriptsChanged  func([]Transcript)
	onMicMutedChanged     func(bool)
	onSpeakerMutedChanged func(bool)
	onExperimentalMessage func(json.RawMessage)
}

// NewSession creates a session that will run calls over the given media
// bridge. The bridge is only used once Join is called.
func NewSession(cfg Config, bridge MediaBridge) (*Session, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if bridge == nil {
		return nil, NewConfigError("MediaBridge", "", "cannot be nil")
	}

	experimental := make(map[string]struct{}, len(cfg.ExperimentalMessages))
	for _, kind := range cfg.ExperimentalMessages {
		experimental[kind] = struct{}{}
	}

	return &Session{
		cfg:          cfg,
		bridge:       bridge,
		experimental: experimental,
		status:       StatusDisconnected,
		participants: make(map[string]struct{}),
	}, nil
}

// Status returns the current session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CallID returns the correlation ID assigned to the current (or most
// recent) join attempt, or "" before the first join.
func (s *Session) CallID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID
}

// Transcripts returns a copy of the visible transcript in ordinal order.
func (s *Session) Transcripts() []Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcripts.list()
}

// RegisterTool registers (or overwrites) a client tool implementation under
// the given name. Tools stay registered for the session's lifetime.
func (s *Session) RegisterTool(name string, impl ClientToolImplementation) {
	s.tools.register(name, impl)
}

// Listener registration. Each category holds a single listener; registering
// replaces the previous one.

// OnStatusChanged registers a listener for status transitions.
func (s *Session) OnStatusChanged(fn func(Status)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onStatusChanged = fn
}

// OnTranscriptsChanged registers a listener invoked with the full visible
// transcript after every reconciliation step.
func (s *Session) OnTranscriptsChanged(fn func([]Transcript)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onTranscriptsChanged = fn
}

// OnMicMutedChanged registers a listener for mic mute changes.
func (s *Session) OnMicMutedChanged(fn func(bool)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onMicMutedChanged = fn
}

// OnSpeakerMutedChanged registers a listener for speaker mute changes.
func (s *Session) OnSpeakerMutedChanged(fn func(bool)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onSpeakerMutedChanged = fn
}

// OnExperimentalMessage registers a listener for pass-through delivery of
// unrecognized message kinds named in Config.ExperimentalMessages.
func (s *Session) OnExperimentalMessage(fn func(json.RawMessage)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onExperimentalMessage = fn
}

// Join exchanges the join URL for transport credentials, connects the media
// bridge, and brings the session to idle. On any failure the session is
// reset to disconnected and the partially created channel and media handles
// are torn down; no retry is attempted.
//
// Calling Join while the session is not disconnected is a programming error
// in the embedding application and panics.
func (s *Session) Join(ctx context.Context, joinURL string) error {
	// The precondition check and the transition to connecting share one
	// critical section so concurrent Join calls cannot both pass the check.
	// The call ID doubles as the attempt's ownership token: every later step
	// re-verifies it under the lock before touching shared session state.
	s.mu.Lock()
	if s.status != StatusDisconnected {
		status := s.status
		s.mu.Unlock()
		panic(fmt.Sprintf("ultravox: Join called while session status is %q", status))
	}
	s.status = StatusConnecting
	s.callID = uuid.NewString()
	attempt := s.callID
	s.mu.Unlock()
	s.emitStatusChanged(StatusDisconnected, StatusConnecting)

	hs, creds, err := dialHandshake(ctx, joinURL, s.cfg)
	if err != nil {
		s.logError("handshake_failed", map[string]any{"err": err})
		s.transitionOwned(attempt, StatusDisconnected)
		return err
	}
	s.log("handshake_complete", map[string]any{"room_url": creds.RoomURL})

	// A Leave, and possibly a whole new join, may have raced the handshake.
	// A stale attempt owns only its handshake handle; the media bridge
	// belongs to whichever attempt currently holds the session.
	if !s.owns(attempt) {
		hs.close()
		return ErrClosed
	}

	if err := s.bridge.Connect(ctx, creds.RoomURL, creds.Token, sessionMediaHandler{s}); err != nil {
		hs.close()
		s.logError("media_connect_failed", map[string]any{"err": err})
		s.transitionOwned(attempt, StatusDisconnected)
		return NewConnectionError(creds.RoomURL, "media_connect", err)
	}

	hsCtx, hsCancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.callID != attempt || s.status != StatusConnecting {
		// Leave was called while we were connecting; honor it. The bridge is
		// only torn down when no later attempt has claimed it.
		claimed := s.mediaConnected
		s.mu.Unlock()
		hsCancel()
		hs.close()
		if !claimed {
			_ = s.bridge.Disconnect(context.Background())
		}
		return ErrClosed
	}
	s.hs = hs
	s.hsCancel = hsCancel
	s.mediaConnected = true
	micEnabled := !s.micMuted
	s.mu.Unlock()

	// The signaling channel stays open as the fallback outbound path and as
	// an additional inbound control source.
	go hs.readLoop(hsCtx, s.handleInboundFrame)

	// Initial mic-state push. A failure is reported but the mute flag stays
	// authoritative, matching the mute-setter semantics.
	if err := s.bridge.SetLocalMicEnabled(ctx, micEnabled); err != nil {
		s.logError("mic_state_push_failed", map[string]any{"err": err})
	}

	if !s.transitionOwned(attempt, StatusIdle) {
		return ErrClosed
	}
	return nil
}

// owns reports whether the given join attempt still holds the session.
func (s *Session) owns(attempt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callID == attempt && s.status == StatusConnecting
}

// transitionOwned moves a still-connecting session to the given status, but
// only for the join attempt that owns it. It reports whether the transition
// happened; a stale attempt must leave the session untouched.
func (s *Session) transitionOwned(attempt string, to Status) bool {
	s.mu.Lock()
	if s.callID != attempt || s.status != StatusConnecting {
		s.mu.Unlock()
		return false
	}
	from := s.status
	s.status = to
	s.mu.Unlock()
	s.emitStatusChanged(from, to)
	return true
}

// Leave ends the call, tearing down the signaling channel and the media
// session, and always drives the state machine to disconnected. It is
// idempotent: calling it while already disconnected is a no-op. A Leave
// issued while a Join is still in flight is honored; the Join returns
// ErrClosed.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	hs := s.hs
	hsCancel := s.hsCancel
	connected := s.mediaConnected
	s.hs = nil
	s.hsCancel = nil
	s.mediaConnected = false
	s.mu.Unlock()

	s.setStatus(StatusDisconnecting)
	if hsCancel != nil {
		hsCancel()
	}
	if hs != nil {
		hs.close()
	}
	if connected {
		if err := s.bridge.Disconnect(ctx); err != nil {
			s.logError("media_disconnect_failed", map[string]any{"err": err})
		}
	}
	s.setStatus(StatusDisconnected)
	return nil
}

// SendText sends a user text message to the agent. The session must be live.
func (s *Session) SendText(ctx context.Context, text string) error {
	if err := s.requireLive(typeInputTextMessage); err != nil {
		return err
	}
	return s.sendMessage(ctx, typeInputTextMessage, inputTextMessage{Type: typeInputTextMessage, Text: text})
}

// SetOutputMedium asks the agent to reply over the given medium (voice or
// text). The session must be live.
func (s *Session) SetOutputMedium(ctx context.Context, medium Medium) error {
	if medium != MediumVoice && medium != MediumText {
		return NewSendError(typeSetOutputMedium, "", fmt.Errorf("invalid medium %q", medium))
	}
	if err := s.requireLive(typeSetOutputMedium); err != nil {
		return err
	}
	return s.sendMessage(ctx, typeSetOutputMedium, setOutputMediumMessage{Type: typeSetOutputMedium, Medium: medium})
}

// requireLive rejects operations that need an established call.
func (s *Session) requireLive(op string) error {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()
	if !status.IsLive() {
		s.logWarn("operation_rejected", map[string]any{"op": op, "status": status})
		return ErrNotLive
	}
	return nil
}

// sendMessage encodes and publishes one outbound control message, routing by
// encoded size: payloads beyond the data channel's practical limit go over
// the signaling fallback channel.
func (s *Session) sendMessage(ctx context.Context, messageType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return NewSendError(messageType, "", fmt.Errorf("marshal payload: %w", err))
	}

	s.mu.Lock()
	hs := s.hs
	s.mu.Unlock()

	if len(b) > maxDataChannelPayload && hs != nil {
		if err := hs.send(ctx, b); err != nil {
			return NewSendError(messageType, "fallback", err)
		}
		s.logDebug("message_sent", map[string]any{"type": messageType, "channel": "fallback", "size": len(b)})
		return nil
	}
	if err := s.bridge.Publish(ctx, b); err != nil {
		return NewSendError(messageType, "data", err)
	}
	s.logDebug("message_sent", map[string]any{"type": messageType, "channel": "data", "size": len(b)})
	return nil
}

// handleInboundFrame decodes and dispatches one inbound control frame. Both
// the media data channel and the signaling fallback channel deliver here.
// Malformed frames are dropped without any state change.
func (s *Session) handleInboundFrame(data []byte) {
	decoded, err := decodeInbound(data)
	if err != nil {
		s.logDebug("dropped_message", map[string]any{"err": err})
		return
	}

	switch m := decoded.(type) {
	case stateMessage:
		s.handleState(m)
	case transcriptMessage:
		s.handleTranscript(m)
	case clientToolInvocationMessage:
		s.handleToolInvocation(m)
	case roomInfoMessage:
		// Credentials are only meaningful during the handshake.
		s.logDebug("dropped_message", map[string]any{"type": typeRoomInfo})
	case unknownMessage:
		if _, ok := s.experimental[m.Type]; ok {
			s.handlerMu.RLock()
			fn := s.onExperimentalMessage
			s.handlerMu.RUnlock()
			if fn != nil {
				fn(m.Raw)
			}
		} else {
			s.logDebug("dropped_message", map[string]any{"type": m.Type})
		}
	}
}

func (s *Session) handleState(m stateMessage) {
	var to Status
	switch m.State {
	case "listening":
		to = StatusListening
	case "thinking":
		to = StatusThinking
	case "speaking":
		to = StatusSpeaking
	default:
		// Unrecognized state values leave the current status unchanged.
		s.logDebug("ignored_state", map[string]any{"state": m.State})
		return
	}
	s.setStatusWhere(Status.IsLive, to)
}

func (s *Session) handleTranscript(m transcriptMessage) {
	s.mu.Lock()
	changed := s.transcripts.apply(m)
	snapshot := s.transcripts.list()
	s.mu.Unlock()
	if !changed {
		s.logDebug("dropped_message", map[string]any{"type": typeTranscript, "ordinal": *m.Ordinal})
		return
	}
	s.handlerMu.RLock()
	fn := s.onTranscriptsChanged
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(snapshot)
	}
}

// handleToolInvocation runs the invocation on its own goroutine so a slow
// tool never stalls receipt of subsequent frames. Every invocation produces
// exactly one outbound correlation message; no ordering is promised between
// concurrently in-flight results.
func (s *Session) handleToolInvocation(m clientToolInvocationMessage) {
	impl, registered := s.tools.lookup(m.ToolName)
	go func() {
		var msg clientToolResultMessage
		if !registered {
			msg = undefinedToolMessage(m.InvocationID, m.ToolName)
		} else {
			result, err := runClientTool(impl, m.Parameters)
			msg = toolResultMessage(m.InvocationID, result, err)
		}
		if err := s.sendMessage(context.Background(), typeClientToolResult, msg); err != nil {
			s.logError("tool_result_send_failed", map[string]any{
				"tool":          m.ToolName,
				"invocation_id": m.InvocationID,
				"err":           err,
			})
		}
	}()
}

// setStatus moves to the given status unconditionally.
func (s *Session) setStatus(to Status) {
	s.setStatusWhere(func(Status) bool { return true }, to)
}

// setStatusWhere moves to the given status only when the current status
// satisfies allowed, and emits a status-changed event on every actual
// change. It reports whether the transition happened.
func (s *Session) setStatusWhere(allowed func(Status) bool, to Status) bool {
	s.mu.Lock()
	if !allowed(s.status) || s.status == to {
		already := s.status == to
		s.mu.Unlock()
		return already
	}
	from := s.status
	s.status = to
	s.mu.Unlock()

	s.emitStatusChanged(from, to)
	return true
}

func (s *Session) emitStatusChanged(from, to Status) {
	s.log("status_changed", map[string]any{"from": from, "to": to})
	s.handlerMu.RLock()
	fn := s.onStatusChanged
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(to)
	}
}

// sessionMediaHandler funnels MediaBridge callbacks into the session without
// exposing the MediaHandler methods on Session itself.
type sessionMediaHandler struct{ s *Session }

func (h sessionMediaHandler) OnDataMessage(data []byte)     { h.s.handleInboundFrame(data) }
func (h sessionMediaHandler) OnParticipantJoined(id string) { h.s.addParticipant(id) }
func (h sessionMediaHandler) OnParticipantLeft(id string)   { h.s.removeParticipant(id) }

// Logging helpers. Every line carries the call correlation ID once a join
// has assigned one.

func (s *Session) logFields(fields map[string]any) map[string]any {
	s.mu.Lock()
	callID := s.callID
	s.mu.Unlock()
	if callID == "" {
		return fields
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["call_id"] = callID
	return fields
}

func (s *Session) log(event string, fields map[string]any) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Info(event, s.logFields(fields))
	} else if s.cfg.Logger != nil {
		s.cfg.Logger(event, s.logFields(fields))
	}
}

func (s *Session) logDebug(event string, fields map[string]any) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Debug(event, s.logFields(fields))
	} else if s.cfg.Logger != nil {
		s.cfg.Logger(event, s.logFields(fields))
	}
}

func (s *Session) logWarn(event string, fields map[string]any) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Warn(event, s.logFields(fields))
	} else if s.cfg.Logger != nil {
		s.cfg.Logger("WARN: "+event, s.logFields(fields))
	}
}

func (s *Session) logError(event string, fields map[string]any) {
	if s.cfg.StructuredLogger != nil {
		s.cfg.StructuredLogger.Error(event, s.logFields(fields))
	} else if s.cfg.Logger != nil {
		s.cfg.Logger("ERROR: "+event, s.logFields(fields))
	}
}
