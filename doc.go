// Package ultravox provides the session-protocol core of an Ultravox
// voice-agent client for Go.
//
// The package owns the lifecycle of a single call: it exchanges a join URL
// for transport credentials over a signaling WebSocket, hands those
// credentials to a pluggable media transport, and then classifies and
// dispatches the inbound control-message stream. Transcripts are
// reconstructed from possibly out-of-order, partial fragments, and
// server-initiated tool invocations are bridged to locally registered
// handlers.
//
// Key Features:
//   - Session state machine (disconnected -> connecting -> idle -> ...)
//     driven by server state messages
//   - Positional transcript reconciliation from full and delta fragments
//   - Client tool registry with correlated result messages
//   - Pluggable MediaBridge abstraction over the real-time media transport
//   - Mic and speaker mute control decoupled from hardware state
//   - Structured logging and typed errors
//
// Basic Usage:
//
//	session, err := ultravox.NewSession(ultravox.Config{}, bridge)
//	if err != nil {
//		log.Fatal(err)
//	}
//	session.OnTranscriptsChanged(func(ts []ultravox.Transcript) {
//		// render transcript
//	})
//	if err := session.Join(ctx, joinURL); err != nil {
//		log.Fatal(err)
//	}
//	defer session.Leave(context.Background())
//
// The session provides per-category listener registration:
//   - OnStatusChanged: session status transitions
//   - OnTranscriptsChanged: transcript updates (append or in-place replace)
//   - OnMicMutedChanged / OnSpeakerMutedChanged: local mute state
//   - OnExperimentalMessage: opted-in pass-through of unrecognized messages
//
// The package performs no automatic reconnection or retry; all recovery
// beyond a single join attempt is delegated to the caller.
package ultravox
