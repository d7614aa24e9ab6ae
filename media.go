package ultravox

import "context"

// MediaBridge abstracts the external real-time media transport. The session
// core treats it opaquely: it hands over the credentials obtained from the
// signaling handshake, issues mute commands, publishes outbound control
// messages over the transport's data channel, and receives lifecycle and
// inbound-message callbacks through the MediaHandler it supplies to Connect.
//
// Implementations must be safe for concurrent use: the session may call
// Publish while a Disconnect is in flight.
type MediaBridge interface {
	// Connect establishes the media session against the room the handshake
	// credentials point at. The handler stays registered until Disconnect.
	Connect(ctx context.Context, roomURL, token string, handler MediaHandler) error

	// Disconnect tears the media session down. It must be idempotent.
	Disconnect(ctx context.Context) error

	// SetLocalMicEnabled enables or disables publishing of local microphone
	// audio. It reflects the session's mute flag, never hardware state.
	SetLocalMicEnabled(ctx context.Context, enabled bool) error

	// SetRemoteAudioEnabled enables or disables playback of one remote
	// participant's audio track.
	SetRemoteAudioEnabled(ctx context.Context, participantID string, enabled bool) error

	// Publish sends one encoded control message over the media data channel.
	Publish(ctx context.Context, data []byte) error
}

// MediaHandler receives callbacks from a MediaBridge. The session core
// implements it; bridge implementations invoke it from their own receive
// goroutines.
type MediaHandler interface {
	// OnDataMessage delivers one inbound control frame from the data channel.
	OnDataMessage(data []byte)

	// OnParticipantJoined reports a remote participant whose audio track
	// became available.
	OnParticipantJoined(participantID string)

	// OnParticipantLeft reports that a remote participant's audio track went
	// away.
	OnParticipantLeft(participantID string)
}
