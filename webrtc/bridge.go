// Package webrtc provides a pion-based MediaBridge implementation for the
// ultravox session core. Control messages travel over a data channel named
// "ultravox"; one Opus track is published for the local microphone and each
// remote audio track is surfaced to the session as a participant.
package webrtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	ultravox "github.com/fixie-ai/ultravox-client-sdk-go"
)

// Options configures a Bridge.
type Options struct {
	// IceServers overrides the default ICE server set.
	IceServers []pion.ICEServer

	// OnAudioSample receives remote audio payloads for playback. Payloads of
	// muted participants are dropped before this callback.
	OnAudioSample func(participantID string, payload []byte)

	// HTTPClient is used for the SDP exchange with the room. A client with a
	// 20 second timeout is used when nil.
	HTTPClient *http.Client
}

// Bridge implements ultravox.MediaBridge over a pion WebRTC peer connection.
type Bridge struct {
	opts Options

	mu          sync.Mutex
	pc          *pion.PeerConnection
	dc          *pion.DataChannel
	micTrack    *pion.TrackLocalStaticSample
	micEnabled  bool
	remoteMuted map[string]bool
}

var _ ultravox.MediaBridge = (*Bridge)(nil)

// New creates a disconnected bridge.
func New(opts Options) *Bridge {
	return &Bridge{
		opts:        opts,
		micEnabled:  true,
		remoteMuted: make(map[string]bool),
	}
}

// Connect establishes the peer connection against the room: it publishes the
// local microphone track, opens the control data channel, and performs the
// SDP offer/answer exchange with the room URL using the handshake token.
func (b *Bridge) Connect(ctx context.Context, roomURL, token string, handler ultravox.MediaHandler) error {
	b.mu.Lock()
	if b.pc != nil {
		b.mu.Unlock()
		return errors.New("webrtc: already connected")
	}
	b.mu.Unlock()

	cfg := pion.Configuration{}
	if len(b.opts.IceServers) > 0 {
		cfg.ICEServers = b.opts.IceServers
	}
	pc, err := pion.NewPeerConnection(cfg)
	if err != nil {
		return err
	}

	dc, err := pc.CreateDataChannel("ultravox", nil)
	if err != nil {
		pc.Close()
		return err
	}
	dc.OnMessage(func(m pion.DataChannelMessage) {
		handler.OnDataMessage(m.Data)
	})

	micTrack, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus},
		"audio", "ultravox-mic",
	)
	if err != nil {
		pc.Close()
		return err
	}
	if _, err := pc.AddTrack(micTrack); err != nil {
		pc.Close()
		return err
	}
	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return err
	}

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if track.Kind() != pion.RTPCodecTypeAudio {
			return
		}
		id := track.StreamID()
		handler.OnParticipantJoined(id)
		go b.readRemoteTrack(id, track, handler)
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return err
	}

	answerSDP, err := b.exchangeSDP(ctx, roomURL, token, offer.SDP)
	if err != nil {
		pc.Close()
		return err
	}
	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		pc.Close()
		return err
	}

	b.mu.Lock()
	b.pc = pc
	b.dc = dc
	b.micTrack = micTrack
	b.mu.Unlock()
	return nil
}

func (b *Bridge) exchangeSDP(ctx context.Context, roomURL, token, offerSDP string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, roomURL, bytes.NewBufferString(offerSDP))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	httpClient := b.opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("SDP exchange failed: %d: %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}

func (b *Bridge) readRemoteTrack(id string, track *pion.TrackRemote, handler ultravox.MediaHandler) {
	defer handler.OnParticipantLeft(id)
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		b.mu.Lock()
		muted := b.remoteMuted[id]
		b.mu.Unlock()
		if muted || b.opts.OnAudioSample == nil {
			continue
		}
		b.opts.OnAudioSample(id, append([]byte(nil), buf[:n]...))
	}
}

// Disconnect closes the peer connection. Safe to call repeatedly, including
// before Connect.
func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	pc := b.pc
	b.pc = nil
	b.dc = nil
	b.micTrack = nil
	b.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Close()
}

// SetLocalMicEnabled gates publishing of local microphone audio. The track
// stays negotiated; SendAudio drops samples while disabled.
func (b *Bridge) SetLocalMicEnabled(ctx context.Context, enabled bool) error {
	b.mu.Lock()
	b.micEnabled = enabled
	b.mu.Unlock()
	return nil
}

// SetRemoteAudioEnabled gates delivery of one remote participant's audio to
// OnAudioSample.
func (b *Bridge) SetRemoteAudioEnabled(ctx context.Context, participantID string, enabled bool) error {
	b.mu.Lock()
	b.remoteMuted[participantID] = !enabled
	b.mu.Unlock()
	return nil
}

// Publish sends one encoded control message over the data channel.
func (b *Bridge) Publish(ctx context.Context, data []byte) error {
	b.mu.Lock()
	dc := b.dc
	b.mu.Unlock()
	if dc == nil {
		return errors.New("webrtc: not connected")
	}
	return dc.SendText(string(data))
}

// SendAudio writes one microphone sample to the published track. Samples are
// dropped while the mic is disabled.
func (b *Bridge) SendAudio(sample media.Sample) error {
	b.mu.Lock()
	track := b.micTrack
	enabled := b.micEnabled
	b.mu.Unlock()
	if track == nil {
		return errors.New("webrtc: not connected")
	}
	if !enabled {
		return nil
	}
	return track.WriteSample(sample)
}
