package ultravox

import "context"

// Mute control. Both flags are local to the session and never inferred from
// hardware: the flag is authoritative, the bridge command is a side effect.
// A failed bridge command is reported but does not roll back the flag or
// change the session status.

// MicMuted returns whether the local microphone is muted.
func (s *Session) MicMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micMuted
}

// SpeakerMuted returns whether remote participant audio is muted.
func (s *Session) SpeakerMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerMuted
}

// SetMicMuted mutes or unmutes the local microphone. The changed event is
// emitted only when the value actually changes.
func (s *Session) SetMicMuted(ctx context.Context, muted bool) {
	s.mu.Lock()
	if s.micMuted == muted {
		s.mu.Unlock()
		return
	}
	s.micMuted = muted
	s.mu.Unlock()

	if err := s.bridge.SetLocalMicEnabled(ctx, !muted); err != nil {
		s.logError("mic_mute_failed", map[string]any{"muted": muted, "err": err})
	}

	s.handlerMu.RLock()
	fn := s.onMicMutedChanged
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(muted)
	}
}

// SetSpeakerMuted mutes or unmutes the audio of every currently known remote
// participant. The changed event is emitted only when the value actually
// changes.
func (s *Session) SetSpeakerMuted(ctx context.Context, muted bool) {
	s.mu.Lock()
	if s.speakerMuted == muted {
		s.mu.Unlock()
		return
	}
	s.speakerMuted = muted
	ids := make([]string, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.bridge.SetRemoteAudioEnabled(ctx, id, !muted); err != nil {
			s.logError("speaker_mute_failed", map[string]any{"participant": id, "muted": muted, "err": err})
		}
	}

	s.handlerMu.RLock()
	fn := s.onSpeakerMutedChanged
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(muted)
	}
}

// addParticipant tracks a newly available remote audio track. A participant
// arriving while the speaker is muted is muted immediately so the side
// effect stays consistent with the flag.
func (s *Session) addParticipant(id string) {
	s.mu.Lock()
	s.participants[id] = struct{}{}
	muted := s.speakerMuted
	s.mu.Unlock()

	s.log("participant_joined", map[string]any{"participant": id})
	if muted {
		if err := s.bridge.SetRemoteAudioEnabled(context.Background(), id, false); err != nil {
			s.logError("speaker_mute_failed", map[string]any{"participant": id, "muted": true, "err": err})
		}
	}
}

func (s *Session) removeParticipant(id string) {
	s.mu.Lock()
	delete(s.participants, id)
	s.mu.Unlock()
	s.log("participant_left", map[string]any{"participant": id})
}
