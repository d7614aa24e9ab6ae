package ultravox

// Transcript is one utterance in the visible transcript. Values are
// immutable; a not-yet-final entry is replaced in place by a new value as
// further fragments for its ordinal arrive. Entries are never deleted.
type Transcript struct {
	// Text is the utterance text reconstructed so far.
	Text string
	// IsFinal reports whether the server will send no further fragments
	// for this utterance.
	IsFinal bool
	// Speaker identifies who produced the utterance.
	Speaker Role
	// Medium identifies whether the utterance was conveyed as voice or text.
	Medium Medium
}

// transcriptAggregator reconciles transcript fragments into a stable
// sequence using the positional policy: every fragment carries an ordinal
// identifying its slot, slots may arrive out of order, and gaps are held as
// placeholders until filled.
//
// The protocol's earlier revisions used a latest-utterance merge policy
// instead (no ordinal; deltas extend the last non-final entry of the same
// speaker). The two policies are mutually exclusive per protocol revision;
// this implementation is positional only.
type transcriptAggregator struct {
	// entries is sparse: nil marks an ordinal that has not arrived yet.
	entries []*Transcript
}

// maxOrdinalGap bounds placeholder growth per fragment. A single frame cannot
// force an allocation more than this far past the known sequence; an utterance
// stream never jumps anywhere near this many slots at once.
const maxOrdinalGap = 1024

// apply reconciles one fragment and reports whether the visible transcript
// changed. Fragments whose ordinal jumps absurdly far past the known sequence
// are rejected.
func (a *transcriptAggregator) apply(m transcriptMessage) bool {
	ordinal := *m.Ordinal
	if ordinal >= len(a.entries)+maxOrdinalGap {
		return false
	}

	// Grow with placeholders up to and including the fragment's slot.
	for len(a.entries) <= ordinal {
		a.entries = append(a.entries, nil)
	}

	text := ""
	if prior := a.entries[ordinal]; prior != nil {
		// Replacement: full text wins, otherwise extend the prior text.
		text = prior.Text
	}
	switch {
	case m.Text != nil:
		text = *m.Text
	case m.Delta != nil:
		text += *m.Delta
	case a.entries[ordinal] == nil:
		text = ""
	}

	a.entries[ordinal] = &Transcript{
		Text:    text,
		IsFinal: m.Final,
		Speaker: m.Role,
		Medium:  m.Medium,
	}
	return true
}

// list returns the visible transcript: the sequence in ordinal order with
// placeholders removed. The returned slice is a copy.
func (a *transcriptAggregator) list() []Transcript {
	out := make([]Transcript, 0, len(a.entries))
	for _, e := range a.entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
