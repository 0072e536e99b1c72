package events

// Transcription carries one finalized transcribed human utterance. Interim
// transcripts stay on the speech side; only finals become events and turns.
type Transcription struct {
	Base
	transcript string
}

func NewTranscription(conversationID, transcript string) Transcription {
	return Transcription{Base: NewBase(conversationID), transcript: transcript}
}

func (t Transcription) String() string     { return t.transcript }
func (t Transcription) Transcript() string { return t.transcript }
