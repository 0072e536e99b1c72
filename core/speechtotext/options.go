// Package speechtotext defines the callback contract for live transcription
// collaborators. Final transcripts become conversation turns; interim ones
// and speech-start signals exist for early interruption detection.
package speechtotext

import "github.com/koscakluka/callflow-core/core/audio"

type TranscriptionOptions struct {
	// TranscriptionCallback receives one final transcript per spoken
	// utterance.
	TranscriptionCallback func(transcript string)
	// InterimTranscriptionCallback receives provisional transcripts that may
	// still be revised. Never treat them as turns.
	InterimTranscriptionCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
