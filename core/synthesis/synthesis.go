// Package synthesis turns sentences into audio chunks, serving repeated
// phrases from a content-addressed cache so fillers and greetings do not pay
// for synthesis twice.
package synthesis

import (
	"context"

	"github.com/koscakluka/callflow-core/core/audio"
)

// VoiceParams identifies a synthesizer configuration. Two requests with the
// same params and the same normalized text are interchangeable, which is what
// makes the cache safe.
type VoiceParams struct {
	VoiceID  string
	ModelID  string
	Encoding audio.EncodingInfo
	Params   map[string]string
}

// Request asks for one utterance. ChunkSize is in bytes; AllowStreaming lets
// the pipeline start emitting audio before synthesis finishes, at the cost of
// not caching the result.
type Request struct {
	Text           string
	ChunkSize      int
	AllowStreaming bool
}

// AudioChunk is one slice of synthesized audio. Exactly one chunk per speech
// has Last set; it may carry no bytes.
type AudioChunk struct {
	Bytes []byte
	Last  bool
}

// Synthesizer produces complete audio for a piece of text.
type Synthesizer interface {
	Voice() VoiceParams
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// StreamingSynthesizer additionally produces audio incrementally, calling
// onAudio for every frame as it arrives.
type StreamingSynthesizer interface {
	Synthesizer
	SynthesizeStream(ctx context.Context, text string, onAudio func([]byte) error) error
}
