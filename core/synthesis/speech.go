package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Speech is one utterance's audio, consumed chunk by chunk. SpokenAt reports
// how much of the text has been spoken after a given amount of playback,
// which is what survives in the transcript when playback is interrupted.
type Speech struct {
	text           string
	wordsPerMinute int

	chunks func(yield func(AudioChunk, error) bool)
}

func (s *Speech) Text() string { return s.text }

// Chunks yields the utterance's audio in order, ending with exactly one chunk
// marked Last. Streaming-backed speech performs the synthesis request on
// first consumption.
func (s *Speech) Chunks(yield func(AudioChunk, error) bool) {
	s.chunks(yield)
}

// SpokenAt estimates the prefix of the text spoken after elapsed playback
// time, using the configured speaking rate.
func (s *Speech) SpokenAt(elapsed time.Duration) string {
	words := strings.Fields(s.text)
	if len(words) == 0 {
		return ""
	}

	wordsSpoken := int(elapsed.Minutes() * float64(s.wordsPerMinute))
	if wordsSpoken >= len(words) {
		return s.text
	}
	if wordsSpoken <= 0 {
		return ""
	}
	return strings.Join(words[:wordsSpoken], " ")
}

func newBufferedSpeech(text string, audio []byte, chunkSize, wordsPerMinute int) *Speech {
	return &Speech{
		text:           text,
		wordsPerMinute: wordsPerMinute,
		chunks: func(yield func(AudioChunk, error) bool) {
			for offset := 0; offset < len(audio); offset += chunkSize {
				end := min(offset+chunkSize, len(audio))
				last := end == len(audio)
				if !yield(AudioChunk{Bytes: audio[offset:end], Last: last}, nil) {
					return
				}
			}
			if len(audio) == 0 {
				yield(AudioChunk{Last: true}, nil)
			}
		},
	}
}

func newStreamedSpeech(ctx context.Context, text string, streamer StreamingSynthesizer, chunkSize, wordsPerMinute int) *Speech {
	return &Speech{
		text:           text,
		wordsPerMinute: wordsPerMinute,
		chunks: func(yield func(AudioChunk, error) bool) {
			var buffer []byte
			stopped := false

			err := streamer.SynthesizeStream(ctx, text, func(audio []byte) error {
				if stopped {
					return errConsumerStopped
				}
				buffer = append(buffer, audio...)
				for len(buffer) >= chunkSize {
					chunk := buffer[:chunkSize]
					buffer = buffer[chunkSize:]
					if !yield(AudioChunk{Bytes: chunk}, nil) {
						stopped = true
						return errConsumerStopped
					}
				}
				return nil
			})
			if stopped {
				return
			}
			if err != nil {
				yield(AudioChunk{}, fmt.Errorf("streamed synthesis failed: %w", err))
				return
			}

			yield(AudioChunk{Bytes: buffer, Last: true}, nil)
		},
	}
}

var errConsumerStopped = fmt.Errorf("audio consumer stopped")
