package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/callflow-core/core/synthesis/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultWordsPerMinute = 150
	defaultChunkSize      = 4096
)

// Pipeline synthesizes utterances, consulting the cache first. Cached audio
// is re-chunked to the requested size; cache misses either synthesize fully
// and populate the cache, or stream without caching when the request allows
// it.
type Pipeline struct {
	synthesizer    Synthesizer
	store          cache.Store
	wordsPerMinute int
}

type PipelineOption func(*Pipeline)

// WithCache attaches a persistent store. Without one every request misses.
func WithCache(store cache.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithWordsPerMinute tunes the speaking-rate estimate used to time spoken
// prefixes during interruption.
func WithWordsPerMinute(wpm int) PipelineOption {
	return func(p *Pipeline) {
		if wpm > 0 {
			p.wordsPerMinute = wpm
		}
	}
}

func NewPipeline(synthesizer Synthesizer, opts ...PipelineOption) *Pipeline {
	pipeline := &Pipeline{
		synthesizer:    synthesizer,
		wordsPerMinute: defaultWordsPerMinute,
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline
}

// Synthesize produces the speech for one request. The returned Speech yields
// audio through Chunks; work for the streaming path is deferred until the
// chunks are consumed.
func (p *Pipeline) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	ctx, span := tracer.Start(ctx, "synthesize utterance")
	defer span.End()

	if req.Text == "" {
		return nil, fmt.Errorf("empty synthesis request")
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	voice := p.synthesizer.Voice()
	key := cache.Key(req.Text, voice.VoiceID, voice.ModelID, voice.Encoding.String(), voice.Params)

	if audio, ok := p.lookup(key); ok {
		span.SetAttributes(attribute.Bool("synthesis.cache_hit", true))
		return newBufferedSpeech(req.Text, audio, chunkSize, p.wordsPerMinute), nil
	}
	span.SetAttributes(attribute.Bool("synthesis.cache_hit", false))

	if req.AllowStreaming {
		if streamer, ok := p.synthesizer.(StreamingSynthesizer); ok {
			return newStreamedSpeech(ctx, req.Text, streamer, chunkSize, p.wordsPerMinute), nil
		}
	}

	audio, err := p.synthesizer.Synthesize(ctx, req.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	p.populate(key, req.Text, voice, audio)

	return newBufferedSpeech(req.Text, audio, chunkSize, p.wordsPerMinute), nil
}

// lookup fetches and validates a cache entry. Undecodable or empty entries
// are deleted and treated as misses.
func (p *Pipeline) lookup(key string) ([]byte, bool) {
	if p.store == nil {
		return nil, false
	}

	entry, err := p.store.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("evicting unreadable cache entry", "key", key, "error", err)
			if err := p.store.Delete(key); err != nil {
				logger.Warn("failed to evict cache entry", "key", key, "error", err)
			}
		}
		return nil, false
	}
	if len(entry.Audio) == 0 {
		logger.Warn("evicting empty cache entry", "key", key)
		if err := p.store.Delete(key); err != nil {
			logger.Warn("failed to evict cache entry", "key", key, "error", err)
		}
		return nil, false
	}

	entry.UsageHits++
	if err := p.store.Put(key, entry); err != nil {
		logger.Warn("failed to record cache usage", "key", key, "error", err)
	}
	return entry.Audio, true
}

// populate writes a fresh synthesis result. Failures only cost the next
// request a cache miss, so they are logged and swallowed.
func (p *Pipeline) populate(key, text string, voice VoiceParams, audio []byte) {
	if p.store == nil || len(audio) == 0 {
		return
	}
	entry := &cache.Entry{
		Audio:     audio,
		Text:      cache.Normalize(text),
		VoiceID:   voice.VoiceID,
		ModelID:   voice.ModelID,
		Params:    voice.Params,
		CreatedAt: time.Now(),
	}
	if err := p.store.Put(key, entry); err != nil {
		logger.Warn("failed to cache synthesis result", "key", key, "error", err)
	}
}
