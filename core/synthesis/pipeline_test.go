package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/callflow-core/core/audio"
	"github.com/koscakluka/callflow-core/core/synthesis/cache"
)

type countingSynthesizer struct {
	mu       sync.Mutex
	calls    int
	audio    []byte
	err      error
	encoding audio.EncodingInfo
}

func (s *countingSynthesizer) Voice() VoiceParams {
	return VoiceParams{VoiceID: "test-voice", ModelID: "test-model", Encoding: s.encoding}
}

func (s *countingSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.audio != nil {
		return s.audio, nil
	}
	return []byte(text), nil
}

func (s *countingSynthesizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type streamingFake struct {
	countingSynthesizer
	frames [][]byte
}

func (s *streamingFake) SynthesizeStream(_ context.Context, _ string, onAudio func([]byte) error) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	for _, frame := range s.frames {
		if err := onAudio(frame); err != nil {
			return err
		}
	}
	return nil
}

func collectChunks(t *testing.T, speech *Speech) []AudioChunk {
	t.Helper()
	var chunks []AudioChunk
	speech.Chunks(func(chunk AudioChunk, err error) bool {
		if err != nil {
			t.Fatalf("expected no chunk error, got %v", err)
		}
		chunks = append(chunks, chunk)
		return true
	})
	return chunks
}

func TestPipelineChunksFullPayload(t *testing.T) {
	synth := &countingSynthesizer{audio: make([]byte, 10)}
	pipeline := NewPipeline(synth)

	speech, err := pipeline.Synthesize(context.Background(), Request{Text: "hello there", ChunkSize: 4})
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	chunks := collectChunks(t, speech)
	if len(chunks) != 3 {
		t.Fatalf("expected ceil(10/4)=3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		wantLast := i == len(chunks)-1
		if chunk.Last != wantLast {
			t.Fatalf("expected chunk %d last=%v, got %v", i, wantLast, chunk.Last)
		}
	}
	if len(chunks[2].Bytes) != 2 {
		t.Fatalf("expected final chunk to carry the 2 remaining bytes, got %d", len(chunks[2].Bytes))
	}
}

func TestPipelineCacheHitSkipsSynthesizer(t *testing.T) {
	synth := &countingSynthesizer{audio: []byte("audio-bytes")}
	pipeline := NewPipeline(synth, WithCache(cache.NewMemoryStore()))

	first, err := pipeline.Synthesize(context.Background(), Request{Text: "hello  there", ChunkSize: 64})
	if err != nil {
		t.Fatalf("expected first synthesis to succeed, got %v", err)
	}
	collectChunks(t, first)
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected one synthesizer call, got %d", got)
	}

	// Same text with different whitespace must hit the same entry.
	second, err := pipeline.Synthesize(context.Background(), Request{Text: " hello there ", ChunkSize: 64})
	if err != nil {
		t.Fatalf("expected cached synthesis to succeed, got %v", err)
	}
	chunks := collectChunks(t, second)
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected cache hit to skip the synthesizer, got %d calls", got)
	}
	if !bytes.Equal(chunks[0].Bytes, []byte("audio-bytes")) {
		t.Fatalf("expected cached audio replayed, got %q", chunks[0].Bytes)
	}
}

func TestPipelineDeletesCorruptedEntryAndResynthesizes(t *testing.T) {
	store := cache.NewMemoryStore()
	synth := &countingSynthesizer{audio: []byte("fresh")}
	pipeline := NewPipeline(synth, WithCache(store))

	voice := synth.Voice()
	key := cache.Key("broken entry", voice.VoiceID, voice.ModelID, voice.Encoding.String(), voice.Params)
	if err := store.Put(key, &cache.Entry{Text: "broken entry"}); err != nil {
		t.Fatalf("expected seed put to succeed, got %v", err)
	}

	speech, err := pipeline.Synthesize(context.Background(), Request{Text: "broken entry", ChunkSize: 64})
	if err != nil {
		t.Fatalf("expected corrupted entry to fall through to a miss, got %v", err)
	}
	chunks := collectChunks(t, speech)
	if !bytes.Equal(chunks[0].Bytes, []byte("fresh")) {
		t.Fatalf("expected resynthesized audio, got %q", chunks[0].Bytes)
	}
	if got := synth.callCount(); got != 1 {
		t.Fatalf("expected one synthesizer call after eviction, got %d", got)
	}

	entry, err := store.Get(key)
	if err != nil {
		t.Fatalf("expected fresh entry cached, got %v", err)
	}
	if !bytes.Equal(entry.Audio, []byte("fresh")) {
		t.Fatalf("expected fresh audio cached, got %q", entry.Audio)
	}
}

func TestPipelineStreamingEmitsAtChunkBoundariesWithoutCaching(t *testing.T) {
	store := cache.NewMemoryStore()
	synth := &streamingFake{frames: [][]byte{
		[]byte("aaa"), []byte("bbb"), []byte("c"),
	}}
	pipeline := NewPipeline(synth, WithCache(store))

	speech, err := pipeline.Synthesize(context.Background(), Request{Text: "streamed words", ChunkSize: 4, AllowStreaming: true})
	if err != nil {
		t.Fatalf("expected streaming synthesis to succeed, got %v", err)
	}

	chunks := collectChunks(t, speech)
	if len(chunks) != 2 {
		t.Fatalf("expected one full chunk plus terminal remainder, got %d", len(chunks))
	}
	if !bytes.Equal(chunks[0].Bytes, []byte("aaab")) || chunks[0].Last {
		t.Fatalf("expected first chunk aaab not last, got %q last=%v", chunks[0].Bytes, chunks[0].Last)
	}
	if !bytes.Equal(chunks[1].Bytes, []byte("bbc")) || !chunks[1].Last {
		t.Fatalf("expected terminal remainder bbc, got %q last=%v", chunks[1].Bytes, chunks[1].Last)
	}

	voice := synth.Voice()
	key := cache.Key("streamed words", voice.VoiceID, voice.ModelID, voice.Encoding.String(), voice.Params)
	if _, err := store.Get(key); err == nil {
		t.Fatal("expected streamed synthesis to not populate the cache")
	}
}

func TestPipelineCacheSeparatesEntriesByEncoding(t *testing.T) {
	store := cache.NewMemoryStore()

	linear := &countingSynthesizer{
		audio:    []byte("linear-audio"),
		encoding: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16},
	}
	first, err := NewPipeline(linear, WithCache(store)).Synthesize(context.Background(), Request{Text: "hello", ChunkSize: 64})
	if err != nil {
		t.Fatalf("expected first synthesis to succeed, got %v", err)
	}
	collectChunks(t, first)

	// Same voice, model, and params; only the encoding differs.
	mulaw := &countingSynthesizer{
		audio:    []byte("mulaw-audio"),
		encoding: audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw},
	}
	second, err := NewPipeline(mulaw, WithCache(store)).Synthesize(context.Background(), Request{Text: "hello", ChunkSize: 64})
	if err != nil {
		t.Fatalf("expected second synthesis to succeed, got %v", err)
	}
	chunks := collectChunks(t, second)

	if got := mulaw.callCount(); got != 1 {
		t.Fatalf("expected a differently encoded voice to miss the cache, got %d calls", got)
	}
	if !bytes.Equal(chunks[0].Bytes, []byte("mulaw-audio")) {
		t.Fatalf("expected the second encoding's own audio, got %q", chunks[0].Bytes)
	}
}

func TestPipelineStreamingFallsBackToFullWhenUnsupported(t *testing.T) {
	synth := &countingSynthesizer{audio: []byte("full")}
	pipeline := NewPipeline(synth)

	speech, err := pipeline.Synthesize(context.Background(), Request{Text: "no streaming", ChunkSize: 64, AllowStreaming: true})
	if err != nil {
		t.Fatalf("expected fallback synthesis to succeed, got %v", err)
	}
	chunks := collectChunks(t, speech)
	if len(chunks) != 1 || !chunks[0].Last {
		t.Fatalf("expected single terminal chunk, got %+v", chunks)
	}
}

func TestPipelinePropagatesSynthesizerError(t *testing.T) {
	synth := &countingSynthesizer{err: fmt.Errorf("voice service down")}
	pipeline := NewPipeline(synth)

	if _, err := pipeline.Synthesize(context.Background(), Request{Text: "anything"}); err == nil {
		t.Fatal("expected synthesizer error to propagate")
	}
}

func TestPipelineRejectsEmptyText(t *testing.T) {
	pipeline := NewPipeline(&countingSynthesizer{})
	if _, err := pipeline.Synthesize(context.Background(), Request{}); err == nil {
		t.Fatal("expected empty request to be rejected")
	}
}

func TestSpeechSpokenAtEstimatesPrefix(t *testing.T) {
	speech := newBufferedSpeech("one two three four", nil, 4, 120)

	if got := speech.SpokenAt(0); got != "" {
		t.Fatalf("expected nothing spoken at 0s, got %q", got)
	}
	// 120 wpm = 2 words per second.
	if got := speech.SpokenAt(time.Second); got != "one two" {
		t.Fatalf("expected two words after 1s, got %q", got)
	}
	if got := speech.SpokenAt(10 * time.Second); got != "one two three four" {
		t.Fatalf("expected full text after 10s, got %q", got)
	}
}
