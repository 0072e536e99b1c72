package cache

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	cases := map[string]string{
		"hello world":        "hello world",
		"  hello   world  ":  "hello world",
		"hello\n\tworld":     "hello world",
		"":                   "",
		"   ":                "",
		"one  two\n three\t": "one two three",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("expected Normalize(%q) = %q, got %q", input, want, got)
		}
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	params := map[string]string{"rate": "16000", "encoding": "linear16"}
	first := Key("hello world", "voice-a", "model-1", "linear16@16000", params)
	second := Key("  hello\tworld ", "voice-a", "model-1", "linear16@16000", map[string]string{
		"encoding": "linear16", "rate": "16000",
	})
	if first != second {
		t.Fatalf("expected normalized text and param order to not affect the key, got %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256 key, got %q", first)
	}
}

func TestKeyDistinguishesEveryParameter(t *testing.T) {
	base := Key("hello", "voice-a", "model-1", "linear16@16000", map[string]string{"rate": "16000"})
	variants := []string{
		Key("goodbye", "voice-a", "model-1", "linear16@16000", map[string]string{"rate": "16000"}),
		Key("hello", "voice-b", "model-1", "linear16@16000", map[string]string{"rate": "16000"}),
		Key("hello", "voice-a", "model-2", "linear16@16000", map[string]string{"rate": "16000"}),
		Key("hello", "voice-a", "model-1", "mulaw@8000", map[string]string{"rate": "16000"}),
		Key("hello", "voice-a", "model-1", "linear16@16000", map[string]string{"rate": "8000"}),
		Key("hello", "voice-a", "model-1", "linear16@16000", nil),
	}
	for i, variant := range variants {
		if variant == base {
			t.Fatalf("expected variant %d to produce a different key", i)
		}
	}
}

func TestEntryRoundTrip(t *testing.T) {
	entry := &Entry{
		Audio:     []byte{1, 2, 3},
		Text:      "hello",
		VoiceID:   "voice-a",
		ModelID:   "model-1",
		Params:    map[string]string{"rate": "16000"},
		CreatedAt: time.Now().Truncate(time.Millisecond),
		UsageHits: 7,
	}
	raw, err := entry.Encode()
	if err != nil {
		t.Fatalf("expected encode to succeed, got %v", err)
	}
	decoded, err := DecodeEntry(raw)
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}
	if !bytes.Equal(decoded.Audio, entry.Audio) || decoded.Text != entry.Text || decoded.UsageHits != 7 {
		t.Fatalf("expected round-tripped entry to match, got %+v", decoded)
	}
}

func TestDecodeEntryRejectsGarbage(t *testing.T) {
	if _, err := DecodeEntry([]byte("not msgpack at all")); err == nil {
		t.Fatal("expected garbage to fail decoding")
	}
}

func testStore(t *testing.T, store Store) {
	t.Helper()
	defer store.Close()

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	entry := &Entry{Audio: []byte("audio"), Text: "hello", VoiceID: "v", ModelID: "m"}
	if err := store.Put("key-1", entry); err != nil {
		t.Fatalf("expected put to succeed, got %v", err)
	}

	got, err := store.Get("key-1")
	if err != nil {
		t.Fatalf("expected get to succeed, got %v", err)
	}
	if !bytes.Equal(got.Audio, []byte("audio")) {
		t.Fatalf("expected stored audio back, got %q", got.Audio)
	}

	// Upsert is idempotent.
	entry.UsageHits = 3
	if err := store.Put("key-1", entry); err != nil {
		t.Fatalf("expected overwrite to succeed, got %v", err)
	}
	got, err = store.Get("key-1")
	if err != nil {
		t.Fatalf("expected get after overwrite to succeed, got %v", err)
	}
	if got.UsageHits != 3 {
		t.Fatalf("expected usage hits 3, got %d", got.UsageHits)
	}

	if err := store.Delete("key-1"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := store.Get("key-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete("key-1"); err != nil {
		t.Fatalf("expected repeated delete to be a no-op, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestBadgerStoreInMemory(t *testing.T) {
	store, err := NewBadgerStore(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("expected in-memory badger to open, got %v", err)
	}
	testStore(t, store)
}

func TestBadgerStoreRequiresDir(t *testing.T) {
	if _, err := NewBadgerStore(BadgerOptions{}); err == nil {
		t.Fatal("expected on-disk mode without a dir to be rejected")
	}
}
