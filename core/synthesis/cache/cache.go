// Package cache stores synthesized audio keyed by what was said and which
// voice said it. Keys are content-addressed so identical utterances hit the
// same entry regardless of which conversation produced them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache entry not found")

// Store is the persistence interface for synthesized audio.
type Store interface {
	Get(key string) (*Entry, error)
	Put(key string, entry *Entry) error
	Delete(key string) error
	Close() error
}

// Entry is one cached synthesis result.
type Entry struct {
	Audio     []byte            `msgpack:"audio"`
	Text      string            `msgpack:"text"`
	VoiceID   string            `msgpack:"voice_id"`
	ModelID   string            `msgpack:"model_id"`
	Params    map[string]string `msgpack:"params,omitempty"`
	CreatedAt time.Time         `msgpack:"created_at"`
	UsageHits uint64            `msgpack:"usage_hits"`
}

func (e *Entry) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

func DecodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Normalize collapses runs of whitespace and trims the text, so chunk-level
// differences in how the model streamed a sentence do not split the cache.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Key derives the content address for an utterance. Every byte-affecting
// setting participates: normalized text, voice, model, encoding, and params,
// the last folded in sorted order so map iteration cannot produce different
// keys.
func Key(text, voiceID, modelID, encoding string, params map[string]string) string {
	hash := sha256.New()
	hash.Write([]byte(Normalize(text)))
	hash.Write([]byte{0})
	hash.Write([]byte(voiceID))
	hash.Write([]byte{0})
	hash.Write([]byte(modelID))
	hash.Write([]byte{0})
	hash.Write([]byte(encoding))

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		hash.Write([]byte{0})
		hash.Write([]byte(key))
		hash.Write([]byte{'='})
		hash.Write([]byte(params[key]))
	}

	return hex.EncodeToString(hash.Sum(nil))
}
