// Package events defines the typed inputs the conversation pipeline reacts
// to: finalized transcriptions coming from the speech side, and action
// results coming back from the action runner. Every event renders itself as
// prompt text through String.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single input for a conversation's turn loop.
type Event interface {
	fmt.Stringer
	ID() string
	ConversationID() string
	Timestamp() time.Time
}

type Base struct {
	id             string
	conversationID string
	timestamp      time.Time
}

func NewBase(conversationID string) Base {
	return Base{
		id:             uuid.NewString(),
		conversationID: conversationID,
		timestamp:      time.Now(),
	}
}

func (b Base) ID() string             { return b.id }
func (b Base) ConversationID() string { return b.conversationID }
func (b Base) Timestamp() time.Time   { return b.timestamp }
