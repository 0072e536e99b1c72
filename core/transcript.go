package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/callflow-core/core/llms"
)

type EntryKind string

const (
	EntryKindHumanMessage     EntryKind = "human_message"
	EntryKindAssistantMessage EntryKind = "assistant_message"
	EntryKindActionStart      EntryKind = "action_start"
	EntryKindActionFinish     EntryKind = "action_finish"
)

// TranscriptEntry is a single immutable record of what happened in a
// conversation. Message entries carry Text; action entries carry the call
// metadata instead.
type TranscriptEntry struct {
	ID             string
	ConversationID string
	Kind           EntryKind
	Timestamp      time.Time

	Text string

	ActionKind string
	CallID     string
	Arguments  string
	Result     string
	IsError    bool
}

// Transcript is the append-only record of a conversation. Entries are never
// mutated or removed once appended.
type Transcript struct {
	mu             sync.RWMutex
	conversationID string
	entries        []TranscriptEntry
}

func NewTranscript(conversationID string) *Transcript {
	return &Transcript{conversationID: conversationID}
}

func (t *Transcript) append(entry TranscriptEntry) TranscriptEntry {
	entry.ID = uuid.NewString()
	entry.ConversationID = t.conversationID
	entry.Timestamp = time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	return entry
}

func (t *Transcript) AppendHumanMessage(text string) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryKindHumanMessage, Text: text})
}

func (t *Transcript) AppendAssistantMessage(text string) TranscriptEntry {
	return t.append(TranscriptEntry{Kind: EntryKindAssistantMessage, Text: text})
}

func (t *Transcript) AppendActionStart(actionKind, callID, arguments string) TranscriptEntry {
	return t.append(TranscriptEntry{
		Kind:       EntryKindActionStart,
		ActionKind: actionKind,
		CallID:     callID,
		Arguments:  arguments,
	})
}

func (t *Transcript) AppendActionFinish(actionKind, callID, result string, isError bool) TranscriptEntry {
	return t.append(TranscriptEntry{
		Kind:       EntryKindActionFinish,
		ActionKind: actionKind,
		CallID:     callID,
		Result:     result,
		IsError:    isError,
	})
}

// Entries returns a snapshot of the transcript in append order.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]TranscriptEntry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Turns renders the transcript as model turns. Action starts become function
// calls on an assistant turn and finishes are folded into the matching call's
// response by call ID.
func (t *Transcript) Turns() []llms.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var turns []llms.Turn
	for _, entry := range t.entries {
		switch entry.Kind {
		case EntryKindHumanMessage:
			turns = append(turns, llms.Turn{Role: llms.TurnRoleUser, Content: entry.Text})

		case EntryKindAssistantMessage:
			turns = append(turns, llms.Turn{Role: llms.TurnRoleAssistant, Content: entry.Text})

		case EntryKindActionStart:
			call := llms.FunctionCall{
				ID:        entry.CallID,
				Name:      entry.ActionKind,
				Arguments: entry.Arguments,
			}
			if n := len(turns); n > 0 && turns[n-1].Role == llms.TurnRoleAssistant && turns[n-1].Content == "" {
				turns[n-1].FunctionCalls = append(turns[n-1].FunctionCalls, call)
			} else {
				turns = append(turns, llms.Turn{Role: llms.TurnRoleAssistant, FunctionCalls: []llms.FunctionCall{call}})
			}

		case EntryKindActionFinish:
			response := entry.Result
			if entry.IsError && response == "" {
				response = "action failed"
			}
		match:
			for i := len(turns) - 1; i >= 0; i-- {
				for j := range turns[i].FunctionCalls {
					if turns[i].FunctionCalls[j].ID == entry.CallID {
						turns[i].FunctionCalls[j].Response = response
						break match
					}
				}
			}
		}
	}
	return turns
}
