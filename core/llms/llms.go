// Package llms defines the language-model contract consumed by the
// conversation pipeline: conversation turns, model responses, function
// calls and the streaming chunk interfaces providers implement.
package llms

import "context"

// LLM is a model client that produces a complete response for a prompt.
type LLM interface {
	Prompt(ctx context.Context, opts ...PromptOption) (*Response, error)
}

// LLMWithStream is a model client that produces an incremental fragment
// stream instead of a single blob. Clients that support it are preferred by
// the pipeline so speech can start before generation finishes.
type LLMWithStream interface {
	PromptWithStream(ctx context.Context, opts ...PromptOption) Stream
}

// Response is a single response from an LLM: free text, a function call, or
// text followed by a function call.
type Response struct {
	Content      string
	FunctionCall *FunctionCall
}

// FunctionCall is a model-requested invocation of a declared tool.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
	// Response is the serialized result fed back to the model once the call
	// has completed. Empty while the call is outstanding.
	Response string
}

// Turn is a single turn of conversation context sent to the model.
type Turn struct {
	Role    TurnRole
	Content string
	// FunctionCalls holds calls the assistant requested during this turn,
	// with responses filled in once resolved.
	FunctionCalls []FunctionCall
}

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)
