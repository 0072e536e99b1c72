package llms

import "context"

// Stream is a lazy, non-restartable sequence of model output chunks. The
// request is issued when Chunks is first iterated; iteration yields chunks
// in generation order and stops on the first unrecoverable error.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

// StreamContentChunk carries a fragment of the response text.
type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamFunctionCallChunk carries a fully assembled function call. Providers
// that stream call arguments incrementally assemble them before yielding.
type StreamFunctionCallChunk interface {
	StreamChunk
	FunctionCall() FunctionCall
}
