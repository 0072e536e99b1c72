package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/koscakluka/callflow-core/core/llms"
)

const (
	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

var _ llms.LLMWithStream = (*Client)(nil)

// PromptWithStream prepares a streamed completion. The request is not issued
// until the returned stream's Chunks iterator is consumed.
func (c *Client) PromptWithStream(_ context.Context, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Stream{
		client:   c,
		messages: toMessages(options.Instructions, options.Turns),
		tools:    toWireTools(options.Tools),
	}
}

type Stream struct {
	client   *Client
	messages []message
	tools    []wireTool
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream llm response")
		defer span.End()

		var toolChoice *string
		if s.tools != nil {
			choice := "auto"
			toolChoice = &choice
		}

		reqBody := requestBody{
			Model:      s.client.model,
			Messages:   s.messages,
			Stream:     true,
			Tools:      s.tools,
			ToolChoice: toolChoice,
		}

		requestBodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			yield(nil, fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.completionsURL(), bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			yield(nil, fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			yield(nil, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status))
			return
		}

		// Tool call arguments arrive as incremental deltas keyed by index;
		// they are assembled here and yielded whole once the stream ends.
		assembled := map[int]*llms.FunctionCall{}
		maxIndex := -1

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			if chunk == endMessage {
				break
			}

			var body streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &body); err != nil {
				if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
					return
				}
				continue
			}
			if len(body.Choices) == 0 {
				continue
			}

			delta := body.Choices[0].Delta
			for _, call := range delta.ToolCalls {
				if call.Index > maxIndex {
					maxIndex = call.Index
				}
				target, ok := assembled[call.Index]
				if !ok {
					target = &llms.FunctionCall{}
					assembled[call.Index] = target
				}
				if call.ID != "" {
					target.ID = call.ID
				}
				if call.Function.Name != "" {
					target.Name = call.Function.Name
				}
				target.Arguments += call.Function.Arguments
			}

			if delta.Content != "" {
				if !yield(streamContentChunk{content: delta.Content, finishReason: body.Choices[0].FinishReason}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("error reading streamed response: %w", err))
			return
		}

		for index := 0; index <= maxIndex; index++ {
			call, ok := assembled[index]
			if !ok {
				continue
			}
			if !yield(streamFunctionCallChunk{call: *call}, nil) {
				return
			}
		}
	}
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string `json:"role,omitempty"`
			Content   string `json:"content,omitempty"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Type     string `json:"type,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

type streamContentChunk struct {
	finishReason *string
	content      string
}

func (s streamContentChunk) FinishReason() *string { return s.finishReason }
func (s streamContentChunk) Content() string       { return s.content }

type streamFunctionCallChunk struct {
	finishReason *string
	call         llms.FunctionCall
}

func (s streamFunctionCallChunk) FinishReason() *string           { return s.finishReason }
func (s streamFunctionCallChunk) FunctionCall() llms.FunctionCall { return s.call }
