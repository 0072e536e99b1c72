package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/koscakluka/callflow-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var _ llms.LLM = (*Client)(nil)

// Prompt sends a single non-streamed completion request and returns the
// model's text and, if it chose one, a function call.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var toolChoice *string
	tools := toWireTools(options.Tools)
	if tools != nil {
		choice := "auto"
		toolChoice = &choice
	}

	reqBody := requestBody{
		Model:      c.model,
		Messages:   toMessages(options.Instructions, options.Turns),
		Tools:      tools,
		ToolChoice: toolChoice,
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var body responseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("error unmarshalling JSON: %w", err)
	}

	if len(body.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned for completion")
	}

	choice := body.Choices[0].Message
	response := &llms.Response{Content: choice.Content}
	if len(choice.ToolCalls) > 0 {
		call := choice.ToolCalls[0]
		response.FunctionCall = &llms.FunctionCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return response, nil
}

type requestBody struct {
	Model      string     `json:"model"`
	Messages   []message  `json:"messages"`
	Stream     bool       `json:"stream,omitempty"`
	ToolChoice *string    `json:"tool_choice,omitempty"`
	Tools      []wireTool `json:"tools,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}
