package groq

import (
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/callflow-core/core/llms"
)

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	} `json:"function"`
}

func toMessages(instructions string, turns []llms.Turn) []message {
	var messages []message
	if instructions != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: instructions})
	}

	for _, turn := range turns {
		switch turn.Role {
		case llms.TurnRoleUser:
			messages = append(messages, message{Role: messageRoleUser, Content: turn.Content})

		case llms.TurnRoleAssistant:
			msg := message{Role: messageRoleAssistant, Content: turn.Content}
			var responses []message
			for _, call := range turn.FunctionCalls {
				wireCall := toolCall{ID: call.ID, Type: "function"}
				wireCall.Function.Name = call.Name
				wireCall.Function.Arguments = call.Arguments
				msg.ToolCalls = append(msg.ToolCalls, wireCall)
				if call.Response != "" {
					responses = append(responses, message{
						Role:       messageRoleTool,
						Content:    call.Response,
						ToolCallID: call.ID,
					})
				}
			}
			messages = append(messages, msg)
			messages = append(messages, responses...)
		}
	}
	return messages
}

func toWireTools(tools []llms.Tool) []wireTool {
	var wireTools []wireTool
	for _, tool := range tools {
		wire := wireTool{Type: "function"}
		wire.Function.Name = tool.Name
		wire.Function.Description = tool.Description
		if tool.Parameters != nil {
			schema := &jsonschema.Schema{}
			if err := copier.Copy(schema, tool.Parameters); err == nil {
				wire.Function.Parameters = schema
			} else {
				wire.Function.Parameters = tool.Parameters
			}
		}
		wireTools = append(wireTools, wire)
	}
	return wireTools
}
