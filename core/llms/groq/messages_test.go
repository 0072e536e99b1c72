package groq

import (
	"testing"

	"github.com/koscakluka/callflow-core/core/llms"
)

func TestToMessagesFoldsFunctionCalls(t *testing.T) {
	turns := []llms.Turn{
		{Role: llms.TurnRoleUser, Content: "book me a haircut"},
		{Role: llms.TurnRoleAssistant, FunctionCalls: []llms.FunctionCall{{
			ID:        "call-1",
			Name:      "book_appointment",
			Arguments: `{"service":"haircut"}`,
			Response:  `{"status":"confirmed"}`,
		}}},
		{Role: llms.TurnRoleAssistant, Content: "All booked."},
	}

	messages := toMessages("be brief", turns)
	if len(messages) != 5 {
		t.Fatalf("expected 5 wire messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "be brief" {
		t.Fatalf("expected system message first, got %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser {
		t.Fatalf("expected user message second, got %+v", messages[1])
	}
	if messages[2].Role != messageRoleAssistant || len(messages[2].ToolCalls) != 1 {
		t.Fatalf("expected assistant message with tool call, got %+v", messages[2])
	}
	if messages[2].ToolCalls[0].Function.Name != "book_appointment" {
		t.Fatalf("expected tool call name preserved, got %+v", messages[2].ToolCalls[0])
	}
	if messages[3].Role != messageRoleTool || messages[3].ToolCallID != "call-1" {
		t.Fatalf("expected tool response message, got %+v", messages[3])
	}
	if messages[4].Role != messageRoleAssistant || messages[4].Content != "All booked." {
		t.Fatalf("expected trailing assistant message, got %+v", messages[4])
	}
}

func TestToMessagesSkipsEmptyInstructions(t *testing.T) {
	messages := toMessages("", []llms.Turn{{Role: llms.TurnRoleUser, Content: "hi"}})
	if len(messages) != 1 || messages[0].Role != messageRoleUser {
		t.Fatalf("expected only the user message, got %+v", messages)
	}
}

func TestToWireToolsCarriesSchema(t *testing.T) {
	type params struct {
		Service string `json:"service"`
	}
	tools := toWireTools([]llms.Tool{{
		Name:        "book_appointment",
		Description: "Book an appointment.",
		Parameters:  llms.ReflectParameters[params](),
	}})

	if len(tools) != 1 {
		t.Fatalf("expected one wire tool, got %d", len(tools))
	}
	if tools[0].Type != "function" || tools[0].Function.Name != "book_appointment" {
		t.Fatalf("expected function wrapper, got %+v", tools[0])
	}
	if tools[0].Function.Parameters == nil {
		t.Fatal("expected parameters schema carried over")
	}

	if got := toWireTools(nil); got != nil {
		t.Fatalf("expected no tools to map to nil, got %+v", got)
	}
}
