package actions

import (
	"context"
	"time"

	"github.com/koscakluka/callflow-core/core/llms"
)

type waitParams struct {
	Seconds float64 `json:"seconds" jsonschema:"description=How long to wait in seconds,minimum=0,maximum=30"`
}

// WaitAction pauses the conversation without saying anything afterwards. It
// is quiet: its result closes the turn instead of prompting the model again.
type WaitAction struct{}

func (WaitAction) Describe() Descriptor {
	return Descriptor{
		Kind:        "wait",
		Description: "Wait silently for a number of seconds before the conversation continues.",
		Parameters:  llms.ReflectParameters[waitParams](),
		Quiet:       true,
	}
}

func (WaitAction) Run(ctx context.Context, input Input) (Output, error) {
	params, err := DecodeParams[waitParams]("wait", input.Arguments)
	if err != nil {
		return Output{}, err
	}

	select {
	case <-time.After(time.Duration(params.Seconds * float64(time.Second))):
	case <-ctx.Done():
		return Output{}, ctx.Err()
	}

	return Output{
		CallID:         input.CallID,
		Kind:           input.Kind,
		ConversationID: input.ConversationID,
		Result:         "waited",
	}, nil
}
