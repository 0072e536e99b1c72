// Package actions defines the contract between the conversation loop and the
// side effects the model can trigger. An action describes itself through a
// Descriptor so the model can pick it, and runs exactly once per dispatch.
package actions

import (
	"context"

	"github.com/invopop/jsonschema"
)

// Descriptor is the model-facing description of an action. TrustedParams
// names parameters filled in by the runtime rather than the model; they are
// redacted from transcripts.
type Descriptor struct {
	Kind          string
	Description   string
	Parameters    *jsonschema.Schema
	Quiet         bool
	TrustedParams []string
}

// Input is one dispatch of an action. Arguments is the raw JSON the model
// produced, with any trusted parameters merged in.
type Input struct {
	CallID         string
	Kind           string
	ConversationID string
	Arguments      string
}

// Output is the action's result, reported back to the conversation. IsError
// marks application failures the model should hear about.
type Output struct {
	CallID         string
	Kind           string
	ConversationID string
	Result         string
	IsError        bool
}

type Action interface {
	Describe() Descriptor
	Run(ctx context.Context, input Input) (Output, error)
}
