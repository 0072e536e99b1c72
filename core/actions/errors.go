package actions

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InvalidParamsError marks arguments the model produced that do not fit the
// action's schema. The runner reports it to the model as an application
// failure instead of failing the dispatch.
type InvalidParamsError struct {
	Kind   string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid parameters for action %s: %s", e.Kind, e.Reason)
}

// DecodeParams decodes model-produced arguments strictly; unknown fields are
// rejected so schema drift surfaces as an InvalidParamsError.
func DecodeParams[T any](kind, arguments string) (T, error) {
	var params T
	if arguments == "" {
		return params, nil
	}
	decoder := json.NewDecoder(bytes.NewReader([]byte(arguments)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&params); err != nil {
		return params, &InvalidParamsError{Kind: kind, Reason: err.Error()}
	}
	return params, nil
}
