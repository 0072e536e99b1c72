package llms

import "github.com/invopop/jsonschema"

// Tool describes one callable function exposed to the model: a machine name,
// a human description and a JSON schema for its parameters.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ReflectParameters builds a parameter schema from a parameters struct type.
func ReflectParameters[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var params T
	return reflector.Reflect(&params)
}
