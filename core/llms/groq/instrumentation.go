package groq

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/callflow-core/core/llms/groq"

var (
	tracer = otel.Tracer(scopeName)
)
