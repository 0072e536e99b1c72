package deepgram

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/callflow-core/core/synthesis/deepgram"

var tracer = otel.Tracer(scopeName)
