package orchestration

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/koscakluka/callflow-core/core/actions"
	"github.com/koscakluka/callflow-core/core/events"
	"github.com/koscakluka/callflow-core/core/llms"
	"github.com/koscakluka/callflow-core/core/synthesis"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type LoopState int32

const (
	LoopStateIdle LoopState = iota
	LoopStateProcessing
	LoopStateSpeaking
	LoopStateDispatching
)

func (s LoopState) String() string {
	switch s {
	case LoopStateIdle:
		return "idle"
	case LoopStateProcessing:
		return "processing"
	case LoopStateSpeaking:
		return "speaking"
	case LoopStateDispatching:
		return "dispatching"
	}
	return "unknown"
}

// conversationLoop processes one conversation's events strictly in order: at
// most one turn is active at a time, and inputs arriving mid-turn wait their
// turn in the queue. A dispatched action extends the turn through its reply,
// so utterances arriving while an action is outstanding are held back until
// the pending-action reply completes.
type conversationLoop struct {
	agent      *Agent
	id         string
	queue      *EventQueue[events.Event]
	transcript *Transcript

	// pending holds the call IDs of dispatched actions whose results have
	// not come back yet. Touched only by the loop goroutine.
	pending map[string]struct{}

	loopState atomic.Int32
	current   atomic.Pointer[Interruptible[events.Event]]
}

func newConversationLoop(agent *Agent, conversationID string) *conversationLoop {
	return &conversationLoop{
		agent:      agent,
		id:         conversationID,
		queue:      NewEventQueue[events.Event](),
		transcript: NewTranscript(conversationID),
		pending:    map[string]struct{}{},
	}
}

func (l *conversationLoop) state() LoopState {
	return LoopState(l.loopState.Load())
}

func (l *conversationLoop) setState(state LoopState) {
	l.loopState.Store(int32(state))
}

// interruptCurrent marks the in-flight turn, if any. The turn notices at its
// next checkpoint: before the model call, at sentence boundaries, or at audio
// chunk boundaries.
func (l *conversationLoop) interruptCurrent() {
	if envelope := l.current.Load(); envelope != nil {
		envelope.MarkInterrupted()
	}
}

func (l *conversationLoop) run(ctx context.Context) {
	var held []*Interruptible[events.Event]
	for {
		envelope, err := l.queue.Dequeue(ctx)
		if err != nil {
			return
		}

		// Utterances arriving while an action is outstanding wait for the
		// pending-action reply; answering them now would prompt the model
		// with an unresolved function call.
		if isTranscription(envelope.Payload()) && len(l.pending) > 0 {
			held = append(held, envelope)
			continue
		}

		l.processNext(ctx, envelope)
		for len(held) > 0 && len(l.pending) == 0 {
			envelope, held = held[0], held[1:]
			l.processNext(ctx, envelope)
		}
	}
}

func (l *conversationLoop) processNext(ctx context.Context, envelope *Interruptible[events.Event]) {
	l.current.Store(envelope)
	// An utterance enqueued between dequeueing and publishing the envelope
	// missed interruptCurrent; newer utterances still win.
	if l.queue.Any(isTranscription) {
		envelope.MarkInterrupted()
	}
	l.processEvent(ctx, envelope)
	l.current.Store(nil)
	l.setState(LoopStateIdle)
}

func isTranscription(event events.Event) bool {
	_, ok := event.(events.Transcription)
	return ok
}

func (l *conversationLoop) processEvent(ctx context.Context, envelope *Interruptible[events.Event]) {
	ctx, span := tracer.Start(ctx, "process conversation event")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", l.id))

	switch event := envelope.Payload().(type) {
	case events.Transcription:
		l.setState(LoopStateProcessing)
		l.transcript.AppendHumanMessage(event.Transcript())
		if envelope.IsInterrupted() {
			return
		}
		l.runModelTurn(ctx, envelope)

	case events.ActionResult:
		delete(l.pending, event.CallID())
		l.transcript.AppendActionFinish(event.Kind(), event.CallID(), event.Result(), event.IsError())
		if event.Quiet() {
			return
		}
		// The conversation may have moved on while the action ran; in that
		// case the result stays in the transcript but is not narrated.
		if envelope.IsInterrupted() {
			return
		}
		l.setState(LoopStateProcessing)
		l.runModelTurn(ctx, envelope)
	}
}

// runModelTurn invokes the model over the full transcript and carries its
// output to completion: spoken sentences, an action dispatch, or both. The
// generation and speaking sides run concurrently, bridged by the collator.
func (l *conversationLoop) runModelTurn(ctx context.Context, envelope *Interruptible[events.Event]) {
	ctx, span := tracer.Start(ctx, "run model turn")
	defer span.End()

	modelCtx, cancel := context.WithTimeout(ctx, l.agent.options.modelTimeout)
	defer cancel()

	collator := newStreamCollator()

	var committed []string
	var terminalCall *llms.FunctionCall

	group, groupCtx := errgroup.WithContext(modelCtx)

	group.Go(func() error {
		defer collator.CloseInput()
		return l.generate(groupCtx, envelope, collator)
	})

	group.Go(func() error {
		var speakErr error
		collator.Elements(func(element collatedElement) bool {
			if envelope.IsInterrupted() {
				collator.Abort()
				return false
			}
			if element.FunctionCall != nil {
				terminalCall = element.FunctionCall
				return false
			}

			l.setState(LoopStateSpeaking)
			spoken, err := l.speak(groupCtx, envelope, element.Sentence)
			if err != nil {
				speakErr = err
				collator.Abort()
				return false
			}
			if !spoken {
				collator.Abort()
				return false
			}
			committed = append(committed, element.Sentence)
			return true
		})
		return speakErr
	})

	err := group.Wait()

	// Whatever was fully spoken stands, even when the turn failed or was
	// interrupted mid-utterance.
	if len(committed) > 0 {
		message := joinSentences(committed)
		l.transcript.AppendAssistantMessage(message)
		l.agent.options.onAgentMessage(l.id, message)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("model turn failed", "conversation_id", l.id, "error", err)
		return
	}

	if terminalCall != nil && !envelope.IsInterrupted() {
		l.dispatch(ctx, envelope, *terminalCall, len(committed) > 0)
	}
}

// generate feeds the model's output into the collator, streaming when the
// provider supports it.
func (l *conversationLoop) generate(ctx context.Context, envelope *Interruptible[events.Event], collator *streamCollator) error {
	opts := []llms.PromptOption{
		llms.WithSystemPrompt(l.agent.options.instructions),
		llms.WithTurns(l.transcript.Turns()...),
	}
	if tools := l.agent.registry.Catalog(); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools...))
	}

	if streamer, ok := l.agent.llm.(llms.LLMWithStream); ok {
		var streamErr error
		streamer.PromptWithStream(ctx, opts...).Chunks(ctx)(func(chunk llms.StreamChunk, err error) bool {
			if err != nil {
				streamErr = err
				return false
			}
			if envelope.IsInterrupted() {
				return false
			}
			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				collator.AddFragment(chunk.Content())
			case llms.StreamFunctionCallChunk:
				collator.SetFunctionCall(chunk.FunctionCall())
			}
			return true
		})
		return streamErr
	}

	response, err := l.agent.llm.Prompt(ctx, opts...)
	if err != nil {
		return err
	}
	collator.AddFragment(response.Content)
	if response.FunctionCall != nil {
		collator.SetFunctionCall(*response.FunctionCall)
	}
	return nil
}

// speak synthesizes one sentence and emits its audio. Reports whether the
// sentence was spoken to the end; interruption at a chunk boundary stops the
// audio without failing the turn.
func (l *conversationLoop) speak(ctx context.Context, envelope *Interruptible[events.Event], sentence string) (bool, error) {
	speech, err := l.agent.pipeline.Synthesize(ctx, synthesis.Request{
		Text:           sentence,
		ChunkSize:      l.agent.options.chunkSize,
		AllowStreaming: l.agent.options.allowStreaming,
	})
	if err != nil {
		return false, err
	}

	finished := false
	var chunkErr error
	speech.Chunks(func(chunk synthesis.AudioChunk, err error) bool {
		if err != nil {
			chunkErr = err
			return false
		}
		if envelope.IsInterrupted() {
			return false
		}
		l.agent.options.onAudioChunk(l.id, chunk)
		if chunk.Last {
			finished = true
		}
		return true
	})
	return finished, chunkErr
}

// dispatch hands a model-requested action to the runner and fills the silence
// with an acknowledgement phrase unless the model already said something this
// turn.
func (l *conversationLoop) dispatch(ctx context.Context, envelope *Interruptible[events.Event], call llms.FunctionCall, spokeAlready bool) {
	ctx, span := tracer.Start(ctx, "dispatch action")
	defer span.End()
	span.SetAttributes(
		attribute.String("action.kind", call.Name),
		attribute.String("action.call_id", call.ID),
	)

	l.setState(LoopStateDispatching)

	var trusted map[string]string
	if l.agent.options.trustedContext != nil {
		trusted = l.agent.options.trustedContext(l.id)
	}

	arguments, redacted, err := mergeTrustedParams(call.Arguments, trusted)
	if err != nil {
		logger.Error("failed to merge trusted action parameters",
			"conversation_id", l.id, "action", call.Name, "error", err)
		arguments, redacted = call.Arguments, call.Arguments
	}

	l.transcript.AppendActionStart(call.Name, call.ID, redacted)

	if !l.agent.runner.Dispatch(actions.Input{
		CallID:         call.ID,
		Kind:           call.Name,
		ConversationID: l.id,
		Arguments:      arguments,
	}) {
		logger.Error("action dispatch rejected", "conversation_id", l.id, "action", call.Name)
		return
	}
	l.pending[call.ID] = struct{}{}

	if spokeAlready {
		return
	}
	phrase := l.agent.phrases.NextPhrase()
	if phrase == "" {
		return
	}
	if spoken, err := l.speak(ctx, envelope, phrase); err != nil {
		logger.Warn("failed to speak acknowledgement phrase",
			"conversation_id", l.id, "error", err)
	} else if spoken {
		l.transcript.AppendAssistantMessage(phrase)
		l.agent.options.onAgentMessage(l.id, phrase)
	}
}

// mergeTrustedParams overlays runtime-trusted parameters onto the model's
// arguments and strips them from the copy that goes into the transcript. The
// model cannot fabricate a trusted value; the overlay always wins.
func mergeTrustedParams(arguments string, trusted map[string]string) (merged, redacted string, err error) {
	if len(trusted) == 0 {
		return arguments, arguments, nil
	}

	params := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &params); err != nil {
			return "", "", err
		}
	}

	for key := range trusted {
		delete(params, key)
	}
	redactedBytes, err := json.Marshal(params)
	if err != nil {
		return "", "", err
	}

	for key, value := range trusted {
		params[key] = value
	}
	mergedBytes, err := json.Marshal(params)
	if err != nil {
		return "", "", err
	}

	return string(mergedBytes), string(redactedBytes), nil
}

func joinSentences(sentences []string) string {
	return strings.Join(sentences, " ")
}
