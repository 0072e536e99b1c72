// Package orchestration runs interruptible spoken conversations: it turns
// transcribed human utterances into model turns, speaks the model's reply
// sentence by sentence, dispatches the actions the model requests, and keeps
// an append-only transcript through all of it. Humans may interrupt at any
// point; interruption is cooperative and never retracts committed transcript
// text.
package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/koscakluka/callflow-core/core/actions"
	"github.com/koscakluka/callflow-core/core/events"
	"github.com/koscakluka/callflow-core/core/llms"
	"github.com/koscakluka/callflow-core/core/synthesis"
)

const (
	defaultModelTimeout = 30 * time.Second
	defaultChunkSize    = 4096
)

var defaultFillerPhrases = []string{
	"One moment please.",
	"Let me check that for you.",
	"Just a second.",
}

type agentOptions struct {
	instructions   string
	chunkSize      int
	allowStreaming bool
	modelTimeout   time.Duration
	actionTimeout  time.Duration

	trustedContext func(conversationID string) map[string]string

	onAgentMessage func(conversationID, text string)
	onAudioChunk   func(conversationID string, chunk synthesis.AudioChunk)
}

type AgentOption func(*agentOptions)

// WithInstructions sets the system prompt sent on every model call.
func WithInstructions(instructions string) AgentOption {
	return func(o *agentOptions) { o.instructions = instructions }
}

func WithSynthesisChunkSize(size int) AgentOption {
	return func(o *agentOptions) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

// WithStreamingSynthesis lets audio start flowing before synthesis finishes.
// Streamed utterances are not cached.
func WithStreamingSynthesis() AgentOption {
	return func(o *agentOptions) { o.allowStreaming = true }
}

func WithModelTimeout(timeout time.Duration) AgentOption {
	return func(o *agentOptions) {
		if timeout > 0 {
			o.modelTimeout = timeout
		}
	}
}

func WithDispatchedActionTimeout(timeout time.Duration) AgentOption {
	return func(o *agentOptions) {
		if timeout > 0 {
			o.actionTimeout = timeout
		}
	}
}

// WithTrustedContext supplies the parameters merged into every action call
// that the model is not allowed to fabricate, such as caller and tenant
// identifiers. They are redacted from the transcript.
func WithTrustedContext(provider func(conversationID string) map[string]string) AgentOption {
	return func(o *agentOptions) { o.trustedContext = provider }
}

func WithAgentMessageCallback(callback func(conversationID, text string)) AgentOption {
	return func(o *agentOptions) { o.onAgentMessage = callback }
}

func WithAudioChunkCallback(callback func(conversationID string, chunk synthesis.AudioChunk)) AgentOption {
	return func(o *agentOptions) { o.onAudioChunk = callback }
}

// Agent owns one conversation loop per conversation ID. Loops are created on
// first input and are fully independent: a slow action in one conversation
// never delays another.
type Agent struct {
	llm      llms.LLM
	pipeline *synthesis.Pipeline
	registry *actions.Registry
	runner   *ActionRunner
	phrases  PhraseProvider
	options  agentOptions

	mu            sync.Mutex
	conversations map[string]*conversationLoop
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAgent(llm llms.LLM, pipeline *synthesis.Pipeline, registry *actions.Registry, opts ...AgentOption) *Agent {
	options := agentOptions{
		chunkSize:      defaultChunkSize,
		modelTimeout:   defaultModelTimeout,
		actionTimeout:  defaultActionTimeout,
		onAgentMessage: func(string, string) {},
		onAudioChunk:   func(string, synthesis.AudioChunk) {},
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	agent := &Agent{
		llm:           llm,
		pipeline:      pipeline,
		registry:      registry,
		phrases:       NewPhraseRotation(defaultFillerPhrases...),
		options:       options,
		conversations: map[string]*conversationLoop{},
		ctx:           ctx,
		cancel:        cancel,
	}

	// The runner shares the agent's base context rather than any turn's, so
	// interrupting a turn never cancels an action it already dispatched.
	agent.runner = NewActionRunner(registry, agent.deliverActionResult, WithActionTimeout(options.actionTimeout))
	agent.wg.Add(1)
	go func() {
		defer agent.wg.Done()
		_ = agent.runner.Run(ctx)
	}()

	return agent
}

// SetPhraseProvider swaps the source of filler acknowledgement phrases.
func (a *Agent) SetPhraseProvider(phrases PhraseProvider) {
	if phrases != nil {
		a.phrases = phrases
	}
}

// EnqueueTranscription feeds one final human utterance into its conversation.
// If a turn is already producing output it is marked interrupted; the new
// utterance is buffered and processed once the current turn winds down.
func (a *Agent) EnqueueTranscription(conversationID, text string) bool {
	loop := a.loopFor(conversationID)
	if loop == nil {
		return false
	}
	loop.interruptCurrent()
	return loop.queue.Enqueue(events.NewTranscription(conversationID, text)) != nil
}

// Interrupt marks the conversation's in-flight turn interrupted without
// enqueuing anything, for early barge-in on interim transcriptions.
func (a *Agent) Interrupt(conversationID string) {
	a.mu.Lock()
	loop := a.conversations[conversationID]
	a.mu.Unlock()
	if loop != nil {
		loop.interruptCurrent()
	}
}

// Transcript returns the conversation's transcript, or nil if the
// conversation does not exist.
func (a *Agent) Transcript(conversationID string) *Transcript {
	a.mu.Lock()
	defer a.mu.Unlock()
	if loop, ok := a.conversations[conversationID]; ok {
		return loop.transcript
	}
	return nil
}

// State reports the conversation loop's current state, or LoopStateIdle for
// unknown conversations.
func (a *Agent) State(conversationID string) LoopState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if loop, ok := a.conversations[conversationID]; ok {
		return loop.state()
	}
	return LoopStateIdle
}

func (a *Agent) deliverActionResult(result events.ActionResult) {
	loop := a.loopFor(result.ConversationID())
	if loop == nil {
		logger.Warn("dropping action result for closed agent",
			"conversation_id", result.ConversationID(), "action", result.Kind(), "call_id", result.CallID())
		return
	}
	if loop.queue.Enqueue(result) == nil {
		logger.Warn("dropping action result for closed conversation",
			"conversation_id", result.ConversationID(), "action", result.Kind(), "call_id", result.CallID())
	}
}

func (a *Agent) loopFor(conversationID string) *conversationLoop {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}

	loop, ok := a.conversations[conversationID]
	if !ok {
		loop = newConversationLoop(a, conversationID)
		a.conversations[conversationID] = loop
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			loop.run(a.ctx)
		}()
	}
	return loop
}

// Close stops accepting input, lets in-flight actions deliver, and waits for
// every conversation loop to drain.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	loops := make([]*conversationLoop, 0, len(a.conversations))
	for _, loop := range a.conversations {
		loops = append(loops, loop)
	}
	a.mu.Unlock()

	a.runner.Close()
	for _, loop := range loops {
		loop.queue.Close()
	}
	a.wg.Wait()
	a.cancel()
}
