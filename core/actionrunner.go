package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/callflow-core/core/actions"
	"github.com/koscakluka/callflow-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultActionTimeout = 30 * time.Second

// ActionRunner executes dispatched actions and reports their results back to
// the conversation. Each dispatch runs at most once, on the runner's own
// context, so interrupting the turn that requested an action never cancels
// the action itself.
type ActionRunner struct {
	registry *actions.Registry
	queue    *EventQueue[actions.Input]
	timeout  time.Duration
	deliver  func(events.ActionResult)

	wg sync.WaitGroup
}

type ActionRunnerOption func(*ActionRunner)

func WithActionTimeout(timeout time.Duration) ActionRunnerOption {
	return func(r *ActionRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func NewActionRunner(registry *actions.Registry, deliver func(events.ActionResult), opts ...ActionRunnerOption) *ActionRunner {
	runner := &ActionRunner{
		registry: registry,
		queue:    NewEventQueue[actions.Input](),
		timeout:  defaultActionTimeout,
		deliver:  deliver,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Dispatch enqueues an action for execution. Reports whether the input was
// accepted.
func (r *ActionRunner) Dispatch(input actions.Input) bool {
	return r.queue.Enqueue(input) != nil
}

// Run consumes dispatched actions until the context is cancelled or the
// runner is closed. Each action runs in its own goroutine so a slow action
// does not hold up the next dispatch.
func (r *ActionRunner) Run(ctx context.Context) error {
	for {
		event, err := r.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				r.wg.Wait()
				return nil
			}
			return err
		}

		r.wg.Add(1)
		go func(input actions.Input) {
			defer r.wg.Done()
			r.deliver(r.execute(ctx, input))
		}(event.Payload())
	}
}

// Close stops accepting dispatches. Actions already running finish and their
// results are still delivered.
func (r *ActionRunner) Close() {
	r.queue.Close()
}

func (r *ActionRunner) execute(ctx context.Context, input actions.Input) events.ActionResult {
	ctx, span := tracer.Start(ctx, "execute action")
	defer span.End()
	span.SetAttributes(
		attribute.String("action.kind", input.Kind),
		attribute.String("action.call_id", input.CallID),
	)

	action, ok := r.registry.Lookup(input.Kind)
	if !ok {
		err := fmt.Errorf("unknown action kind: %s", input.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return events.NewActionResult(input.ConversationID, input.Kind, input.CallID, input.Arguments, err.Error(), true, false)
	}
	descriptor := action.Describe()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	output, err := action.Run(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var invalidParams *actions.InvalidParamsError
		if errors.As(err, &invalidParams) {
			// The model produced bad arguments; let it hear about the
			// failure and try again rather than failing the dispatch.
			return events.NewActionResult(input.ConversationID, input.Kind, input.CallID, input.Arguments, invalidParams.Error(), true, false)
		}
		return events.NewActionResult(input.ConversationID, input.Kind, input.CallID, input.Arguments, fmt.Sprintf("action %s failed: %s", input.Kind, err), true, false)
	}

	return events.NewActionResult(output.ConversationID, output.Kind, output.CallID, input.Arguments, output.Result, output.IsError, descriptor.Quiet && !output.IsError)
}
