package orchestration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/callflow-core/core/actions"
	"github.com/koscakluka/callflow-core/core/events"
)

type failingAction struct {
	kind string
	err  error
}

func (a failingAction) Describe() actions.Descriptor {
	return actions.Descriptor{Kind: a.kind, Description: "always fails"}
}

func (a failingAction) Run(context.Context, actions.Input) (actions.Output, error) {
	return actions.Output{}, a.err
}

func runnerHarness(t *testing.T, registry *actions.Registry) (*ActionRunner, <-chan events.ActionResult) {
	t.Helper()
	results := make(chan events.ActionResult, 16)
	runner := NewActionRunner(registry, func(result events.ActionResult) { results <- result })

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = runner.Run(ctx)
	}()
	t.Cleanup(func() {
		runner.Close()
		cancel()
		wg.Wait()
	})
	return runner, results
}

func receiveResult(t *testing.T, results <-chan events.ActionResult) events.ActionResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("expected an action result")
		return events.ActionResult{}
	}
}

func TestActionRunnerDeliversQuietResult(t *testing.T) {
	registry := actions.NewRegistry()
	if err := registry.Register(actions.WaitAction{}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	runner, results := runnerHarness(t, registry)

	if !runner.Dispatch(actions.Input{
		CallID: "call-1", Kind: "wait", ConversationID: "conv-1", Arguments: `{"seconds":0}`,
	}) {
		t.Fatal("expected dispatch to be accepted")
	}

	result := receiveResult(t, results)
	if result.CallID() != "call-1" || result.ConversationID() != "conv-1" {
		t.Fatalf("expected result routed to the dispatching call, got %+v", result)
	}
	if result.IsError() {
		t.Fatalf("expected success, got error result %q", result.Result())
	}
	if !result.Quiet() {
		t.Fatal("expected the wait action's result to be quiet")
	}
}

func TestActionRunnerReportsUnknownKind(t *testing.T) {
	runner, results := runnerHarness(t, actions.NewRegistry())
	runner.Dispatch(actions.Input{CallID: "call-1", Kind: "nope", ConversationID: "conv-1"})

	result := receiveResult(t, results)
	if !result.IsError() {
		t.Fatal("expected unknown kind to produce an error result")
	}
	if result.Quiet() {
		t.Fatal("expected transport failures to be narrated")
	}
	if !strings.Contains(result.Result(), "unknown action kind") {
		t.Fatalf("expected unknown-kind message, got %q", result.Result())
	}
}

func TestActionRunnerReportsInvalidParamsAsApplicationFailure(t *testing.T) {
	registry := actions.NewRegistry()
	if err := registry.Register(actions.WaitAction{}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	runner, results := runnerHarness(t, registry)

	runner.Dispatch(actions.Input{
		CallID: "call-1", Kind: "wait", ConversationID: "conv-1",
		Arguments: `{"seconds":0,"fabricated":"value"}`,
	})

	result := receiveResult(t, results)
	if !result.IsError() {
		t.Fatal("expected invalid params to produce an error result")
	}
	if !strings.Contains(result.Result(), "invalid parameters") {
		t.Fatalf("expected invalid-parameters message, got %q", result.Result())
	}
	if result.Quiet() {
		t.Fatal("expected the failure to reach the model even for a quiet action")
	}
}

func TestActionRunnerTimesOutSlowActions(t *testing.T) {
	registry := actions.NewRegistry()
	if err := registry.Register(actions.WaitAction{}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}

	results := make(chan events.ActionResult, 1)
	runner := NewActionRunner(registry,
		func(result events.ActionResult) { results <- result },
		WithActionTimeout(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()
	defer runner.Close()

	runner.Dispatch(actions.Input{
		CallID: "call-1", Kind: "wait", ConversationID: "conv-1", Arguments: `{"seconds":10}`,
	})

	result := receiveResult(t, results)
	if !result.IsError() {
		t.Fatal("expected timed-out action to produce an error result")
	}
}
