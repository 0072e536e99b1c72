package events

import "fmt"

// ActionResult reports the outcome of a dispatched action back to the
// conversation that requested it. Quiet results close the turn without
// another model round-trip.
type ActionResult struct {
	Base
	kind      string
	callID    string
	arguments string
	result    string
	isError   bool
	quiet     bool
}

func NewActionResult(conversationID, kind, callID, arguments, result string, isError, quiet bool) ActionResult {
	return ActionResult{
		Base:      NewBase(conversationID),
		kind:      kind,
		callID:    callID,
		arguments: arguments,
		result:    result,
		isError:   isError,
		quiet:     quiet,
	}
}

func (r ActionResult) Kind() string      { return r.kind }
func (r ActionResult) CallID() string    { return r.callID }
func (r ActionResult) Arguments() string { return r.arguments }
func (r ActionResult) Result() string    { return r.result }
func (r ActionResult) IsError() bool     { return r.isError }
func (r ActionResult) Quiet() bool       { return r.quiet }

func (r ActionResult) String() string {
	if r.isError {
		return fmt.Sprintf("action %s failed: %s", r.kind, r.result)
	}
	return fmt.Sprintf("action %s completed: %s", r.kind, r.result)
}
