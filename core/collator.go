package orchestration

import (
	"strings"
	"sync"

	"github.com/koscakluka/callflow-core/core/llms"
)

// collatedElement is either one complete sentence or, exactly once and last,
// a function call the stream ended with.
type collatedElement struct {
	Sentence     string
	FunctionCall *llms.FunctionCall
}

// streamCollator re-segments arbitrarily split model output into sentences.
// Fragments accumulate in a partial until a sentence terminator arrives;
// Elements blocks until sentences (and a possible terminal function call)
// are available.
type streamCollator struct {
	mu           sync.Mutex
	partial      string
	sentences    []string
	consumed     int
	functionCall *llms.FunctionCall
	inputClosed  bool
	aborted      bool
	updateSignal chan struct{}
}

func newStreamCollator() *streamCollator {
	return &streamCollator{updateSignal: make(chan struct{}, 1)}
}

// AddFragment appends a fragment of model output, emitting every sentence it
// completes. Fragments arriving after CloseInput are dropped.
func (c *streamCollator) AddFragment(fragment string) {
	c.mu.Lock()
	if c.inputClosed || c.aborted {
		c.mu.Unlock()
		return
	}

	text := c.partial + fragment
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?':
			if sentence := strings.TrimSpace(text[start : i+1]); sentence != "" {
				c.sentences = append(c.sentences, sentence)
			}
			start = i + 1
		case '\n':
			if sentence := strings.TrimSpace(text[start:i]); sentence != "" {
				c.sentences = append(c.sentences, sentence)
			}
			start = i + 1
		}
	}
	c.partial = text[start:]
	c.mu.Unlock()
	c.signalUpdate()
}

// SetFunctionCall records the call the stream ended with. It is emitted after
// every sentence, once input is closed.
func (c *streamCollator) SetFunctionCall(call llms.FunctionCall) {
	c.mu.Lock()
	if !c.inputClosed && !c.aborted {
		c.functionCall = &call
	}
	c.mu.Unlock()
	c.signalUpdate()
}

// CloseInput flushes any trailing partial as a final sentence and marks the
// stream complete.
func (c *streamCollator) CloseInput() {
	c.mu.Lock()
	if !c.inputClosed && !c.aborted {
		if sentence := strings.TrimSpace(c.partial); sentence != "" {
			c.sentences = append(c.sentences, sentence)
		}
		c.partial = ""
		c.inputClosed = true
	}
	c.mu.Unlock()
	c.signalUpdate()
}

// Elements yields sentences in order, then the terminal function call if one
// was set. It blocks while input is still open and returns once everything
// has been consumed or the collator is aborted.
func (c *streamCollator) Elements(yield func(collatedElement) bool) {
	for {
		c.mu.Lock()
		if c.aborted {
			c.mu.Unlock()
			return
		}

		if c.consumed < len(c.sentences) {
			sentence := c.sentences[c.consumed]
			c.consumed++
			c.mu.Unlock()
			if !yield(collatedElement{Sentence: sentence}) {
				return
			}
			continue
		}

		if c.inputClosed {
			call := c.functionCall
			c.functionCall = nil
			c.mu.Unlock()
			if call != nil {
				yield(collatedElement{FunctionCall: call})
			}
			return
		}

		c.mu.Unlock()
		<-c.updateSignal
	}
}

// Abort discards all pending output and unblocks Elements.
func (c *streamCollator) Abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	c.signalUpdate()
}

func (c *streamCollator) signalUpdate() {
	select {
	case c.updateSignal <- struct{}{}:
	default:
	}
}
