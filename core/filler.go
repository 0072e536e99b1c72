package orchestration

import "sync"

// PhraseProvider supplies the short phrase spoken while an action runs.
type PhraseProvider interface {
	NextPhrase() string
}

// PhraseRotation cycles through a fixed set of phrases in order, so repeated
// actions in one conversation do not sound identical.
type PhraseRotation struct {
	mu      sync.Mutex
	phrases []string
	next    int
}

func NewPhraseRotation(phrases ...string) *PhraseRotation {
	return &PhraseRotation{phrases: phrases}
}

func (p *PhraseRotation) NextPhrase() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.phrases) == 0 {
		return ""
	}
	phrase := p.phrases[p.next]
	p.next = (p.next + 1) % len(p.phrases)
	return phrase
}
