package actions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/koscakluka/callflow-core/core/llms"
)

// Registry holds the actions a conversation may dispatch, keyed by kind.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewRegistry() *Registry {
	return &Registry{actions: map[string]Action{}}
}

// Register adds an action. Kinds must be unique and non-empty.
func (r *Registry) Register(action Action) error {
	descriptor := action.Describe()
	if descriptor.Kind == "" {
		return fmt.Errorf("action has empty kind")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[descriptor.Kind]; ok {
		return fmt.Errorf("action %s already registered", descriptor.Kind)
	}
	r.actions[descriptor.Kind] = action
	return nil
}

func (r *Registry) Lookup(kind string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[kind]
	return action, ok
}

// Catalog renders every registered action as a model tool.
func (r *Registry) Catalog() []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []llms.Tool
	for _, action := range r.actions {
		descriptor := action.Describe()
		tools = append(tools, llms.Tool{
			Name:        descriptor.Kind,
			Description: descriptor.Description,
			Parameters:  descriptor.Parameters,
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}
