package options

import (
	"context"
	"sync"
)

// Editor is a Source whose lists administrators can replace.
type Editor interface {
	Source
	Replace(ctx context.Context, field string, values []string) error
}

// Memory is a mutable in-process source.
type Memory struct {
	mu  sync.RWMutex
	set Set
}

// NewMemory starts from initial.
func NewMemory(initial Set) *Memory {
	return &Memory{set: initial}
}

// Current returns a copy of the lists.
func (m *Memory) Current(context.Context) (Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.set
	for _, f := range Fields {
		out, _ = out.With(f, m.set.Values(f))
	}
	return out, nil
}

// Replace swaps the list for field.
func (m *Memory) Replace(_ context.Context, field string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.set.With(field, values)
	if err != nil {
		return err
	}
	m.set = next
	return nil
}
