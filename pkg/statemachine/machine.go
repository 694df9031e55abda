package statemachine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoTransition is returned by Fire when the current state has no
// transition for the event.
var ErrNoTransition = errors.New("statemachine: no transition")

// TransitionHook is called after every successful transition.
type TransitionHook[S comparable, E comparable] func(from S, to S, event E)

// Machine is a small finite state machine keyed by (state, event).
//
// Hooks run after the state has changed and outside the machine's lock, so a
// hook may call Current or Can. Callers that need transitions to be atomic
// with their own data must serialize Fire themselves.
type Machine[S comparable, E comparable] struct {
	mu          sync.RWMutex
	current     S
	transitions map[S]map[E]S
	hooks       []TransitionHook[S, E]
}

// NewMachine creates a new state machine with the given initial state.
func NewMachine[S comparable, E comparable](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		current:     initial,
		transitions: make(map[S]map[E]S),
	}
}

// AddTransition registers from --event--> to.
func (m *Machine[S, E]) AddTransition(from S, event E, to S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.transitions[from] == nil {
		m.transitions[from] = make(map[E]S)
	}

	if _, exists := m.transitions[from][event]; exists {
		return fmt.Errorf("transition from %v on event %v already exists", from, event)
	}

	m.transitions[from][event] = to
	return nil
}

// Fire applies event to the current state and returns the states involved.
func (m *Machine[S, E]) Fire(event E) (from S, to S, err error) {
	m.mu.Lock()
	from = m.current
	to, ok := m.transitions[from][event]
	if !ok {
		m.mu.Unlock()
		return from, from, fmt.Errorf("%w from %v on event %v", ErrNoTransition, from, event)
	}
	m.current = to
	hooks := m.hooks
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(from, to, event)
	}
	return from, to, nil
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in state s.
func (m *Machine[S, E]) Is(s S) bool {
	return m.Current() == s
}

// Can checks if an event can be fired from the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.transitions[m.current][event]
	return ok
}

// OnTransition registers a hook that is called on every transition.
func (m *Machine[S, E]) OnTransition(hook TransitionHook[S, E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// AvailableEvents returns all events that can be fired from the current state.
func (m *Machine[S, E]) AvailableEvents() []E {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]E, 0, len(m.transitions[m.current]))
	for event := range m.transitions[m.current] {
		events = append(events, event)
	}
	return events
}
