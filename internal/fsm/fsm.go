// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsm runs a table-driven state machine. Only edges present in the
// table are legal.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidTransition is returned when the table has no edge for the
// current state and the fired event.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition is one edge. A non-nil Guard can veto it; the state is left
// unchanged and the guard's error returned.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
	Guard func(ctx context.Context, from S, event E) error
}

type edge[S ~string, E ~string] struct {
	from  S
	event E
}

// Machine holds the current state. Guards run under the machine's lock and
// must not call back into it.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	edges map[edge[S, E]]Transition[S, E]
}

// New returns a machine in initial. The table may not list the same
// (From, Event) pair twice.
func New[S ~string, E ~string](initial S, table []Transition[S, E]) (*Machine[S, E], error) {
	edges := make(map[edge[S, E]]Transition[S, E], len(table))
	for _, t := range table {
		k := edge[S, E]{t.From, t.Event}
		if prev, dup := edges[k]; dup {
			return nil, fmt.Errorf("fsm: %s on %s leads to both %s and %s", t.From, t.Event, prev.To, t.To)
		}
		edges[k] = t
	}
	return &Machine[S, E]{state: initial, edges: edges}, nil
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event has an edge out of the current state. Guards are
// not consulted.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[edge[S, E]{m.state, event}]
	return ok
}

// Allowed lists the events with an edge out of the current state, sorted.
func (m *Machine[S, E]) Allowed() []E {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []E
	for k := range m.edges {
		if k.from == m.state {
			out = append(out, k.event)
		}
	}
	slices.Sort(out)
	return out
}

// Fire applies event and returns the new state. On error the returned state
// is the unchanged current one.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.edges[edge[S, E]{m.state, event}]
	if !ok {
		return m.state, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, m.state, event)
	}
	if t.Guard != nil {
		if err := t.Guard(ctx, m.state, event); err != nil {
			return m.state, err
		}
	}
	m.state = t.To
	return m.state, nil
}
