// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func TestMachine_FireFollowsTable(t *testing.T) {
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b"},
		{From: "b", Event: "go", To: "c"},
	})
	require.NoError(t, err)

	to, err := m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, state("b"), to)
	assert.True(t, m.Can("go"))

	to, err = m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, state("c"), to)
	assert.Equal(t, state("c"), m.State())
}

func TestMachine_UnknownTransitionIsError(t *testing.T) {
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b"},
	})
	require.NoError(t, err)

	from, err := m.Fire(context.Background(), "stop")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state("a"), from)
	assert.False(t, m.Can("stop"))
}

func TestMachine_GuardRejects(t *testing.T) {
	denied := errors.New("denied")
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b", Guard: func(context.Context, state, event) error { return denied }},
	})
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), "go")
	require.ErrorIs(t, err, denied)
	assert.Equal(t, state("a"), m.State())
}

func TestNew_DuplicateTransition(t *testing.T) {
	_, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b"},
		{From: "a", Event: "go", To: "c"},
	})
	require.Error(t, err)
}

func TestMachine_Allowed(t *testing.T) {
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "stop", To: "z"},
		{From: "a", Event: "go", To: "b"},
		{From: "b", Event: "back", To: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []event{"go", "stop"}, m.Allowed())

	_, err = m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, []event{"back"}, m.Allowed())

	_, err = m.Fire(context.Background(), "stop")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMachine_GuardSeesSourceState(t *testing.T) {
	var seen state
	m, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "go", To: "b", Guard: func(_ context.Context, from state, _ event) error {
			seen = from
			return nil
		}},
	})
	require.NoError(t, err)

	to, err := m.Fire(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, state("a"), seen)
	assert.Equal(t, state("b"), to)
}
