// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"

	"github.com/ManuGH/vitalscan/internal/fsm"
)

// State is the lifecycle state of a capture session.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateReviewing State = "reviewing"
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// States lists every state in lifecycle order.
var States = []State{StateIdle, StateRecording, StateReviewing, StateUploading, StateCompleted, StateFailed}

// IsTerminal reports whether only Reset leaves the state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Event drives a transition.
type Event string

const (
	EventRecord  Event = "record"
	EventSelect  Event = "select"
	EventStop    Event = "stop"
	EventFail    Event = "fail"
	EventSubmit  Event = "submit"
	EventRetake  Event = "retake"
	EventResolve Event = "resolve"
	EventReset   Event = "reset"
)

// Events lists every event.
var Events = []Event{EventRecord, EventSelect, EventStop, EventFail, EventSubmit, EventRetake, EventResolve, EventReset}

type guard = func(ctx context.Context, from State, event Event) error

// transitions is the complete edge set. Anything not listed is rejected.
func transitions(recordGuard guard) []fsm.Transition[State, Event] {
	t := []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EventRecord, To: StateRecording, Guard: recordGuard},
		{From: StateIdle, Event: EventSelect, To: StateReviewing},
		{From: StateRecording, Event: EventStop, To: StateReviewing},
		{From: StateRecording, Event: EventFail, To: StateFailed},
		{From: StateReviewing, Event: EventSubmit, To: StateUploading},
		{From: StateReviewing, Event: EventRetake, To: StateIdle},
		{From: StateUploading, Event: EventResolve, To: StateCompleted},
		{From: StateUploading, Event: EventFail, To: StateFailed},
	}
	for _, s := range States {
		t = append(t, fsm.Transition[State, Event]{From: s, Event: EventReset, To: StateIdle})
	}
	return t
}

func newMachine(recordGuard guard) *fsm.Machine[State, Event] {
	m, err := fsm.New(StateIdle, transitions(recordGuard))
	if err != nil {
		// the table is static; a duplicate is a programming error
		panic(err)
	}
	return m
}
