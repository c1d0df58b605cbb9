// Package controller decides actions for squads: Human relays player
// commands from the host, Scripted plays the squad automatically.
package controller

import (
	"errors"
	"fmt"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/round"
)

var (
	// ErrNotYourTurn indicates a command arrived while no turn is waiting on it.
	ErrNotYourTurn = errors.New("no turn is waiting for a command")
	// ErrAlreadyDefended indicates the squad already defended this round.
	ErrAlreadyDefended = errors.New("squad already defended this round")
	// ErrNothingToCancel indicates no action is waiting for a target.
	ErrNothingToCancel = errors.New("no action is waiting for a target")
)

// Human relays player commands. Attacks and single-target abilities wait for
// a pointer selection.
type Human struct {
	loop    *loop.Loop
	pointer action.PointerSource

	turn    round.Turn
	ready   func(*action.Action, error)
	current *action.Action
}

// NewHuman returns a controller picking targets from pointer.
func NewHuman(l *loop.Loop, pointer action.PointerSource) *Human {
	return &Human{loop: l, pointer: pointer}
}

func (h *Human) RequestAction(turn round.Turn, ready func(*action.Action, error)) {
	h.turn = turn
	h.ready = ready
	h.current = nil
}

// Waiting reports whether a turn is waiting for a command.
func (h *Human) Waiting() bool { return h.ready != nil }

// Turn returns the turn waiting for a command.
func (h *Human) Turn() (round.Turn, bool) { return h.turn, h.ready != nil }

// Attack starts a basic attack; the target comes from the pointer.
func (h *Human) Attack() error {
	if h.ready == nil {
		return ErrNotYourTurn
	}
	return h.submit(action.NewAttack(h.turn.Actor, h.turn.Deps, h.pickers()))
}

// Defend ends the turn and moves the squad to the back of the queue.
func (h *Human) Defend() error {
	if h.ready == nil {
		return ErrNotYourTurn
	}
	if h.turn.Defended {
		return ErrAlreadyDefended
	}
	return h.submit(action.NewDefend(h.turn.Actor))
}

// Skip ends the turn.
func (h *Human) Skip() error {
	if h.ready == nil {
		return ErrNotYourTurn
	}
	return h.submit(action.NewSkip(h.turn.Actor))
}

// UseAbility starts the ability id of the active squad.
func (h *Human) UseAbility(id string) error {
	if h.ready == nil {
		return ErrNotYourTurn
	}
	a, err := action.NewAbility(h.turn.Actor, id, h.turn.Deps, h.pickers())
	if err != nil {
		return err
	}
	return h.submit(a)
}

// Cancel abandons an action waiting for its target. The turn then waits for
// a new command.
func (h *Human) Cancel() error {
	a := h.current
	if a == nil || a.State() != action.StateAwaitingTarget {
		return ErrNothingToCancel
	}
	h.current = nil
	a.Dispose()
	return nil
}

// submit hands a valid action to the round machine. Invalid commands leave
// the turn waiting.
func (h *Human) submit(a *action.Action) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%s: %w", a.Kind(), err)
	}
	ready := h.ready
	h.ready = nil
	h.current = a
	ready(a, nil)
	return nil
}

func (h *Human) pickers() action.PickerFactory {
	return action.PointerPickers(h.loop, h.pointer)
}
