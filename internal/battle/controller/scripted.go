package controller

import (
	"time"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/round"
)

// Scripted plays a squad automatically: a ready ability with valid targets
// first, then a basic attack, then skipping the turn.
type Scripted struct {
	loop  *loop.Loop
	think time.Duration
}

// NewScripted returns a scripted controller that answers after think on l.
// A zero think or nil loop answers synchronously.
func NewScripted(l *loop.Loop, think time.Duration) *Scripted {
	return &Scripted{loop: l, think: think}
}

func (s *Scripted) RequestAction(turn round.Turn, ready func(*action.Action, error)) {
	decide := func() { ready(s.Choose(turn), nil) }
	if s.think <= 0 || s.loop == nil {
		decide()
		return
	}
	s.loop.After(s.think, decide)
}

// Choose picks the action for turn without waiting.
func (s *Scripted) Choose(turn round.Turn) *action.Action {
	pickers := action.ScriptedPickers(nil, 0, turn.Deps.Candidates)
	for _, ability := range turn.Actor.Abilities() {
		if !worthUsing(ability, turn) {
			continue
		}
		a, err := action.NewAbility(turn.Actor, ability.ID, turn.Deps, pickers)
		if err == nil && a.Validate() == nil {
			return a
		}
	}
	if a := action.NewAttack(turn.Actor, turn.Deps, pickers); a.Validate() == nil {
		return a
	}
	return action.NewSkip(turn.Actor)
}

// worthUsing skips pure heals while no friendly squad is hurt.
func worthUsing(ability combatant.Ability, turn round.Turn) bool {
	if ability.Power > 0 || len(ability.Effects) > 0 || ability.HealPerUnit == 0 {
		return true
	}
	if turn.Deps.Candidates == nil {
		return false
	}
	for _, c := range turn.Deps.Candidates() {
		if c.Alive() && combatant.SameSide(turn.Actor.Faction(), c.Faction()) && c.Health() < c.MaxHealth() {
			return true
		}
	}
	return false
}
