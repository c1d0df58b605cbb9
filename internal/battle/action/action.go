// Package action resolves a squad's chosen activity for one turn: attack,
// defend, skip, or an ability. Target selection and damage feedback suspend
// through continuations so nothing blocks the battle loop.
package action

import (
	"errors"
	"fmt"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
)

var (
	// ErrOnCooldown indicates an ability was chosen before its cooldown elapsed.
	ErrOnCooldown = errors.New("ability is on cooldown")
	// ErrNoTargets indicates no living squad satisfies the action's target rule.
	ErrNoTargets = errors.New("no valid targets")
	// ErrUnknownAbility indicates the actor does not have the requested ability.
	ErrUnknownAbility = errors.New("unknown ability")
)

// Kind identifies the action variant.
type Kind int

const (
	KindAttack Kind = iota
	KindDefend
	KindSkip
	KindAbility
)

func (k Kind) String() string {
	switch k {
	case KindAttack:
		return "attack"
	case KindDefend:
		return "defend"
	case KindSkip:
		return "skip"
	case KindAbility:
		return "ability"
	default:
		return "unknown"
	}
}

// State is the action lifecycle position.
type State int

const (
	StatePending State = iota
	StateAwaitingTarget
	// StateApplying means damage is applied and the presenter has not yet
	// acknowledged every hit.
	StateApplying
	StateResolved
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAwaitingTarget:
		return "awaiting_target"
	case StateApplying:
		return "applying"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Presenter plays visual feedback for applied damage and calls done once it
// has been acknowledged.
type Presenter interface {
	PlayDamage(target *combatant.Combatant, amount int, done func())
}

// Deps are the collaborators shared by every action of an encounter.
type Deps struct {
	Damage *DamageResolver
	// Presenter is optional; without one damage is acknowledged immediately.
	Presenter Presenter
	Cooldowns cooldown.Lookup
	// Candidates returns the living squads an action may target.
	Candidates func() []*combatant.Combatant
}

// Heal records hit points restored to one squad.
type Heal struct {
	Target *combatant.Combatant
	Amount int
}

// Outcome describes what a resolved action did.
type Outcome struct {
	Kind    Kind
	Actor   *combatant.Combatant
	Ability *combatant.Ability
	Targets []*combatant.Combatant
	Hits    []Hit
	Heals   []Heal
}

// Dealt sums the damage dealt across all hits.
func (o Outcome) Dealt() int {
	total := 0
	for _, h := range o.Hits {
		total += h.Dealt
	}
	return total
}

// Action is one squad's chosen activity for a turn. An action is used once:
// it resolves or is cancelled, never both.
type Action struct {
	kind      Kind
	actor     *combatant.Combatant
	ability   *combatant.Ability
	target    combatant.TargetType
	resolver  Resolver
	deps      Deps
	newPicker PickerFactory

	state   State
	picker  Picker
	outcome Outcome

	resolved  func(Outcome)
	cancelled func()
}

// NewAttack builds a basic attack against one enemy chosen by a picker.
func NewAttack(actor *combatant.Combatant, deps Deps, pickers PickerFactory) *Action {
	return &Action{
		kind:      KindAttack,
		actor:     actor,
		target:    combatant.TargetEnemy,
		resolver:  ResolverFor(combatant.TargetEnemy),
		deps:      deps,
		newPicker: pickers,
	}
}

// NewDefend builds a defend action. It resolves immediately.
func NewDefend(actor *combatant.Combatant) *Action {
	return &Action{kind: KindDefend, actor: actor}
}

// NewSkip builds a skip-turn action. It resolves immediately.
func NewSkip(actor *combatant.Combatant) *Action {
	return &Action{kind: KindSkip, actor: actor}
}

// NewAbility builds an action using the actor's ability id.
func NewAbility(actor *combatant.Combatant, abilityID string, deps Deps, pickers PickerFactory) (*Action, error) {
	ability, ok := actor.Ability(abilityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s", ErrUnknownAbility, actor.ID(), abilityID)
	}
	return &Action{
		kind:      KindAbility,
		actor:     actor,
		ability:   &ability,
		target:    ability.Target,
		resolver:  ResolverFor(ability.Target),
		deps:      deps,
		newPicker: pickers,
	}, nil
}

// Kind returns the action variant.
func (a *Action) Kind() Kind { return a.kind }

// Actor returns the squad taking the action.
func (a *Action) Actor() *combatant.Combatant { return a.actor }

// State returns the lifecycle position.
func (a *Action) State() State { return a.state }

// Ability returns the ability used, if any.
func (a *Action) Ability() (combatant.Ability, bool) {
	if a.ability == nil {
		return combatant.Ability{}, false
	}
	return *a.ability, true
}

// Outcome returns the result of a resolved action.
func (a *Action) Outcome() Outcome { return a.outcome }

// OnResolved registers the resolved notification.
func (a *Action) OnResolved(fn func(Outcome)) { a.resolved = fn }

// OnCancelled registers the cancelled notification.
func (a *Action) OnCancelled(fn func()) { a.cancelled = fn }

// Validate reports whether the action can be resolved right now.
func (a *Action) Validate() error {
	if a.actor == nil || !a.actor.Alive() {
		return fmt.Errorf("%w: actor is not alive", ErrNoTargets)
	}
	switch a.kind {
	case KindDefend, KindSkip:
		return nil
	case KindAbility:
		if a.deps.Cooldowns != nil && !a.deps.Cooldowns.IsReady(a.actor.ID(), a.ability.ID) {
			return fmt.Errorf("%w: %s has %d rounds left", ErrOnCooldown, a.ability.ID,
				a.deps.Cooldowns.Remaining(a.actor.ID(), a.ability.ID))
		}
		if a.target == combatant.TargetSelf {
			return nil
		}
	}
	if len(a.validTargets()) == 0 {
		return fmt.Errorf("%w: %s for %s", ErrNoTargets, a.target, a.actor.ID())
	}
	return nil
}

// Resolve starts resolution. Calls after the first, and calls on an action
// that fails validation, do nothing.
func (a *Action) Resolve() {
	if a.state != StatePending {
		return
	}
	if a.Validate() != nil {
		return
	}
	switch {
	case a.kind == KindDefend || a.kind == KindSkip:
		a.apply(nil)
	case a.target == combatant.TargetSelf:
		a.apply([]*combatant.Combatant{a.actor})
	case a.target.Single():
		a.awaitTarget()
	default:
		a.apply(a.validTargets())
	}
}

// Dispose cancels an unresolved action and releases its picker. It does
// nothing once the action has resolved. Disposal while damage feedback is
// still playing resolves the action at once, since the damage has already
// been applied; acknowledgments arriving later are ignored.
func (a *Action) Dispose() {
	switch a.state {
	case StateResolved, StateCancelled:
		return
	case StateApplying:
		a.finish()
		return
	}
	a.releasePicker()
	a.state = StateCancelled
	if a.cancelled != nil {
		a.cancelled()
	}
}

func (a *Action) awaitTarget() {
	if a.newPicker == nil {
		a.Dispose()
		return
	}
	a.state = StateAwaitingTarget
	a.picker = a.newPicker(a.actor, a.resolver)
	a.picker.RequestTarget(a.onTarget)
}

func (a *Action) onTarget(target *combatant.Combatant) {
	if a.state != StateAwaitingTarget {
		return
	}
	if target == nil || !a.resolver.Valid(a.actor, target) {
		a.Dispose()
		return
	}
	a.releasePicker()
	a.apply([]*combatant.Combatant{target})
}

func (a *Action) releasePicker() {
	if a.picker != nil {
		a.picker.Dispose()
		a.picker = nil
	}
}

func (a *Action) apply(targets []*combatant.Combatant) {
	a.state = StateApplying
	a.outcome = Outcome{Kind: a.kind, Actor: a.actor, Ability: a.ability, Targets: targets}
	switch a.kind {
	case KindAttack:
		for _, t := range targets {
			a.outcome.Hits = append(a.outcome.Hits, a.damage().Strike(a.actor, t))
		}
	case KindAbility:
		a.applyAbility(targets)
	}
	a.acknowledge()
}

func (a *Action) applyAbility(targets []*combatant.Combatant) {
	ab := a.ability
	for _, t := range targets {
		if ab.Power > 0 && !combatant.SameSide(a.actor.Faction(), t.Faction()) {
			a.outcome.Hits = append(a.outcome.Hits, a.damage().Resolve(a.actor, t, ab.DamageType, ab.Power))
		}
		if ab.HealPerUnit > 0 {
			healed := t.Heal(ab.HealPerUnit * a.actor.Troops())
			a.outcome.Heals = append(a.outcome.Heals, Heal{Target: t, Amount: healed})
		}
	}
}

// acknowledge waits for the presenter to confirm every hit before finishing.
func (a *Action) acknowledge() {
	presenter := a.deps.Presenter
	if presenter == nil || len(a.outcome.Hits) == 0 {
		a.finish()
		return
	}
	pending := len(a.outcome.Hits)
	for _, hit := range a.outcome.Hits {
		acked := false
		presenter.PlayDamage(hit.Defender, hit.Dealt, func() {
			if acked {
				return
			}
			acked = true
			pending--
			if pending == 0 {
				a.finish()
			}
		})
	}
}

func (a *Action) finish() {
	if a.state != StateApplying {
		return
	}
	a.state = StateResolved
	if a.resolved != nil {
		a.resolved(a.outcome)
	}
}

func (a *Action) damage() *DamageResolver {
	if a.deps.Damage == nil {
		a.deps.Damage = NewDamageResolver(nil)
	}
	return a.deps.Damage
}

func (a *Action) validTargets() []*combatant.Combatant {
	if a.target == combatant.TargetSelf {
		if a.resolver.Valid(a.actor, a.actor) {
			return []*combatant.Combatant{a.actor}
		}
		return nil
	}
	if a.deps.Candidates == nil {
		return nil
	}
	return ValidTargets(a.resolver, a.actor, a.deps.Candidates())
}
