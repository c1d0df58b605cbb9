// Package effect attaches triggered, stacking status effects to squads and
// activates them at lifecycle triggers.
package effect

import (
	"fmt"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

// Instance is one effect attached to one squad.
type Instance struct {
	Def       Definition
	Target    *combatant.Combatant
	Stacks    int
	Remaining int
	Ticks     int
}

// Engine owns every attached effect of an encounter.
type Engine struct {
	registry  map[string]Definition
	instances map[string][]*Instance
}

// NewEngine returns an engine with defs registered.
func NewEngine(defs ...Definition) (*Engine, error) {
	e := &Engine{
		registry:  make(map[string]Definition, len(defs)),
		instances: map[string][]*Instance{},
	}
	for _, def := range defs {
		if err := e.Register(def); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds or replaces a definition.
func (e *Engine) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	e.registry[def.ID] = def
	return nil
}

// Definition looks up a registered definition.
func (e *Engine) Definition(id string) (Definition, bool) {
	def, ok := e.registry[id]
	return def, ok
}

// ApplyID attaches the registered effect id to target.
func (e *Engine) ApplyID(id string, target *combatant.Combatant) ([]Event, error) {
	def, ok := e.registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, id)
	}
	return e.Apply(def, target), nil
}

// Apply attaches def to target, or reapplies it per its stacking policy.
func (e *Engine) Apply(def Definition, target *combatant.Combatant) []Event {
	if target == nil || !target.Alive() {
		return nil
	}
	if inst := e.find(def.ID, target); inst != nil {
		switch def.Stacking {
		case StackRefreshDuration:
			inst.Remaining = def.Length
			inst.Ticks = 0
			return []Event{e.event(EventRefreshed, inst, TriggerOnAttach)}
		case StackAddStacks:
			if inst.Stacks < def.maxStacks() {
				inst.Stacks++
				e.syncModifiers(inst)
			}
			inst.Remaining = def.Length
			return []Event{e.event(EventStacked, inst, TriggerOnAttach)}
		default:
			return []Event{e.event(EventIgnored, inst, TriggerOnAttach)}
		}
	}

	inst := &Instance{Def: def, Target: target, Stacks: 1, Remaining: def.Length}
	e.instances[target.ID()] = append(e.instances[target.ID()], inst)
	e.syncModifiers(inst)
	events := []Event{e.event(EventAttached, inst, TriggerOnAttach)}
	if def.activatesOn(TriggerOnAttach) {
		events = append(events, e.activate(inst, TriggerOnAttach)...)
	}
	return events
}

// Remove detaches effect id from target. It reports whether it was attached.
func (e *Engine) Remove(id string, target *combatant.Combatant) bool {
	inst := e.find(id, target)
	if inst == nil {
		return false
	}
	e.detach(inst)
	return true
}

// RemoveAll detaches every effect from target.
func (e *Engine) RemoveAll(target *combatant.Combatant) []Event {
	if target == nil {
		return nil
	}
	var events []Event
	for _, inst := range e.Active(target) {
		e.detach(inst)
		events = append(events, e.event(EventRemoved, inst, TriggerOnAttach))
	}
	delete(e.instances, target.ID())
	return events
}

// Trigger activates target's effects listening to t, then counts down
// duration-limited effects matching t.
func (e *Engine) Trigger(t Trigger, target *combatant.Combatant) []Event {
	if target == nil {
		return nil
	}
	var events []Event
	for _, inst := range e.Active(target) {
		if !e.attached(inst) {
			continue
		}
		if inst.Def.activatesOn(t) {
			events = append(events, e.activate(inst, t)...)
			if !e.attached(inst) {
				continue
			}
		}
		if countsDown(inst.Def.Duration, t) {
			inst.Remaining--
			if inst.Remaining <= 0 {
				e.detach(inst)
				events = append(events, e.event(EventExpired, inst, t))
			}
		}
	}
	return events
}

// Active returns target's attached effects in application order.
func (e *Engine) Active(target *combatant.Combatant) []*Instance {
	if target == nil {
		return nil
	}
	list := e.instances[target.ID()]
	out := make([]*Instance, len(list))
	copy(out, list)
	return out
}

// Has reports whether effect id is attached to target.
func (e *Engine) Has(id string, target *combatant.Combatant) bool {
	return e.find(id, target) != nil
}

func (e *Engine) activate(inst *Instance, t Trigger) []Event {
	target := inst.Target
	ev := e.event(EventActivated, inst, t)
	if inst.Def.Damage > 0 {
		amount := inst.Def.Damage*inst.Stacks - target.Defense(inst.Def.DamageType)
		if amount > 0 {
			ev.Damage = target.TakeDamage(amount)
		}
	}
	if inst.Def.Heal > 0 {
		ev.Healed = target.Heal(inst.Def.Heal * inst.Stacks)
	}
	events := []Event{ev}
	inst.Ticks++
	if inst.Def.MaxTicks > 0 && inst.Ticks >= inst.Def.MaxTicks {
		e.detach(inst)
		events = append(events, e.event(EventExpired, inst, t))
	}
	return events
}

func countsDown(kind DurationKind, t Trigger) bool {
	switch kind {
	case DurationTurns:
		return t == TriggerTurnEnd
	case DurationRounds:
		return t == TriggerRoundEnd
	default:
		return false
	}
}

func (e *Engine) syncModifiers(inst *Instance) {
	mods := make([]combatant.Modifier, 0, len(inst.Def.Modifiers))
	for _, m := range inst.Def.Modifiers {
		m.Amount *= float64(inst.Stacks)
		mods = append(mods, m)
	}
	inst.Target.SetModifiers(modifierSource(inst.Def.ID), mods)
}

func (e *Engine) detach(inst *Instance) {
	id := inst.Target.ID()
	list := e.instances[id]
	for i, candidate := range list {
		if candidate == inst {
			e.instances[id] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(e.instances[id]) == 0 {
		delete(e.instances, id)
	}
	inst.Target.RemoveModifiers(modifierSource(inst.Def.ID))
}

func (e *Engine) attached(inst *Instance) bool {
	for _, candidate := range e.instances[inst.Target.ID()] {
		if candidate == inst {
			return true
		}
	}
	return false
}

func (e *Engine) find(id string, target *combatant.Combatant) *Instance {
	if target == nil {
		return nil
	}
	for _, inst := range e.instances[target.ID()] {
		if inst.Def.ID == id {
			return inst
		}
	}
	return nil
}

func (e *Engine) event(kind EventKind, inst *Instance, t Trigger) Event {
	return Event{
		Kind:     kind,
		EffectID: inst.Def.ID,
		TargetID: inst.Target.ID(),
		Trigger:  t,
		Stacks:   inst.Stacks,
	}
}

func modifierSource(effectID string) string {
	return "effect:" + effectID
}
