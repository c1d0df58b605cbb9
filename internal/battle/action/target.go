package action

import (
	"time"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/loop"
)

// Resolver validates a candidate target for an actor.
type Resolver interface {
	Valid(actor, target *combatant.Combatant) bool
}

type selfResolver struct{}

func (selfResolver) Valid(actor, target *combatant.Combatant) bool {
	return actor != nil && actor == target && target.Alive()
}

type allyResolver struct{}

func (allyResolver) Valid(actor, target *combatant.Combatant) bool {
	return actor != nil && target != nil && target.Alive() &&
		combatant.SameSide(actor.Faction(), target.Faction())
}

type enemyResolver struct{}

func (enemyResolver) Valid(actor, target *combatant.Combatant) bool {
	return actor != nil && target != nil && target.Alive() &&
		target.Faction().Valid() && !combatant.SameSide(actor.Faction(), target.Faction())
}

// ResolverFor selects the resolver strategy for a target type.
func ResolverFor(t combatant.TargetType) Resolver {
	switch t {
	case combatant.TargetSelf:
		return selfResolver{}
	case combatant.TargetAlly, combatant.TargetAllAllies:
		return allyResolver{}
	default:
		return enemyResolver{}
	}
}

// ValidTargets filters candidates through r for actor.
func ValidTargets(r Resolver, actor *combatant.Combatant, candidates []*combatant.Combatant) []*combatant.Combatant {
	var out []*combatant.Combatant
	for _, c := range candidates {
		if r.Valid(actor, c) {
			out = append(out, c)
		}
	}
	return out
}

// Picker chooses a single target. RequestTarget begins listening and
// selected fires at most once; Dispose stops listening.
type Picker interface {
	RequestTarget(selected func(*combatant.Combatant))
	Dispose()
}

// PickerFactory builds the picker a controller uses for one action.
type PickerFactory func(actor *combatant.Combatant, r Resolver) Picker

// PointerSource reports the squad under the player's pointer when a
// selection was made since the last call.
type PointerSource interface {
	TakeSelection() (*combatant.Combatant, bool)
}

// PointerPicker polls a pointer source every host frame and selects the
// first valid squad the player points at.
type PointerPicker struct {
	loop     *loop.Loop
	source   PointerSource
	actor    *combatant.Combatant
	resolver Resolver
	cancel   func()
}

// NewPointerPicker returns a picker for human-controlled squads.
func NewPointerPicker(l *loop.Loop, source PointerSource, actor *combatant.Combatant, r Resolver) *PointerPicker {
	return &PointerPicker{loop: l, source: source, actor: actor, resolver: r}
}

// PointerPickers adapts NewPointerPicker into a PickerFactory.
func PointerPickers(l *loop.Loop, source PointerSource) PickerFactory {
	return func(actor *combatant.Combatant, r Resolver) Picker {
		return NewPointerPicker(l, source, actor, r)
	}
}

func (p *PointerPicker) RequestTarget(selected func(*combatant.Combatant)) {
	if p.cancel != nil || p.source == nil || selected == nil {
		return
	}
	p.cancel = p.loop.OnFrame(func(time.Time) {
		target, ok := p.source.TakeSelection()
		if !ok || !p.resolver.Valid(p.actor, target) {
			return
		}
		p.Dispose()
		selected(target)
	})
}

func (p *PointerPicker) Dispose() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// ScriptedPicker chooses the first valid candidate, optionally after a delay
// standing in for thinking time. It selects nil when nothing is valid.
type ScriptedPicker struct {
	loop       *loop.Loop
	delay      time.Duration
	candidates func() []*combatant.Combatant
	actor      *combatant.Combatant
	resolver   Resolver
	timer      *loop.Timer
	done       bool
}

// NewScriptedPicker returns a picker for AI-controlled squads.
func NewScriptedPicker(l *loop.Loop, delay time.Duration, candidates func() []*combatant.Combatant, actor *combatant.Combatant, r Resolver) *ScriptedPicker {
	return &ScriptedPicker{loop: l, delay: delay, candidates: candidates, actor: actor, resolver: r}
}

// ScriptedPickers adapts NewScriptedPicker into a PickerFactory.
func ScriptedPickers(l *loop.Loop, delay time.Duration, candidates func() []*combatant.Combatant) PickerFactory {
	return func(actor *combatant.Combatant, r Resolver) Picker {
		return NewScriptedPicker(l, delay, candidates, actor, r)
	}
}

func (p *ScriptedPicker) RequestTarget(selected func(*combatant.Combatant)) {
	if p.done || p.timer != nil || selected == nil {
		return
	}
	choose := func() {
		if p.done {
			return
		}
		p.done = true
		var pick *combatant.Combatant
		if p.candidates != nil {
			if valid := ValidTargets(p.resolver, p.actor, p.candidates()); len(valid) > 0 {
				pick = valid[0]
			}
		}
		selected(pick)
	}
	if p.delay <= 0 || p.loop == nil {
		choose()
		return
	}
	p.timer = p.loop.After(p.delay, choose)
}

func (p *ScriptedPicker) Dispose() {
	p.done = true
	p.timer.Stop()
}
