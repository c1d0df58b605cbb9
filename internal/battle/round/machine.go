// Package round drives rounds and turns of combat: it rebuilds the turn
// queue, asks each squad's controller for an action, fires effect triggers,
// and reports the battle result once a side is eliminated or the hero falls.
package round

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/effect"
	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/turnqueue"
)

const tracerName = "github.com/louisbranch/skirmish/internal/battle/round"

// ErrAlreadyStarted indicates Start was called twice.
var ErrAlreadyStarted = errors.New("round machine already started")

// errNoController marks squads nobody controls.
var errNoController = errors.New("no controller")

// UI receives refresh calls. Every method must return promptly.
type UI interface {
	RenderQueue(queue []*combatant.Combatant)
	RenderAbilities(abilities []combatant.Ability, cooldowns cooldown.Lookup, active *combatant.Combatant)
	Highlight(ability combatant.Ability)
	ResetHighlight()
}

// Turn is what a controller sees when asked for an action.
type Turn struct {
	Round int
	Actor *combatant.Combatant
	// Defended reports whether the actor already defended this round.
	Defended bool
	Deps     action.Deps
}

// Controller produces actions for the squads it controls. ready may be
// called synchronously or from a later loop continuation; a nil action or a
// non-nil error skips the turn.
type Controller interface {
	RequestAction(turn Turn, ready func(*action.Action, error))
}

// Rng is the randomness the machine shares with the turn queue and the
// damage resolver. *math/rand.Rand satisfies it.
type Rng interface {
	Intn(n int) int
	Float64() float64
}

// Config wires a machine to its collaborators. Only Roster and
// Controllers are required.
type Config struct {
	Roster      []*combatant.Combatant
	Controllers func(*combatant.Combatant) Controller
	Effects     *effect.Engine
	Cooldowns   *cooldown.Ledger
	Rng         Rng
	UI          UI
	Presenter   action.Presenter
	Logger      *log.Logger
	Verbose     bool
	Tracer      trace.Tracer
	// OnFinished receives the result exactly once.
	OnFinished func(result.Result)
}

// Machine is the round/turn state machine. It is driven from the battle
// loop and is not safe for concurrent use.
type Machine struct {
	cfg       Config
	log       *log.Logger
	tracer    trace.Tracer
	ctx       context.Context
	effects   *effect.Engine
	cooldowns *cooldown.Ledger
	damage    *action.DamageResolver

	state      State
	processing bool
	pending    []Trigger

	roster   []*combatant.Combatant
	queue    *turnqueue.Queue
	round    int
	active   *combatant.Combatant
	current  *action.Action
	waitSeq  uint64
	defended map[*combatant.Combatant]bool
	started  map[*combatant.Combatant]bool
	moved    bool

	roundSpan trace.Span
	roundCtx  context.Context
	turnSpan  trace.Span

	fled   bool
	result *result.Result
}

// New returns a machine in StateIdle.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	effects := cfg.Effects
	if effects == nil {
		effects, _ = effect.NewEngine()
	}
	ledger := cfg.Cooldowns
	if ledger == nil {
		ledger = cooldown.NewLedger()
	}
	var rng action.Roller
	if cfg.Rng != nil {
		rng = cfg.Rng
	}
	roster := make([]*combatant.Combatant, 0, len(cfg.Roster))
	for _, c := range cfg.Roster {
		if c != nil {
			roster = append(roster, c)
		}
	}
	return &Machine{
		cfg:       cfg,
		log:       logger,
		tracer:    tracer,
		ctx:       context.Background(),
		effects:   effects,
		cooldowns: ledger,
		damage:    action.NewDamageResolver(rng),
		roster:    roster,
		queue:     turnqueue.New(),
		defended:  map[*combatant.Combatant]bool{},
		started:   map[*combatant.Combatant]bool{},
	}
}

// Start begins round one.
func (m *Machine) Start(ctx context.Context) error {
	if m.state != StateIdle {
		return ErrAlreadyStarted
	}
	if ctx != nil {
		m.ctx = ctx
	}
	m.Fire(TriggerStart)
	return nil
}

// Flee ends the encounter with a Flee verdict. It does nothing once finished.
func (m *Machine) Flee() {
	if m.state == StateFinished || m.fled {
		return
	}
	m.fled = true
	m.Fire(TriggerFinish)
}

// Fire requests a transition. Triggers fired while another transition is
// being processed are queued and processed in order afterwards.
func (m *Machine) Fire(t Trigger) {
	m.pending = append(m.pending, t)
	if m.processing {
		return
	}
	m.processing = true
	defer func() { m.processing = false }()
	for len(m.pending) > 0 {
		t := m.pending[0]
		m.pending = m.pending[1:]
		to, ok := next(m.state, t)
		if !ok {
			m.logf("ignored %s in %s", t, m.state)
			continue
		}
		from := m.state
		m.state = to
		m.logf("%s --%s--> %s", from, t, to)
		m.enter(to)
	}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Round returns the current round number, starting at one.
func (m *Machine) Round() int { return m.round }

// Active returns the squad whose turn it is, if any.
func (m *Machine) Active() *combatant.Combatant { return m.active }

// Queue returns the remaining turn order of the current round.
func (m *Machine) Queue() []*combatant.Combatant { return m.queue.Entries() }

// Roster returns the squads still in the encounter.
func (m *Machine) Roster() []*combatant.Combatant {
	out := make([]*combatant.Combatant, len(m.roster))
	copy(out, m.roster)
	return out
}

// Cooldowns exposes the read side of the cooldown ledger.
func (m *Machine) Cooldowns() cooldown.Lookup { return m.cooldowns }

// Effects returns the effect engine driven by the machine.
func (m *Machine) Effects() *effect.Engine { return m.effects }

// Result returns the verdict once the machine has finished.
func (m *Machine) Result() (result.Result, bool) {
	if m.result == nil {
		return result.Result{}, false
	}
	return *m.result, true
}

func (m *Machine) enter(s State) {
	switch s {
	case StateRoundInit:
		m.enterRoundInit()
	case StateTurnInit:
		m.enterTurnInit()
	case StateTurnStart:
		m.enterTurnStart()
	case StateTurnWaitAction:
		m.enterWaitAction()
	case StateTurnSkip:
		m.pending = append(m.pending, TriggerNext)
	case StateTurnEnd:
		m.enterTurnEnd()
	case StateRoundEnd:
		m.enterRoundEnd()
	case StateFinished:
		m.finalize()
	}
}

func (m *Machine) enterRoundInit() {
	m.round++
	m.roundCtx, m.roundSpan = m.tracer.Start(m.ctx, "battle.round",
		trace.WithAttributes(attribute.Int("battle.round", m.round)))
	clear(m.defended)
	clear(m.started)
	m.cooldowns.Tick()
	m.queue.Rebuild(m.roster, m.rng())
	m.logf("round %d queue %v", m.round, m.queue.Entries())
	m.renderQueue()
	m.pending = append(m.pending, TriggerNext)
}

func (m *Machine) enterTurnInit() {
	for {
		head, ok := m.queue.Head()
		if !ok {
			m.pending = append(m.pending, TriggerEndRound)
			return
		}
		if head.Alive() {
			m.active = head
			break
		}
		m.queue.PopFront()
	}
	m.moved = false
	_, m.turnSpan = m.tracer.Start(m.roundCtx, "battle.turn",
		trace.WithAttributes(
			attribute.Int("battle.round", m.round),
			attribute.String("battle.combatant", m.active.ID()),
			attribute.String("battle.faction", m.active.Faction().String()),
		))
	m.pending = append(m.pending, TriggerNext)
}

func (m *Machine) enterTurnStart() {
	c := m.active
	if !m.started[c] {
		m.started[c] = true
		m.trigger(effect.TriggerRoundStart, c)
	}
	m.trigger(effect.TriggerTurnStart, c)
	if m.cfg.UI != nil {
		m.cfg.UI.RenderAbilities(c.Abilities(), m.cooldowns, c)
	}
	if !c.Alive() {
		m.logf("%s fell to its own effects", c.ID())
		m.pending = append(m.pending, TriggerSkip)
		return
	}
	m.pending = append(m.pending, TriggerNext)
}

func (m *Machine) enterWaitAction() {
	m.waitSeq++
	seq := m.waitSeq
	c := m.active
	var ctrl Controller
	if m.cfg.Controllers != nil {
		ctrl = m.cfg.Controllers(c)
	}
	if ctrl == nil {
		m.skip(seq, fmt.Errorf("%w for %s", errNoController, c.ID()))
		return
	}
	turn := Turn{
		Round:    m.round,
		Actor:    c,
		Defended: m.defended[c],
		Deps: action.Deps{
			Damage:     m.damage,
			Presenter:  m.cfg.Presenter,
			Cooldowns:  m.cooldowns,
			Candidates: m.living,
		},
	}
	m.requestAction(ctrl, turn, seq)
}

// requestAction recovers controller panics so a broken controller only
// costs its squad the turn.
func (m *Machine) requestAction(ctrl Controller, turn Turn, seq uint64) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Printf("controller for %s panicked: %v", turn.Actor.ID(), r)
			m.skip(seq, nil)
		}
	}()
	ctrl.RequestAction(turn, func(a *action.Action, err error) {
		m.onAction(seq, a, err)
	})
}

func (m *Machine) waiting(seq uint64) bool {
	return m.state == StateTurnWaitAction && seq == m.waitSeq && m.current == nil
}

func (m *Machine) onAction(seq uint64, a *action.Action, err error) {
	if !m.waiting(seq) {
		if a != nil {
			a.Dispose()
		}
		return
	}
	if err != nil || a == nil {
		m.skip(seq, err)
		return
	}
	if a.Actor() != m.active {
		m.skip(seq, fmt.Errorf("action for %v during %s's turn", a.Actor(), m.active.ID()))
		return
	}
	if a.Kind() == action.KindDefend && m.defended[m.active] {
		m.skip(seq, fmt.Errorf("%s already defended in round %d", m.active.ID(), m.round))
		return
	}
	if err := a.Validate(); err != nil {
		m.skip(seq, err)
		return
	}

	m.current = a
	if m.turnSpan != nil {
		m.turnSpan.SetAttributes(attribute.String("battle.action", a.Kind().String()))
	}
	if ability, ok := a.Ability(); ok && m.cfg.UI != nil {
		m.cfg.UI.Highlight(ability)
	}
	a.OnResolved(func(o action.Outcome) {
		if m.current != a || m.state != StateTurnWaitAction {
			return
		}
		m.onResolved(o)
	})
	a.OnCancelled(func() {
		if m.current != a || m.state != StateTurnWaitAction {
			return
		}
		m.current = nil
		m.resetHighlight()
		m.logf("%s cancelled %s", m.active.ID(), a.Kind())
		m.Fire(TriggerRetry)
	})
	a.Resolve()
}

func (m *Machine) skip(seq uint64, reason error) {
	if m.state != StateTurnWaitAction || seq != m.waitSeq {
		return
	}
	if reason != nil {
		m.logf("%s skips: %v", m.active.ID(), reason)
	}
	if a := m.current; a != nil {
		m.current = nil
		a.Dispose()
	}
	m.Fire(TriggerSkip)
}

func (m *Machine) onResolved(o action.Outcome) {
	actor := o.Actor
	m.resetHighlight()
	m.trigger(effect.TriggerOnAnyAction, actor)
	switch o.Kind {
	case action.KindDefend:
		m.trigger(effect.TriggerOnDefend, actor)
	case action.KindSkip:
		m.trigger(effect.TriggerOnSkip, actor)
	case action.KindAttack:
		m.trigger(effect.TriggerOnAttack, actor)
	case action.KindAbility:
		if o.Ability != nil {
			m.cooldowns.Trigger(actor, *o.Ability)
			m.trigger(effect.TriggerOnAbilityUse, actor)
			for _, target := range o.Targets {
				for _, id := range o.Ability.Effects {
					events, err := m.effects.ApplyID(id, target)
					if err != nil {
						m.log.Printf("ability %s: %v", o.Ability.ID, err)
						continue
					}
					m.logEvents(events)
				}
			}
		}
	}
	for _, hit := range o.Hits {
		m.logf("%s hits %s for %d (missed=%v crit=%v), %d troops left",
			hit.Attacker.ID(), hit.Defender.ID(), hit.Dealt, hit.Missed, hit.Crit, hit.TroopsAfter)
		if hit.Dealt <= 0 {
			continue
		}
		m.trigger(effect.TriggerOnDealDamage, hit.Attacker)
		m.trigger(effect.TriggerOnApplyDamage, hit.Defender)
	}

	m.current = nil
	switch o.Kind {
	case action.KindDefend:
		m.defended[actor] = true
		m.moved = m.queue.MoveToBack(actor)
		m.Fire(TriggerSkip)
	case action.KindSkip:
		m.Fire(TriggerSkip)
	default:
		m.Fire(TriggerResolved)
	}
}

func (m *Machine) enterTurnEnd() {
	c := m.active
	if c != nil && c.Alive() {
		m.trigger(effect.TriggerTurnEnd, c)
	}
	if !m.moved {
		if head, ok := m.queue.Head(); ok && head == c {
			m.queue.PopFront()
		}
	}
	m.removeDead()
	m.active = nil
	m.current = nil
	m.moved = false
	m.endTurnSpan()
	m.renderQueue()
	if m.over() {
		m.pending = append(m.pending, TriggerFinish)
		return
	}
	m.pending = append(m.pending, TriggerNext)
}

func (m *Machine) enterRoundEnd() {
	for _, c := range m.Roster() {
		if c.Alive() {
			m.trigger(effect.TriggerRoundEnd, c)
		}
	}
	m.removeDead()
	m.endRoundSpan()
	if m.over() {
		m.pending = append(m.pending, TriggerFinish)
		return
	}
	m.pending = append(m.pending, TriggerNext)
}

func (m *Machine) finalize() {
	if m.result != nil {
		return
	}
	m.pending = nil
	if a := m.current; a != nil {
		m.current = nil
		a.Dispose()
	}
	m.resetHighlight()
	m.queue.Clear()
	m.active = nil

	status := result.StatusVictory
	switch {
	case m.fled:
		status = result.StatusFlee
	case !m.heroAlive():
		status = result.StatusDefeat
	case m.count(true) == 0:
		status = result.StatusDefeat
	}
	res := result.Build(status, m.round, m.roster)
	m.result = &res
	m.logf("battle finished: %s after %d rounds", status, m.round)

	if m.turnSpan != nil {
		m.turnSpan.SetStatus(codes.Ok, "")
	}
	m.endTurnSpan()
	if m.roundSpan != nil {
		m.roundSpan.SetAttributes(attribute.String("battle.status", status.String()))
	}
	m.endRoundSpan()
	if m.cfg.OnFinished != nil {
		m.cfg.OnFinished(res)
	}
}

// over reports whether the encounter is decided.
func (m *Machine) over() bool {
	if len(m.roster) == 0 || !m.heroAlive() {
		return true
	}
	friendly, enemy := m.count(true), m.count(false)
	return (friendly == 0) != (enemy == 0)
}

func (m *Machine) heroAlive() bool {
	for _, c := range m.roster {
		if c.IsHero() && c.Alive() {
			return true
		}
	}
	return false
}

func (m *Machine) count(friendly bool) int {
	n := 0
	for _, c := range m.roster {
		if c.Alive() && c.Faction().Friendly() == friendly {
			n++
		}
	}
	return n
}

func (m *Machine) living() []*combatant.Combatant {
	out := make([]*combatant.Combatant, 0, len(m.roster))
	for _, c := range m.roster {
		if c.Alive() {
			out = append(out, c)
		}
	}
	return out
}

func (m *Machine) removeDead() {
	m.queue.RemoveDead()
	kept := m.roster[:0]
	for _, c := range m.roster {
		if c.Alive() {
			kept = append(kept, c)
			continue
		}
		m.logf("%s was destroyed", c.ID())
		m.logEvents(m.effects.RemoveAll(c))
		m.cooldowns.Forget(c.ID())
		delete(m.defended, c)
		delete(m.started, c)
	}
	clear(m.roster[len(kept):])
	m.roster = kept
}

func (m *Machine) trigger(t effect.Trigger, c *combatant.Combatant) {
	m.logEvents(m.effects.Trigger(t, c))
}

func (m *Machine) logEvents(events []effect.Event) {
	for _, ev := range events {
		m.logf("effect %s %s on %s (stacks=%d damage=%d healed=%d)",
			ev.EffectID, ev.Kind, ev.TargetID, ev.Stacks, ev.Damage, ev.Healed)
	}
}

func (m *Machine) renderQueue() {
	if m.cfg.UI != nil {
		m.cfg.UI.RenderQueue(m.queue.Entries())
	}
}

func (m *Machine) resetHighlight() {
	if m.cfg.UI != nil {
		m.cfg.UI.ResetHighlight()
	}
}

func (m *Machine) rng() turnqueue.Roller {
	if m.cfg.Rng == nil {
		return nil
	}
	return m.cfg.Rng
}

func (m *Machine) endTurnSpan() {
	if m.turnSpan != nil {
		m.turnSpan.End()
		m.turnSpan = nil
	}
}

func (m *Machine) endRoundSpan() {
	if m.roundSpan != nil {
		m.roundSpan.End()
		m.roundSpan = nil
	}
}

func (m *Machine) logf(format string, args ...any) {
	if m.cfg.Verbose {
		m.log.Printf(format, args...)
	}
}
