package round

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/effect"
	"github.com/louisbranch/skirmish/internal/battle/result"
)

type controllerFunc func(turn Turn, ready func(*action.Action, error))

func (f controllerFunc) RequestAction(turn Turn, ready func(*action.Action, error)) {
	f(turn, ready)
}

func attacker() controllerFunc {
	return func(turn Turn, ready func(*action.Action, error)) {
		ready(action.NewAttack(turn.Actor, turn.Deps, action.ScriptedPickers(nil, 0, turn.Deps.Candidates)), nil)
	}
}

func skipper() controllerFunc {
	return func(turn Turn, ready func(*action.Action, error)) {
		ready(action.NewSkip(turn.Actor), nil)
	}
}

func newSquad(t *testing.T, id string, faction combatant.Faction, count int, stats combatant.Stats, abilities ...combatant.Ability) *combatant.Combatant {
	t.Helper()
	c, err := combatant.New(id, combatant.Definition{ID: id, Stats: stats, Abilities: abilities}, faction, count)
	if err != nil {
		t.Fatalf("new %s: %v", id, err)
	}
	return c
}

func newHero(t *testing.T, abilities ...combatant.Ability) *combatant.Combatant {
	return newSquad(t, "hero", combatant.FactionHero, 1,
		combatant.Stats{HealthPerUnit: 100, MinDamage: 30, MaxDamage: 30, Initiative: 5}, abilities...)
}

// harmless enemies never deal damage.
func newGrunts(t *testing.T, count int) *combatant.Combatant {
	return newSquad(t, "grunts", combatant.FactionEnemy, count, combatant.Stats{HealthPerUnit: 50})
}

func byID(ctrls map[string]Controller) func(*combatant.Combatant) Controller {
	return func(c *combatant.Combatant) Controller { return ctrls[c.ID()] }
}

type recordingUI struct {
	queues     [][]string
	highlights []string
	resets     int
	abilities  int
}

func (u *recordingUI) RenderQueue(queue []*combatant.Combatant) {
	ids := make([]string, len(queue))
	for i, c := range queue {
		ids[i] = c.ID()
	}
	u.queues = append(u.queues, ids)
}

func (u *recordingUI) RenderAbilities([]combatant.Ability, cooldown.Lookup, *combatant.Combatant) {
	u.abilities++
}

func (u *recordingUI) Highlight(ability combatant.Ability) {
	u.highlights = append(u.highlights, ability.ID)
}

func (u *recordingUI) ResetHighlight() { u.resets++ }

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		want    State
		ok      bool
	}{
		{StateIdle, TriggerStart, StateRoundInit, true},
		{StateIdle, TriggerNext, StateIdle, false},
		{StateTurnInit, TriggerEndRound, StateRoundEnd, true},
		{StateTurnInit, TriggerSkip, StateTurnSkip, true},
		{StateTurnStart, TriggerSkip, StateTurnSkip, true},
		{StateTurnWaitAction, TriggerRetry, StateTurnWaitAction, true},
		{StateTurnWaitAction, TriggerResolved, StateTurnEnd, true},
		{StateTurnWaitAction, TriggerNext, StateTurnWaitAction, false},
		{StateTurnSkip, TriggerNext, StateTurnEnd, true},
		{StateRoundEnd, TriggerNext, StateRoundInit, true},
		{StateTurnStart, TriggerFinish, StateFinished, true},
		{StateFinished, TriggerFinish, StateFinished, false},
		{StateFinished, TriggerStart, StateFinished, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.trigger.String(), func(t *testing.T) {
			got, ok := next(tt.from, tt.trigger)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Fatalf("next = %s, %v, want %s, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestHeroGrindsDownSquadToVictory(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	var finished []result.Result
	var troopsAfterRound []int

	m := New(Config{
		Roster: []*combatant.Combatant{hero, grunts},
		Controllers: byID(map[string]Controller{
			"hero": attacker(),
			"grunts": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				troopsAfterRound = append(troopsAfterRound, grunts.Troops())
				attacker()(turn, ready)
			}),
		}),
		OnFinished: func(r result.Result) { finished = append(finished, r) },
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(finished) != 1 {
		t.Fatalf("finished %d times, want 1", len(finished))
	}
	res := finished[0]
	if res.Status != result.StatusVictory || res.Rounds != 7 {
		t.Fatalf("result = %s after %d rounds, want victory after 7", res.Status, res.Rounds)
	}
	if want := []int{4, 3, 3, 2, 1, 1}; !reflect.DeepEqual(troopsAfterRound, want) {
		t.Fatalf("troops per round = %v, want %v", troopsAfterRound, want)
	}
	if len(res.Friendly) != 1 || len(res.Enemy) != 0 {
		t.Fatalf("survivors = %+v", res)
	}
	if m.State() != StateFinished || len(m.Queue()) != 0 {
		t.Fatalf("state = %s, queue = %v", m.State(), m.Queue())
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("restart error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestHeroDeathIsDefeat(t *testing.T) {
	hero := newSquad(t, "hero", combatant.FactionHero, 1, combatant.Stats{HealthPerUnit: 10, MinDamage: 1, MaxDamage: 1})
	ally := newSquad(t, "ally", combatant.FactionAlly, 1, combatant.Stats{HealthPerUnit: 1000})
	enemy := newSquad(t, "ogre", combatant.FactionEnemy, 1,
		combatant.Stats{HealthPerUnit: 1000, MinDamage: 50, MaxDamage: 50, Initiative: 9})

	m := New(Config{
		Roster:      []*combatant.Combatant{hero, ally, enemy},
		Controllers: func(*combatant.Combatant) Controller { return attacker() },
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, ok := m.Result()
	if !ok {
		t.Fatal("expected result")
	}
	if res.Status != result.StatusDefeat || res.Rounds != 1 {
		t.Fatalf("result = %s after %d rounds, want defeat after 1", res.Status, res.Rounds)
	}
	if len(res.Friendly) != 1 || res.Friendly[0].DefinitionID != "ally" {
		t.Fatalf("friendly survivors = %+v", res.Friendly)
	}
}

func TestFleeWhileWaitingForAction(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	var pending func(*action.Action, error)
	var lastTurn Turn
	calls := 0

	m := New(Config{
		Roster: []*combatant.Combatant{hero, grunts},
		Controllers: byID(map[string]Controller{
			"hero": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				lastTurn, pending = turn, ready
			}),
			"grunts": skipper(),
		}),
		OnFinished: func(result.Result) { calls++ },
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.State() != StateTurnWaitAction || m.Active() != hero {
		t.Fatalf("state = %s, active = %v", m.State(), m.Active())
	}

	m.Flee()
	m.Flee()
	pending(action.NewAttack(hero, lastTurn.Deps, action.ScriptedPickers(nil, 0, lastTurn.Deps.Candidates)), nil)

	res, _ := m.Result()
	if calls != 1 || res.Status != result.StatusFlee {
		t.Fatalf("calls = %d, status = %s", calls, res.Status)
	}
	if grunts.Health() != 200 {
		t.Fatalf("late action applied damage: health = %d", grunts.Health())
	}
}

func TestDefendOncePerRoundAndRoundStartEffects(t *testing.T) {
	bleed := effect.Definition{ID: "bleed", Triggers: []effect.Trigger{effect.TriggerRoundStart},
		Damage: 1, DamageType: combatant.DamageTypeAbsolute}
	engine, err := effect.NewEngine(bleed)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	engine.Apply(bleed, hero)

	type seen struct {
		round    int
		actor    string
		defended bool
	}
	var turns []seen
	var m *Machine
	record := func(next controllerFunc) controllerFunc {
		return func(turn Turn, ready func(*action.Action, error)) {
			turns = append(turns, seen{turn.Round, turn.Actor.ID(), turn.Defended})
			if turn.Round == 2 {
				m.Flee()
				return
			}
			next(turn, ready)
		}
	}
	m = New(Config{
		Roster:  []*combatant.Combatant{hero, grunts},
		Effects: engine,
		Controllers: byID(map[string]Controller{
			"hero": record(func(turn Turn, ready func(*action.Action, error)) {
				ready(action.NewDefend(turn.Actor), nil)
			}),
			"grunts": record(skipper()),
		}),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []seen{
		{1, "hero", false},
		{1, "grunts", false},
		{1, "hero", true},
		{2, "hero", false},
	}
	if !reflect.DeepEqual(turns, want) {
		t.Fatalf("turns = %+v, want %+v", turns, want)
	}
	// Round-start effects fire on the first turn of each round only.
	if hero.Health() != 98 {
		t.Fatalf("hero health = %d, want 98", hero.Health())
	}
}

func TestControllerPanicSkipsTurn(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	var logs bytes.Buffer
	calls := 0

	m := New(Config{
		Roster: []*combatant.Combatant{hero, grunts},
		Controllers: byID(map[string]Controller{
			"hero": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				calls++
				if calls == 1 {
					panic("boom")
				}
				attacker()(turn, ready)
			}),
			"grunts": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				ready(nil, errors.New("no idea"))
			}),
		}),
		Logger: log.New(&logs, "", 0),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, _ := m.Result()
	if res.Status != result.StatusVictory || res.Rounds != 8 {
		t.Fatalf("result = %s after %d rounds, want victory after 8", res.Status, res.Rounds)
	}
	if !strings.Contains(logs.String(), "panicked: boom") {
		t.Fatalf("logs = %q", logs.String())
	}
}

type nilPicker struct{}

func (nilPicker) RequestTarget(selected func(*combatant.Combatant)) { selected(nil) }
func (nilPicker) Dispose()                                          {}

func TestCancelReturnsToWaitAction(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	var m *Machine
	requests := 0

	m = New(Config{
		Roster: []*combatant.Combatant{hero, grunts},
		Controllers: byID(map[string]Controller{
			"hero": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				if turn.Round == 2 {
					m.Flee()
					return
				}
				requests++
				pickers := action.ScriptedPickers(nil, 0, turn.Deps.Candidates)
				if requests == 1 {
					pickers = func(*combatant.Combatant, action.Resolver) action.Picker { return nilPicker{} }
				}
				ready(action.NewAttack(turn.Actor, turn.Deps, pickers), nil)
			}),
			"grunts": skipper(),
		}),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if requests != 2 {
		t.Fatalf("requests = %d, want 2", requests)
	}
	if grunts.Health() != 170 {
		t.Fatalf("grunts health = %d, want 170", grunts.Health())
	}
}

func TestAbilityCooldownAcrossRounds(t *testing.T) {
	smite := combatant.Ability{ID: "smite", Cooldown: 2, Target: combatant.TargetEnemy, Power: 1}
	hero := newHero(t, smite)
	grunts := newGrunts(t, 100)
	ui := &recordingUI{}
	var m *Machine
	var used []int

	m = New(Config{
		Roster: []*combatant.Combatant{hero, grunts},
		UI:     ui,
		Controllers: byID(map[string]Controller{
			"hero": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				if turn.Round == 6 {
					m.Flee()
					return
				}
				if !turn.Deps.Cooldowns.IsReady(turn.Actor.ID(), smite.ID) {
					ready(action.NewSkip(turn.Actor), nil)
					return
				}
				used = append(used, turn.Round)
				ready(action.NewAbility(turn.Actor, smite.ID, turn.Deps, action.ScriptedPickers(nil, 0, turn.Deps.Candidates)))
			}),
			"grunts": skipper(),
		}),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if want := []int{1, 4}; !reflect.DeepEqual(used, want) {
		t.Fatalf("ability used in rounds %v, want %v", used, want)
	}
	if want := []string{"smite", "smite"}; !reflect.DeepEqual(ui.highlights, want) {
		t.Fatalf("highlights = %v, want %v", ui.highlights, want)
	}
	if ui.resets < 2 || ui.abilities == 0 {
		t.Fatalf("resets = %d, ability renders = %d", ui.resets, ui.abilities)
	}
	if got := ui.queues[0]; !reflect.DeepEqual(got, []string{"hero", "grunts"}) {
		t.Fatalf("first queue = %v", got)
	}
}

func TestAbilityEffectsApplyToTargets(t *testing.T) {
	burn := effect.Definition{ID: "burn", Triggers: []effect.Trigger{effect.TriggerTurnStart},
		Damage: 5, DamageType: combatant.DamageTypeAbsolute}
	engine, err := effect.NewEngine(burn)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	ignite := combatant.Ability{ID: "ignite", Target: combatant.TargetEnemy, Effects: []string{"burn"}}
	hero := newHero(t, ignite)
	grunts := newGrunts(t, 4)
	var m *Machine

	m = New(Config{
		Roster:  []*combatant.Combatant{hero, grunts},
		Effects: engine,
		Controllers: byID(map[string]Controller{
			"hero": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				if turn.Round == 2 {
					m.Flee()
					return
				}
				ready(action.NewAbility(turn.Actor, ignite.ID, turn.Deps, action.ScriptedPickers(nil, 0, turn.Deps.Candidates)))
			}),
			"grunts": skipper(),
		}),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !engine.Has("burn", grunts) {
		t.Fatal("expected burn on grunts")
	}
	// Burn ticks once at the start of the grunts' turn in round one.
	if grunts.Health() != 195 {
		t.Fatalf("grunts health = %d, want 195", grunts.Health())
	}
}

func TestLoneHeroWithoutEnemiesIsVictory(t *testing.T) {
	hero := newHero(t)
	var finished []result.Result
	m := New(Config{
		Roster:      []*combatant.Combatant{hero},
		Controllers: func(*combatant.Combatant) Controller { return attacker() },
		OnFinished:  func(r result.Result) { finished = append(finished, r) },
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(finished) != 1 {
		t.Fatalf("finished %d times, want 1", len(finished))
	}
	res := finished[0]
	if res.Status != result.StatusVictory {
		t.Fatalf("status = %s, want victory", res.Status)
	}
	if len(res.Friendly) != 1 || res.Friendly[0].DefinitionID != "hero" || len(res.Enemy) != 0 {
		t.Fatalf("survivors = %+v", res)
	}
}

type heldPresenter struct {
	done []func()
}

func (p *heldPresenter) PlayDamage(_ *combatant.Combatant, _ int, done func()) {
	p.done = append(p.done, done)
}

func (p *heldPresenter) ackAll() {
	for len(p.done) > 0 {
		done := p.done[0]
		p.done = p.done[1:]
		done()
	}
}

func TestTurnWaitsForDamageAcknowledgment(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	view := &heldPresenter{}
	gruntTurns := 0
	m := New(Config{
		Roster:    []*combatant.Combatant{hero, grunts},
		Presenter: view,
		Controllers: byID(map[string]Controller{
			"hero": attacker(),
			"grunts": controllerFunc(func(turn Turn, ready func(*action.Action, error)) {
				gruntTurns++
				ready(action.NewSkip(turn.Actor), nil)
			}),
		}),
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if grunts.Health() != 170 || len(view.done) != 1 {
		t.Fatalf("health = %d, pending acks = %d", grunts.Health(), len(view.done))
	}
	if m.State() != StateTurnWaitAction || m.Active() != hero || gruntTurns != 0 {
		t.Fatalf("state = %s, active = %v, grunt turns = %d", m.State(), m.Active(), gruntTurns)
	}

	view.ackAll()
	if gruntTurns != 1 {
		t.Fatalf("grunt turns = %d after ack, want 1", gruntTurns)
	}
	if m.Active() != hero || m.Round() != 2 {
		t.Fatalf("active = %v in round %d, want hero in round 2", m.Active(), m.Round())
	}
	if grunts.Health() != 140 {
		t.Fatalf("health = %d, want 140", grunts.Health())
	}
}

func TestFleeWhileDamagePlays(t *testing.T) {
	hero := newHero(t)
	grunts := newGrunts(t, 4)
	view := &heldPresenter{}
	calls := 0
	m := New(Config{
		Roster:    []*combatant.Combatant{hero, grunts},
		Presenter: view,
		Controllers: byID(map[string]Controller{
			"hero":   attacker(),
			"grunts": skipper(),
		}),
		OnFinished: func(result.Result) { calls++ },
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Flee()
	view.ackAll()

	res, ok := m.Result()
	if !ok || calls != 1 || res.Status != result.StatusFlee {
		t.Fatalf("calls = %d, result = %+v, %v", calls, res, ok)
	}
	if grunts.Health() != 170 {
		t.Fatalf("health = %d, want 170", grunts.Health())
	}
}
