package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/cooldown"
	"github.com/louisbranch/skirmish/internal/battle/loop"
	"github.com/louisbranch/skirmish/internal/battle/round"
)

type pointer struct {
	target *combatant.Combatant
}

func (p *pointer) TakeSelection() (*combatant.Combatant, bool) {
	if p.target == nil {
		return nil, false
	}
	c := p.target
	p.target = nil
	return c, true
}

func newSquad(t *testing.T, id string, faction combatant.Faction, count int, stats combatant.Stats, abilities ...combatant.Ability) *combatant.Combatant {
	t.Helper()
	c, err := combatant.New(id, combatant.Definition{ID: id, Stats: stats, Abilities: abilities}, faction, count)
	if err != nil {
		t.Fatalf("new %s: %v", id, err)
	}
	return c
}

type battle struct {
	loop    *loop.Loop
	pointer *pointer
	human   *Human
	hero    *combatant.Combatant
	grunts  *combatant.Combatant
	rounds  *round.Machine
}

func newBattle(t *testing.T, abilities ...combatant.Ability) *battle {
	t.Helper()
	b := &battle{loop: loop.New(time.Unix(0, 0)), pointer: &pointer{}}
	b.human = NewHuman(b.loop, b.pointer)
	b.hero = newSquad(t, "hero", combatant.FactionHero, 1,
		combatant.Stats{HealthPerUnit: 100, MinDamage: 30, MaxDamage: 30, Initiative: 5}, abilities...)
	b.grunts = newSquad(t, "grunts", combatant.FactionEnemy, 4, combatant.Stats{HealthPerUnit: 50})
	ai := NewScripted(nil, 0)
	b.rounds = round.New(round.Config{
		Roster: []*combatant.Combatant{b.hero, b.grunts},
		Controllers: func(c *combatant.Combatant) round.Controller {
			if c.Faction().Friendly() {
				return b.human
			}
			return ai
		},
	})
	if err := b.rounds.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !b.human.Waiting() {
		t.Fatal("expected the hero's turn")
	}
	return b
}

func TestHumanRejectsCommandsOutsideTurn(t *testing.T) {
	h := NewHuman(nil, nil)
	for name, cmd := range map[string]func() error{
		"attack":  h.Attack,
		"defend":  h.Defend,
		"skip":    h.Skip,
		"ability": func() error { return h.UseAbility("x") },
	} {
		if err := cmd(); !errors.Is(err, ErrNotYourTurn) {
			t.Fatalf("%s error = %v, want %v", name, err, ErrNotYourTurn)
		}
	}
	if err := h.Cancel(); !errors.Is(err, ErrNothingToCancel) {
		t.Fatalf("cancel error = %v, want %v", err, ErrNothingToCancel)
	}
}

func TestHumanAttackWaitsForPointer(t *testing.T) {
	b := newBattle(t)
	if err := b.human.Attack(); err != nil {
		t.Fatalf("attack: %v", err)
	}
	if b.human.Waiting() {
		t.Fatal("turn still waiting after a command")
	}
	if err := b.human.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !b.human.Waiting() {
		t.Fatal("expected the turn to wait again after cancel")
	}
	if err := b.human.Attack(); err != nil {
		t.Fatalf("attack: %v", err)
	}

	b.pointer.target = b.hero
	b.loop.Advance(loop.DefaultFrameInterval)
	if b.grunts.Health() != 200 {
		t.Fatal("pointing at the hero must not resolve an attack")
	}
	b.pointer.target = b.grunts
	b.loop.Advance(loop.DefaultFrameInterval)
	if b.grunts.Health() != 170 {
		t.Fatalf("grunts health = %d, want 170", b.grunts.Health())
	}
	turn, ok := b.human.Turn()
	if !ok || turn.Round != 2 {
		t.Fatalf("turn = %+v, %v, want round 2", turn, ok)
	}
}

func TestHumanDefendOncePerRound(t *testing.T) {
	b := newBattle(t)
	if err := b.human.Defend(); err != nil {
		t.Fatalf("defend: %v", err)
	}
	turn, ok := b.human.Turn()
	if !ok || turn.Round != 1 || !turn.Defended {
		t.Fatalf("turn = %+v, %v, want second turn of round 1", turn, ok)
	}
	if err := b.human.Defend(); !errors.Is(err, ErrAlreadyDefended) {
		t.Fatalf("second defend error = %v, want %v", err, ErrAlreadyDefended)
	}
	if err := b.human.Skip(); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if turn, _ := b.human.Turn(); turn.Round != 2 {
		t.Fatalf("round = %d, want 2", turn.Round)
	}
}

func TestHumanAbilityOnCooldownKeepsTurn(t *testing.T) {
	quake := combatant.Ability{ID: "quake", Cooldown: 1, Target: combatant.TargetAllEnemies, Power: 1}
	b := newBattle(t, quake)
	if err := b.human.UseAbility("quake"); err != nil {
		t.Fatalf("use ability: %v", err)
	}
	if b.grunts.Health() != 170 {
		t.Fatalf("grunts health = %d, want 170", b.grunts.Health())
	}
	if err := b.human.UseAbility("quake"); !errors.Is(err, action.ErrOnCooldown) {
		t.Fatalf("error = %v, want %v", err, action.ErrOnCooldown)
	}
	if !b.human.Waiting() {
		t.Fatal("rejected command consumed the turn")
	}
	if err := b.human.UseAbility("nope"); !errors.Is(err, action.ErrUnknownAbility) {
		t.Fatalf("error = %v, want %v", err, action.ErrUnknownAbility)
	}
}

func turnFor(actor *combatant.Combatant, ledger *cooldown.Ledger, roster ...*combatant.Combatant) round.Turn {
	return round.Turn{
		Round: 1,
		Actor: actor,
		Deps: action.Deps{
			Cooldowns:  ledger,
			Candidates: func() []*combatant.Combatant { return roster },
		},
	}
}

func TestScriptedChoice(t *testing.T) {
	fire := combatant.Ability{ID: "fire", Cooldown: 3, Target: combatant.TargetEnemy, Power: 2}
	mend := combatant.Ability{ID: "mend", Target: combatant.TargetAllAllies, HealPerUnit: 5}
	mage := newSquad(t, "mage", combatant.FactionEnemy, 2, combatant.Stats{HealthPerUnit: 10, MinDamage: 1, MaxDamage: 1}, mend, fire)
	hero := newSquad(t, "hero", combatant.FactionHero, 1, combatant.Stats{HealthPerUnit: 10})
	ledger := cooldown.NewLedger()
	s := NewScripted(nil, 0)

	a := s.Choose(turnFor(mage, ledger, mage, hero))
	if got, _ := a.Ability(); got.ID != "fire" {
		t.Fatalf("choice = %s %s, want fire", a.Kind(), got.ID)
	}

	ledger.Trigger(mage, fire)
	if a := s.Choose(turnFor(mage, ledger, mage, hero)); a.Kind() != action.KindAttack {
		t.Fatalf("choice on cooldown = %s, want attack", a.Kind())
	}

	mage.TakeDamage(5)
	if a := s.Choose(turnFor(mage, ledger, mage, hero)); a.Kind() != action.KindAbility {
		t.Fatalf("choice when hurt = %s, want ability", a.Kind())
	}

	if a := s.Choose(turnFor(hero, ledger, hero)); a.Kind() != action.KindSkip {
		t.Fatalf("choice without enemies = %s, want skip", a.Kind())
	}
}

func TestScriptedThinksOnLoop(t *testing.T) {
	l := loop.New(time.Unix(0, 0))
	hero := newSquad(t, "hero", combatant.FactionHero, 1, combatant.Stats{HealthPerUnit: 10})
	s := NewScripted(l, time.Second)
	var got *action.Action
	s.RequestAction(turnFor(hero, cooldown.NewLedger(), hero), func(a *action.Action, err error) {
		if err != nil {
			t.Fatalf("ready error: %v", err)
		}
		got = a
	})
	l.Advance(500 * time.Millisecond)
	if got != nil {
		t.Fatal("answered before thinking")
	}
	l.Advance(time.Second)
	if got == nil || got.Kind() != action.KindSkip {
		t.Fatalf("answer = %v", got)
	}
}

type heldPresenter struct {
	done []func()
}

func (p *heldPresenter) PlayDamage(_ *combatant.Combatant, _ int, done func()) {
	p.done = append(p.done, done)
}

func TestHumanCannotCancelWhileDamagePlays(t *testing.T) {
	l := loop.New(time.Unix(0, 0))
	ptr := &pointer{}
	human := NewHuman(l, ptr)
	hero := newSquad(t, "hero", combatant.FactionHero, 1,
		combatant.Stats{HealthPerUnit: 100, MinDamage: 30, MaxDamage: 30, Initiative: 5})
	grunts := newSquad(t, "grunts", combatant.FactionEnemy, 4, combatant.Stats{HealthPerUnit: 50})
	view := &heldPresenter{}
	rounds := round.New(round.Config{
		Roster:    []*combatant.Combatant{hero, grunts},
		Presenter: view,
		Controllers: func(c *combatant.Combatant) round.Controller {
			if c.Faction().Friendly() {
				return human
			}
			return NewScripted(nil, 0)
		},
	})
	if err := rounds.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := human.Attack(); err != nil {
		t.Fatalf("attack: %v", err)
	}
	ptr.target = grunts
	l.Advance(loop.DefaultFrameInterval)
	if grunts.Health() != 170 || len(view.done) != 1 {
		t.Fatalf("health = %d, pending acks = %d", grunts.Health(), len(view.done))
	}

	if err := human.Cancel(); !errors.Is(err, ErrNothingToCancel) {
		t.Fatalf("cancel error = %v, want %v", err, ErrNothingToCancel)
	}
	for len(view.done) > 0 {
		done := view.done[0]
		view.done = view.done[1:]
		done()
	}
	turn, ok := human.Turn()
	if !ok || turn.Round != 2 || turn.Actor != hero {
		t.Fatalf("turn = %+v, %v, want the hero in round 2", turn, ok)
	}
	if grunts.Health() != 170 {
		t.Fatalf("health = %d, want 170", grunts.Health())
	}
}
