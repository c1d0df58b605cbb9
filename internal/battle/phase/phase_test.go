package phase

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/skirmish/internal/battle/action"
	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/deploy"
	"github.com/louisbranch/skirmish/internal/battle/effect"
	"github.com/louisbranch/skirmish/internal/battle/result"
	"github.com/louisbranch/skirmish/internal/battle/round"
)

type controllerFunc func(turn round.Turn, ready func(*action.Action, error))

func (f controllerFunc) RequestAction(turn round.Turn, ready func(*action.Action, error)) {
	f(turn, ready)
}

func attackEverything(*combatant.Combatant) round.Controller {
	return controllerFunc(func(turn round.Turn, ready func(*action.Action, error)) {
		ready(action.NewAttack(turn.Actor, turn.Deps, action.ScriptedPickers(nil, 0, turn.Deps.Candidates)), nil)
	})
}

func neverAnswer(*combatant.Combatant) round.Controller {
	return controllerFunc(func(round.Turn, func(*action.Action, error)) {})
}

func testSetup() Setup {
	knight := combatant.Definition{ID: "knight", Stats: combatant.Stats{HealthPerUnit: 100, MinDamage: 30, MaxDamage: 30, Initiative: 5}}
	goblin := combatant.Definition{ID: "goblin", Stats: combatant.Stats{HealthPerUnit: 50}}
	return Setup{
		Name:    "bridge",
		Hero:    Squad{Definition: knight, Count: 1},
		Enemies: []Squad{{Definition: goblin, Count: 4}},
	}
}

func TestEncounterRunsToVictory(t *testing.T) {
	var finished []result.Result
	m := New(Config{Controllers: attackEverything, OnFinished: func(r result.Result) { finished = append(finished, r) }})
	ctx := context.Background()

	if m.Phase() != PhaseLoading {
		t.Fatalf("phase = %s, want loading", m.Phase())
	}
	if err := m.StartBattle(ctx, testSetup()); err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if m.Phase() != PhaseTactics {
		t.Fatalf("phase = %s, want tactics", m.Phase())
	}
	if err := m.MoveSquad("knight-1", deploy.Cell{Col: 1, Row: 2}); err != nil {
		t.Fatalf("move squad: %v", err)
	}
	if err := m.RequestCombat(ctx); err != nil {
		t.Fatalf("request combat: %v", err)
	}

	if m.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", m.Phase())
	}
	if len(finished) != 1 || finished[0].Status != result.StatusVictory {
		t.Fatalf("finished = %+v", finished)
	}
	res, ok := m.Result()
	if !ok || res.Rounds != 7 {
		t.Fatalf("result = %+v, %v", res, ok)
	}
	if !m.Grid().Locked() {
		t.Fatal("expected grid to be locked")
	}
	if err := m.RequestCombat(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("re-entering combat error = %v, want %v", err, ErrInvalidTransition)
	}
	if err := m.StartBattle(ctx, testSetup()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("restart error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestOperationsOutOfPhase(t *testing.T) {
	m := New(Config{Controllers: neverAnswer})
	ctx := context.Background()
	if err := m.RequestCombat(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("combat before setup error = %v", err)
	}
	if err := m.MoveSquad("knight-1", deploy.Cell{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("move before setup error = %v", err)
	}
	if err := m.StartBattle(ctx, testSetup()); err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if err := m.Flee(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("flee in tactics error = %v", err)
	}
	if _, ok := m.Result(); ok {
		t.Fatal("result before combat")
	}
}

func TestFleeDuringCombat(t *testing.T) {
	m := New(Config{Controllers: neverAnswer})
	ctx := context.Background()
	if err := m.StartBattle(ctx, testSetup()); err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if err := m.RequestCombat(ctx); err != nil {
		t.Fatalf("request combat: %v", err)
	}
	if m.Phase() != PhaseCombat {
		t.Fatalf("phase = %s, want combat", m.Phase())
	}
	if err := m.MoveSquad("knight-1", deploy.Cell{Col: 1}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("move during combat error = %v", err)
	}
	if err := m.Flee(); err != nil {
		t.Fatalf("flee: %v", err)
	}
	res, ok := m.Result()
	if !ok || res.Status != result.StatusFlee {
		t.Fatalf("result = %+v, %v", res, ok)
	}
	if m.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", m.Phase())
	}
}

func TestInvalidSetup(t *testing.T) {
	noEnemies := testSetup()
	noEnemies.Enemies = nil

	unknownEffect := testSetup()
	unknownEffect.Hero.Definition.Abilities = []combatant.Ability{{ID: "ignite", Target: combatant.TargetEnemy, Effects: []string{"burn"}}}

	badCount := testSetup()
	badCount.Enemies[0].Count = 0

	tests := []struct {
		name  string
		setup Setup
	}{
		{"no enemies", noEnemies},
		{"unknown effect", unknownEffect},
		{"bad count", badCount},
		{"no hero", Setup{Enemies: testSetup().Enemies}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{})
			if err := m.StartBattle(context.Background(), tt.setup); !errors.Is(err, ErrInvalidSetup) {
				t.Fatalf("error = %v, want %v", err, ErrInvalidSetup)
			}
			if m.Phase() != PhaseLoading {
				t.Fatalf("phase = %s, want loading", m.Phase())
			}
		})
	}
}

func TestDeployAssignsUniqueIDs(t *testing.T) {
	setup := testSetup()
	setup.Enemies = append(setup.Enemies, setup.Enemies[0])
	setup.Effects = []effect.Definition{{ID: "burn"}}
	roster, engine, err := setup.Deploy()
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	ids := []string{"knight-1", "goblin-1", "goblin-2"}
	for i, c := range roster {
		if c.ID() != ids[i] {
			t.Fatalf("roster[%d] = %s, want %s", i, c.ID(), ids[i])
		}
	}
	if _, ok := engine.Definition("burn"); !ok {
		t.Fatal("expected burn to be registered")
	}
}
