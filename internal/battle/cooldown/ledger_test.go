package cooldown

import (
	"testing"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

func caster(t *testing.T) *combatant.Combatant {
	t.Helper()
	c, err := combatant.New("mage", combatant.Definition{
		ID:    "mage",
		Stats: combatant.Stats{HealthPerUnit: 10, MinDamage: 1, MaxDamage: 2},
	}, combatant.FactionHero, 1)
	if err != nil {
		t.Fatalf("new caster: %v", err)
	}
	return c
}

func TestUnknownEntryIsReadyAndCreatedLazily(t *testing.T) {
	l := NewLedger()
	if !l.IsReady("mage", "fireball") {
		t.Fatal("expected unknown ability to be ready")
	}
	if l.Len() != 1 {
		t.Fatalf("entries = %d, want 1", l.Len())
	}
}

func TestCooldownTiming(t *testing.T) {
	tests := []struct {
		name     string
		cooldown int
		// readyAfterTicks[i] is readiness after i round-start ticks.
		readyAfterTicks []bool
	}{
		{"zero cooldown", 0, []bool{false, true, true}},
		{"one round", 1, []bool{false, false, true}},
		{"two rounds", 2, []bool{false, false, false, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			c := caster(t)
			ability := combatant.Ability{ID: "fireball", Cooldown: tt.cooldown}
			l.Trigger(c, ability)
			for ticks, want := range tt.readyAfterTicks {
				if got := l.IsReady(c.ID(), ability.ID); got != want {
					t.Fatalf("after %d ticks ready = %v, want %v", ticks, got, want)
				}
				l.Tick()
			}
		})
	}
}

func TestCooldownTwoTriggeredRoundOne(t *testing.T) {
	l := NewLedger()
	c := caster(t)
	ability := combatant.Ability{ID: "fireball", Cooldown: 2}

	// Round 1 starts, then the ability is used during round 1.
	l.Tick()
	l.Trigger(c, ability)
	for round := 1; round <= 4; round++ {
		if round > 1 {
			l.Tick()
		}
		want := round >= 4
		if got := l.IsReady(c.ID(), ability.ID); got != want {
			t.Fatalf("round %d ready = %v, want %v", round, got, want)
		}
	}
}

func TestTickFloorsAtZero(t *testing.T) {
	l := NewLedger()
	c := caster(t)
	l.Trigger(c, combatant.Ability{ID: "a", Cooldown: 0})
	for i := 0; i < 5; i++ {
		l.Tick()
	}
	if got := l.Remaining(c.ID(), "a"); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestForget(t *testing.T) {
	l := NewLedger()
	c := caster(t)
	l.Trigger(c, combatant.Ability{ID: "a", Cooldown: 3})
	l.Trigger(c, combatant.Ability{ID: "b", Cooldown: 3})
	l.Forget(c.ID())
	if l.Len() != 0 {
		t.Fatalf("entries = %d, want 0", l.Len())
	}
}
