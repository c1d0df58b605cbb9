package phase

import (
	"fmt"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/effect"
)

// Squad is one entry of the setup payload.
type Squad struct {
	Definition combatant.Definition
	Count      int
}

// Setup is the payload that starts an encounter.
type Setup struct {
	Name    string
	Hero    Squad
	Allies  []Squad
	Enemies []Squad
	// Effects registers the effect definitions abilities may apply.
	Effects []effect.Definition
	// Seed fixes the encounter randomness when non-zero.
	Seed int64
}

// Deploy instantiates every squad and an effect engine for the encounter.
// Squad ids are the definition id followed by a per-definition counter.
func (s Setup) Deploy() ([]*combatant.Combatant, *effect.Engine, error) {
	if s.Hero.Count <= 0 {
		return nil, nil, fmt.Errorf("%w: hero squad is required", ErrInvalidSetup)
	}
	if len(s.Enemies) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one enemy squad is required", ErrInvalidSetup)
	}
	engine, err := effect.NewEngine(s.Effects...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}

	seen := map[string]int{}
	var roster []*combatant.Combatant
	add := func(sq Squad, faction combatant.Faction) error {
		for _, ability := range sq.Definition.Abilities {
			for _, id := range ability.Effects {
				if _, ok := engine.Definition(id); !ok {
					return fmt.Errorf("%w: %s ability %s: %w", ErrInvalidSetup, sq.Definition.ID, ability.ID, effect.ErrUnknownEffect)
				}
			}
		}
		seen[sq.Definition.ID]++
		id := fmt.Sprintf("%s-%d", sq.Definition.ID, seen[sq.Definition.ID])
		c, err := combatant.New(id, sq.Definition, faction, sq.Count)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSetup, err)
		}
		roster = append(roster, c)
		return nil
	}

	if err := add(s.Hero, combatant.FactionHero); err != nil {
		return nil, nil, err
	}
	for _, sq := range s.Allies {
		if err := add(sq, combatant.FactionAlly); err != nil {
			return nil, nil, err
		}
	}
	for _, sq := range s.Enemies {
		if err := add(sq, combatant.FactionEnemy); err != nil {
			return nil, nil, err
		}
	}
	return roster, engine, nil
}
