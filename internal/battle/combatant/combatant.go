// Package combatant models a deployed squad: one turn-taking entity with a
// pooled health value whose troop count is derived from that pool.
package combatant

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDefinition indicates a squad definition cannot be deployed.
var ErrInvalidDefinition = errors.New("squad definition is invalid")

// ErrInvalidCount indicates a squad was deployed with no troops.
var ErrInvalidCount = errors.New("troop count must be positive")

// Definition describes a squad type as authored in content.
type Definition struct {
	ID        string
	Name      string
	Stats     Stats
	Abilities []Ability
}

// Validate checks the definition for values the battle engine relies on.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	if d.Stats.HealthPerUnit <= 0 {
		return fmt.Errorf("%w: %s health per unit must be positive", ErrInvalidDefinition, d.ID)
	}
	if d.Stats.MinDamage < 0 || d.Stats.MaxDamage < d.Stats.MinDamage {
		return fmt.Errorf("%w: %s damage range %d-%d", ErrInvalidDefinition, d.ID, d.Stats.MinDamage, d.Stats.MaxDamage)
	}
	seen := make(map[string]struct{}, len(d.Abilities))
	for _, ability := range d.Abilities {
		if err := ability.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, d.ID, err)
		}
		if _, ok := seen[ability.ID]; ok {
			return fmt.Errorf("%w: %s: duplicate ability %s", ErrInvalidDefinition, d.ID, ability.ID)
		}
		seen[ability.ID] = struct{}{}
	}
	return nil
}

// Combatant is one deployed squad.
//
// The health pool is the only mutable quantity of the squad size; the troop
// count is always recomputed from it.
type Combatant struct {
	id        string
	def       Definition
	faction   Faction
	health    int
	maxHealth int
	modifiers []Modifier
}

// New deploys count troops of def for faction.
func New(id string, def Definition, faction Faction, count int) (*Combatant, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: %s got %d", ErrInvalidCount, def.ID, count)
	}
	if !faction.Valid() {
		return nil, fmt.Errorf("%w: faction %d", ErrInvalidDefinition, faction)
	}
	if strings.TrimSpace(id) == "" {
		id = def.ID
	}
	pool := count * def.Stats.HealthPerUnit
	return &Combatant{
		id:        id,
		def:       def,
		faction:   faction,
		health:    pool,
		maxHealth: pool,
	}, nil
}

// ID returns the combatant identifier, unique within an encounter.
func (c *Combatant) ID() string { return c.id }

// Name returns the display name of the squad.
func (c *Combatant) Name() string {
	if c.def.Name != "" {
		return c.def.Name
	}
	return c.def.ID
}

// Definition returns the authored definition backing the squad.
func (c *Combatant) Definition() Definition { return c.def }

// Faction returns the squad's faction.
func (c *Combatant) Faction() Faction { return c.faction }

// IsHero reports whether the squad is the hero.
func (c *Combatant) IsHero() bool { return c.faction == FactionHero }

// Abilities returns the squad's abilities in authored order.
func (c *Combatant) Abilities() []Ability {
	out := make([]Ability, len(c.def.Abilities))
	copy(out, c.def.Abilities)
	return out
}

// Ability looks up an ability by id.
func (c *Combatant) Ability(id string) (Ability, bool) {
	for _, ability := range c.def.Abilities {
		if ability.ID == id {
			return ability, true
		}
	}
	return Ability{}, false
}

// Health returns the remaining hit points across the squad.
func (c *Combatant) Health() int { return c.health }

// MaxHealth returns the health pool at deployment.
func (c *Combatant) MaxHealth() int { return c.maxHealth }

// Troops returns ceil(health / healthPerUnit).
func (c *Combatant) Troops() int {
	return TroopsFor(c.health, c.def.Stats.HealthPerUnit)
}

// Alive reports whether at least one troop remains.
func (c *Combatant) Alive() bool { return c.Troops() > 0 }

// TakeDamage subtracts amount from the health pool, clamped at zero, and
// returns the hit points actually removed.
func (c *Combatant) TakeDamage(amount int) int {
	if amount <= 0 || c.health <= 0 {
		return 0
	}
	if amount > c.health {
		amount = c.health
	}
	c.health -= amount
	return amount
}

// Heal restores up to amount hit points without exceeding the deployed pool.
// Dead squads are not revived.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || c.health <= 0 {
		return 0
	}
	if c.health+amount > c.maxHealth {
		amount = c.maxHealth - c.health
	}
	c.health += amount
	return amount
}

// TroopsFor converts a health pool into a troop count.
func TroopsFor(health, healthPerUnit int) int {
	if health <= 0 || healthPerUnit <= 0 {
		return 0
	}
	return (health + healthPerUnit - 1) / healthPerUnit
}

func (c *Combatant) String() string {
	return fmt.Sprintf("%s(%s x%d)", c.id, c.faction, c.Troops())
}
