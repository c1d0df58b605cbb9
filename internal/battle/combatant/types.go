package combatant

import (
	"errors"
	"fmt"
	"strings"
)

// Faction identifies which side a squad fights for.
type Faction int

const (
	FactionUnspecified Faction = iota
	FactionHero
	FactionAlly
	FactionEnemy
)

func (f Faction) String() string {
	switch f {
	case FactionHero:
		return "Hero"
	case FactionAlly:
		return "Ally"
	case FactionEnemy:
		return "Enemy"
	default:
		return "Unspecified"
	}
}

// Valid reports whether f is a deployable faction.
func (f Faction) Valid() bool {
	return f == FactionHero || f == FactionAlly || f == FactionEnemy
}

// Friendly reports whether f fights on the player's side.
func (f Faction) Friendly() bool {
	return f == FactionHero || f == FactionAlly
}

// SameSide reports whether two factions fight together.
func SameSide(a, b Faction) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return a.Friendly() == b.Friendly()
}

// DamageType selects which defense mitigates a hit.
type DamageType int

const (
	DamageTypePhysical DamageType = iota
	DamageTypeMagic
	// DamageTypeAbsolute bypasses every defense.
	DamageTypeAbsolute
)

func (d DamageType) String() string {
	switch d {
	case DamageTypePhysical:
		return "physical"
	case DamageTypeMagic:
		return "magic"
	case DamageTypeAbsolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// ParseDamageType maps content names onto damage types.
func ParseDamageType(value string) (DamageType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "physical":
		return DamageTypePhysical, nil
	case "magic":
		return DamageTypeMagic, nil
	case "absolute", "pure":
		return DamageTypeAbsolute, nil
	default:
		return 0, fmt.Errorf("unknown damage type %q", value)
	}
}

// Stats are the squad's per-unit combat values.
type Stats struct {
	HealthPerUnit   int
	MinDamage       int
	MaxDamage       int
	PhysicalDefense int
	MagicDefense    int
	// AbsoluteDefense mitigates physical and magic hits on top of the typed defense.
	AbsoluteDefense int
	Initiative      int
	// Chances are probabilities in [0, 1].
	CritChance     float64
	CritMultiplier float64
	MissChance     float64
	DamageType     DamageType
}

// TargetType declares which squads an ability may affect.
type TargetType int

const (
	TargetSelf TargetType = iota
	TargetAlly
	TargetAllAllies
	TargetEnemy
	TargetAllEnemies
)

func (t TargetType) String() string {
	switch t {
	case TargetSelf:
		return "self"
	case TargetAlly:
		return "ally"
	case TargetAllAllies:
		return "all_allies"
	case TargetEnemy:
		return "enemy"
	case TargetAllEnemies:
		return "all_enemies"
	default:
		return "unknown"
	}
}

// ParseTargetType maps content names onto target types.
func ParseTargetType(value string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "self":
		return TargetSelf, nil
	case "ally":
		return TargetAlly, nil
	case "all_allies":
		return TargetAllAllies, nil
	case "enemy":
		return TargetEnemy, nil
	case "all_enemies":
		return TargetAllEnemies, nil
	default:
		return 0, fmt.Errorf("unknown target type %q", value)
	}
}

// Single reports whether the target type selects exactly one squad chosen by a picker.
func (t TargetType) Single() bool {
	return t == TargetAlly || t == TargetEnemy
}

var errAbilityID = errors.New("ability id is required")

// Ability is an activatable squad power.
type Ability struct {
	ID       string
	Name     string
	Cooldown int
	Target   TargetType
	// Power multiplies the caster's damage roll; zero deals no damage.
	Power      float64
	DamageType DamageType
	// HealPerUnit restores this many hit points per caster troop.
	HealPerUnit int
	// Effects lists effect definition ids applied to every target.
	Effects []string
}

// Validate checks authored ability values.
func (a Ability) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errAbilityID
	}
	if a.Cooldown < 0 {
		return fmt.Errorf("ability %s cooldown must not be negative", a.ID)
	}
	if a.Power < 0 || a.HealPerUnit < 0 {
		return fmt.Errorf("ability %s power and heal must not be negative", a.ID)
	}
	if a.Target < TargetSelf || a.Target > TargetAllEnemies {
		return fmt.Errorf("ability %s target type %d", a.ID, a.Target)
	}
	return nil
}
