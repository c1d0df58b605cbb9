package combatant

// Stat names a modifiable combat value.
type Stat int

const (
	StatMinDamage Stat = iota
	StatMaxDamage
	StatPhysicalDefense
	StatMagicDefense
	StatAbsoluteDefense
	StatInitiative
	StatCritChance
	StatCritMultiplier
	StatMissChance
)

func (s Stat) String() string {
	switch s {
	case StatMinDamage:
		return "min_damage"
	case StatMaxDamage:
		return "max_damage"
	case StatPhysicalDefense:
		return "physical_defense"
	case StatMagicDefense:
		return "magic_defense"
	case StatAbsoluteDefense:
		return "absolute_defense"
	case StatInitiative:
		return "initiative"
	case StatCritChance:
		return "crit_chance"
	case StatCritMultiplier:
		return "crit_multiplier"
	case StatMissChance:
		return "miss_chance"
	default:
		return "unknown"
	}
}

// ParseStat maps content names onto stats.
func ParseStat(value string) (Stat, bool) {
	for s := StatMinDamage; s <= StatMissChance; s++ {
		if s.String() == value {
			return s, true
		}
	}
	return 0, false
}

// Modifier is an additive stat change owned by a source, usually an effect.
type Modifier struct {
	Source string
	Stat   Stat
	Amount float64
}

// SetModifiers replaces every modifier owned by source.
func (c *Combatant) SetModifiers(source string, mods []Modifier) {
	c.RemoveModifiers(source)
	for _, m := range mods {
		m.Source = source
		c.modifiers = append(c.modifiers, m)
	}
}

// RemoveModifiers drops every modifier owned by source.
func (c *Combatant) RemoveModifiers(source string) {
	kept := c.modifiers[:0]
	for _, m := range c.modifiers {
		if m.Source != source {
			kept = append(kept, m)
		}
	}
	c.modifiers = kept
}

// Modifiers returns a copy of the active modifiers.
func (c *Combatant) Modifiers() []Modifier {
	out := make([]Modifier, len(c.modifiers))
	copy(out, c.modifiers)
	return out
}

func (c *Combatant) bonus(stat Stat) float64 {
	total := 0.0
	for _, m := range c.modifiers {
		if m.Stat == stat {
			total += m.Amount
		}
	}
	return total
}

// Stats returns base stats with active modifiers applied.
// Integer stats floor at zero; chances are clamped to [0, 1].
func (c *Combatant) Stats() Stats {
	base := c.def.Stats
	out := base
	out.MinDamage = nonNegative(base.MinDamage + int(c.bonus(StatMinDamage)))
	out.MaxDamage = nonNegative(base.MaxDamage + int(c.bonus(StatMaxDamage)))
	if out.MaxDamage < out.MinDamage {
		out.MaxDamage = out.MinDamage
	}
	out.PhysicalDefense = nonNegative(base.PhysicalDefense + int(c.bonus(StatPhysicalDefense)))
	out.MagicDefense = nonNegative(base.MagicDefense + int(c.bonus(StatMagicDefense)))
	out.AbsoluteDefense = nonNegative(base.AbsoluteDefense + int(c.bonus(StatAbsoluteDefense)))
	out.Initiative = base.Initiative + int(c.bonus(StatInitiative))
	out.CritChance = clampChance(base.CritChance + c.bonus(StatCritChance))
	out.CritMultiplier = base.CritMultiplier + c.bonus(StatCritMultiplier)
	if out.CritMultiplier < 1 {
		out.CritMultiplier = 1
	}
	out.MissChance = clampChance(base.MissChance + c.bonus(StatMissChance))
	return out
}

// Initiative returns the effective initiative used to order the turn queue.
func (c *Combatant) Initiative() int {
	return c.Stats().Initiative
}

// Defense returns the mitigation applied against damage of type t.
func (c *Combatant) Defense(t DamageType) int {
	stats := c.Stats()
	switch t {
	case DamageTypePhysical:
		return stats.PhysicalDefense + stats.AbsoluteDefense
	case DamageTypeMagic:
		return stats.MagicDefense + stats.AbsoluteDefense
	default:
		return 0
	}
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampChance(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
