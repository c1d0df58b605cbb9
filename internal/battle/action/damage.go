package action

import "github.com/louisbranch/skirmish/internal/battle/combatant"

// Roller supplies the random draws used by damage resolution.
type Roller interface {
	Intn(n int) int
	Float64() float64
}

// Hit is the outcome of one damage application.
type Hit struct {
	Attacker *combatant.Combatant
	Defender *combatant.Combatant
	// Roll is the per-troop damage drawn from the attacker's range.
	Roll   int
	Troops int
	Missed bool
	Crit   bool
	// Raw is the damage before defense.
	Raw     int
	Defense int
	// Dealt is the hit points actually removed from the defender's pool.
	Dealt        int
	TroopsBefore int
	TroopsAfter  int
}

// Killed reports whether the hit removed the defender's last troop.
func (h Hit) Killed() bool { return h.TroopsBefore > 0 && h.TroopsAfter == 0 }

// DamageResolver turns an attacker's stats into hit point loss on a defender.
type DamageResolver struct {
	rng Roller
}

// NewDamageResolver returns a resolver drawing from rng. A nil rng always
// rolls the minimum and never misses or crits.
func NewDamageResolver(rng Roller) *DamageResolver {
	return &DamageResolver{rng: rng}
}

// Strike resolves the attacker's basic attack against defender.
func (r *DamageResolver) Strike(attacker, defender *combatant.Combatant) Hit {
	return r.Resolve(attacker, defender, attacker.Stats().DamageType, 1)
}

// Resolve rolls damage scaled by power with the given damage type and
// subtracts it from the defender's pool.
func (r *DamageResolver) Resolve(attacker, defender *combatant.Combatant, damageType combatant.DamageType, power float64) Hit {
	stats := attacker.Stats()
	hit := Hit{
		Attacker:     attacker,
		Defender:     defender,
		Troops:       attacker.Troops(),
		TroopsBefore: defender.Troops(),
	}
	hit.Roll = stats.MinDamage
	if spread := stats.MaxDamage - stats.MinDamage; spread > 0 && r.rng != nil {
		hit.Roll += r.rng.Intn(spread + 1)
	}

	if r.chance(stats.MissChance) {
		hit.Missed = true
		hit.TroopsAfter = hit.TroopsBefore
		return hit
	}

	raw := float64(hit.Roll * hit.Troops)
	if r.chance(stats.CritChance) {
		hit.Crit = true
		raw *= stats.CritMultiplier
	}
	if power > 0 {
		raw *= power
	}
	hit.Raw = int(raw)
	hit.Defense = defender.Defense(damageType)
	if amount := hit.Raw - hit.Defense; amount > 0 {
		hit.Dealt = defender.TakeDamage(amount)
	}
	hit.TroopsAfter = defender.Troops()
	return hit
}

func (r *DamageResolver) chance(p float64) bool {
	if p <= 0 || r.rng == nil {
		return false
	}
	return r.rng.Float64() < p
}
