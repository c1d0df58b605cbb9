// Package cooldown tracks remaining rounds until each squad's abilities are
// usable again.
package cooldown

import "github.com/louisbranch/skirmish/internal/battle/combatant"

// Lookup is the read side of the ledger, handed to actions and UI renderers.
type Lookup interface {
	IsReady(combatantID, abilityID string) bool
	Remaining(combatantID, abilityID string) int
}

type key struct {
	combatant string
	ability   string
}

// Ledger maps (combatant, ability) to remaining rounds.
type Ledger struct {
	entries map[key]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: map[key]int{}}
}

// Trigger starts the cooldown of ability for c. The extra round covers the
// current round, so a cooldown of N blocks the current round plus N more.
func (l *Ledger) Trigger(c *combatant.Combatant, ability combatant.Ability) {
	if c == nil {
		return
	}
	l.entries[key{combatant: c.ID(), ability: ability.ID}] = ability.Cooldown + 1
}

// Tick decrements every positive entry by one round.
func (l *Ledger) Tick() {
	for k, remaining := range l.entries {
		if remaining > 0 {
			l.entries[k] = remaining - 1
		}
	}
}

// IsReady reports whether the ability can be used now.
func (l *Ledger) IsReady(combatantID, abilityID string) bool {
	return l.Remaining(combatantID, abilityID) <= 0
}

// Remaining returns the rounds left before the ability is ready. Unknown
// entries are created lazily at zero.
func (l *Ledger) Remaining(combatantID, abilityID string) int {
	k := key{combatant: combatantID, ability: abilityID}
	remaining, ok := l.entries[k]
	if !ok {
		l.entries[k] = 0
		return 0
	}
	return remaining
}

// Forget drops every entry owned by a squad that left the encounter.
func (l *Ledger) Forget(combatantID string) {
	for k := range l.entries {
		if k.combatant == combatantID {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of tracked entries.
func (l *Ledger) Len() int { return len(l.entries) }
