// Package turnqueue holds the ordered sequence of squads awaiting their turn
// in the current round.
package turnqueue

import (
	"sort"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

// Roller draws the random tie-breaker between squads of equal initiative and side.
type Roller interface {
	Intn(n int) int
}

const tieBreakRange = 1 << 30

// Queue is the round's turn order. The head is the active squad.
type Queue struct {
	entries []*combatant.Combatant
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Rebuild replaces the queue with the living squads ordered by initiative
// descending, friendly before enemy on ties, then by a random draw.
func (q *Queue) Rebuild(roster []*combatant.Combatant, rng Roller) {
	type keyed struct {
		c    *combatant.Combatant
		init int
		side int
		draw int
	}
	keys := make([]keyed, 0, len(roster))
	for _, c := range roster {
		if c == nil || !c.Alive() {
			continue
		}
		k := keyed{c: c, init: c.Initiative(), side: sidePriority(c.Faction())}
		if rng != nil {
			k.draw = rng.Intn(tieBreakRange)
		}
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].init != keys[j].init {
			return keys[i].init > keys[j].init
		}
		if keys[i].side != keys[j].side {
			return keys[i].side < keys[j].side
		}
		return keys[i].draw < keys[j].draw
	})

	q.entries = q.entries[:0]
	for _, k := range keys {
		q.entries = append(q.entries, k.c)
	}
}

func sidePriority(f combatant.Faction) int {
	if f.Friendly() {
		return 0
	}
	return 1
}

// Len returns the number of queued squads.
func (q *Queue) Len() int { return len(q.entries) }

// Empty reports whether no squad is waiting.
func (q *Queue) Empty() bool { return len(q.entries) == 0 }

// Head returns the squad whose turn it is.
func (q *Queue) Head() (*combatant.Combatant, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

// PopFront removes and returns the head.
func (q *Queue) PopFront() (*combatant.Combatant, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	head := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return head, true
}

// Append adds c to the tail.
func (q *Queue) Append(c *combatant.Combatant) {
	if c == nil {
		return
	}
	q.entries = append(q.entries, c)
}

// MoveToBack removes the first occurrence of c and re-appends it to the tail.
func (q *Queue) MoveToBack(c *combatant.Combatant) bool {
	if !q.Remove(c) {
		return false
	}
	q.entries = append(q.entries, c)
	return true
}

// Remove drops every occurrence of c. It reports whether c was queued.
func (q *Queue) Remove(c *combatant.Combatant) bool {
	found := false
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e == c {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return found
}

// RemoveDead drops squads without troops and returns them.
func (q *Queue) RemoveDead() []*combatant.Combatant {
	var dead []*combatant.Combatant
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.Alive() {
			dead = append(dead, e)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return dead
}

// Contains reports whether c is queued.
func (q *Queue) Contains(c *combatant.Combatant) bool {
	for _, e := range q.entries {
		if e == c {
			return true
		}
	}
	return false
}

// Entries returns the queue in turn order.
func (q *Queue) Entries() []*combatant.Combatant {
	out := make([]*combatant.Combatant, len(q.entries))
	copy(out, q.entries)
	return out
}

// Clear empties the queue.
func (q *Queue) Clear() {
	for i := range q.entries {
		q.entries[i] = nil
	}
	q.entries = q.entries[:0]
}
