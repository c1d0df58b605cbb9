// Package result holds the verdict of a finished encounter.
package result

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

// Status is the encounter verdict.
type Status int

const (
	StatusUnspecified Status = iota
	StatusVictory
	StatusDefeat
	StatusFlee
)

func (s Status) String() string {
	switch s {
	case StatusVictory:
		return "victory"
	case StatusDefeat:
		return "defeat"
	case StatusFlee:
		return "flee"
	default:
		return "unspecified"
	}
}

// ParseStatus maps a stored status name onto a Status.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "victory":
		return StatusVictory, nil
	case "defeat":
		return StatusDefeat, nil
	case "flee":
		return StatusFlee, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown battle status %q", value)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseStatus(value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Snapshot is a surviving squad at the end of an encounter.
type Snapshot struct {
	DefinitionID string `json:"definition_id"`
	Name         string `json:"name"`
	Faction      string `json:"faction"`
	Troops       int    `json:"troops"`
}

// Result is produced exactly once per encounter.
type Result struct {
	Status   Status     `json:"status"`
	Rounds   int        `json:"rounds"`
	Friendly []Snapshot `json:"friendly"`
	Enemy    []Snapshot `json:"enemy"`
}

// Build snapshots the living squads of roster into a result.
func Build(status Status, rounds int, roster []*combatant.Combatant) Result {
	res := Result{Status: status, Rounds: rounds, Friendly: []Snapshot{}, Enemy: []Snapshot{}}
	for _, c := range roster {
		if c == nil || !c.Alive() {
			continue
		}
		snap := Snapshot{
			DefinitionID: c.Definition().ID,
			Name:         c.Name(),
			Faction:      c.Faction().String(),
			Troops:       c.Troops(),
		}
		if c.Faction().Friendly() {
			res.Friendly = append(res.Friendly, snap)
		} else {
			res.Enemy = append(res.Enemy, snap)
		}
	}
	return res
}

// Troops sums surviving troops per side.
func (r Result) Troops() (friendly, enemy int) {
	for _, s := range r.Friendly {
		friendly += s.Troops
	}
	for _, s := range r.Enemy {
		enemy += s.Troops
	}
	return friendly, enemy
}
