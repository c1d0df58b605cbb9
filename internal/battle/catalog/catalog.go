// Package catalog loads squad, ability, and effect definitions from YAML.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
	"github.com/louisbranch/skirmish/internal/battle/effect"
)

var (
	// ErrInvalidCatalog indicates the catalog file failed validation.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrUnknownSquad indicates a squad id is not defined in the catalog.
	ErrUnknownSquad = errors.New("unknown squad")
)

type fileDoc struct {
	Effects   []effectDoc  `yaml:"effects"`
	Abilities []abilityDoc `yaml:"abilities"`
	Squads    []squadDoc   `yaml:"squads"`
}

type modifierDoc struct {
	Stat   string  `yaml:"stat"`
	Amount float64 `yaml:"amount"`
}

type effectDoc struct {
	ID         string        `yaml:"id"`
	Name       string        `yaml:"name"`
	Triggers   []string      `yaml:"triggers"`
	Stacking   string        `yaml:"stacking"`
	MaxStacks  int           `yaml:"max_stacks"`
	Duration   string        `yaml:"duration"`
	Length     int           `yaml:"length"`
	MaxTicks   int           `yaml:"max_ticks"`
	Modifiers  []modifierDoc `yaml:"modifiers"`
	Damage     int           `yaml:"damage"`
	DamageType string        `yaml:"damage_type"`
	Heal       int           `yaml:"heal"`
}

type abilityDoc struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Cooldown    int      `yaml:"cooldown"`
	Target      string   `yaml:"target"`
	Power       float64  `yaml:"power"`
	DamageType  string   `yaml:"damage_type"`
	HealPerUnit int      `yaml:"heal_per_unit"`
	Effects     []string `yaml:"effects"`
}

type defenseDoc struct {
	Physical int `yaml:"physical"`
	Magic    int `yaml:"magic"`
	Absolute int `yaml:"absolute"`
}

type squadDoc struct {
	ID             string     `yaml:"id"`
	Name           string     `yaml:"name"`
	HealthPerUnit  int        `yaml:"health_per_unit"`
	Damage         []int      `yaml:"damage"`
	Defense        defenseDoc `yaml:"defense"`
	Initiative     int        `yaml:"initiative"`
	CritChance     float64    `yaml:"crit_chance"`
	CritMultiplier float64    `yaml:"crit_multiplier"`
	MissChance     float64    `yaml:"miss_chance"`
	DamageType     string     `yaml:"damage_type"`
	Abilities      []string   `yaml:"abilities"`
}

// Catalog is the validated content available to encounters.
type Catalog struct {
	squads    map[string]combatant.Definition
	abilities map[string]combatant.Ability
	effects   map[string]effect.Definition
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	cat := &Catalog{
		squads:    map[string]combatant.Definition{},
		abilities: map[string]combatant.Ability{},
		effects:   map[string]effect.Definition{},
	}
	for _, d := range doc.Effects {
		def, err := d.definition()
		if err != nil {
			return nil, invalid("effect %q: %v", d.ID, err)
		}
		if _, dup := cat.effects[def.ID]; dup {
			return nil, invalid("duplicate effect %q", def.ID)
		}
		cat.effects[def.ID] = def
	}
	for _, d := range doc.Abilities {
		ability, err := d.ability()
		if err != nil {
			return nil, invalid("ability %q: %v", d.ID, err)
		}
		if _, dup := cat.abilities[ability.ID]; dup {
			return nil, invalid("duplicate ability %q", ability.ID)
		}
		for _, id := range ability.Effects {
			if _, ok := cat.effects[id]; !ok {
				return nil, invalid("ability %q references unknown effect %q", ability.ID, id)
			}
		}
		cat.abilities[ability.ID] = ability
	}
	for _, d := range doc.Squads {
		def, err := d.definition(cat.abilities)
		if err != nil {
			return nil, invalid("squad %q: %v", d.ID, err)
		}
		if _, dup := cat.squads[def.ID]; dup {
			return nil, invalid("duplicate squad %q", def.ID)
		}
		cat.squads[def.ID] = def
	}
	return cat, nil
}

// Squad returns the squad definition id.
func (c *Catalog) Squad(id string) (combatant.Definition, error) {
	def, ok := c.squads[id]
	if !ok {
		return combatant.Definition{}, fmt.Errorf("%w: %s", ErrUnknownSquad, id)
	}
	return def, nil
}

// SquadIDs returns every squad id in sorted order.
func (c *Catalog) SquadIDs() []string {
	ids := make([]string, 0, len(c.squads))
	for id := range c.squads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Effects returns every effect definition sorted by id.
func (c *Catalog) Effects() []effect.Definition {
	out := make([]effect.Definition, 0, len(c.effects))
	for _, def := range c.effects {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

func (d effectDoc) definition() (effect.Definition, error) {
	def := effect.Definition{
		ID:        strings.TrimSpace(d.ID),
		Name:      d.Name,
		MaxStacks: d.MaxStacks,
		Length:    d.Length,
		MaxTicks:  d.MaxTicks,
		Damage:    d.Damage,
		Heal:      d.Heal,
	}
	var err error
	for _, name := range d.Triggers {
		t, err := effect.ParseTrigger(name)
		if err != nil {
			return def, err
		}
		def.Triggers = append(def.Triggers, t)
	}
	if def.Stacking, err = effect.ParseStackPolicy(d.Stacking); err != nil {
		return def, err
	}
	if def.Duration, err = effect.ParseDurationKind(d.Duration); err != nil {
		return def, err
	}
	if def.DamageType, err = combatant.ParseDamageType(d.DamageType); err != nil {
		return def, err
	}
	for _, m := range d.Modifiers {
		stat, ok := combatant.ParseStat(strings.TrimSpace(m.Stat))
		if !ok {
			return def, fmt.Errorf("unknown stat %q", m.Stat)
		}
		def.Modifiers = append(def.Modifiers, combatant.Modifier{Stat: stat, Amount: m.Amount})
	}
	return def, def.Validate()
}

func (d abilityDoc) ability() (combatant.Ability, error) {
	ability := combatant.Ability{
		ID:          strings.TrimSpace(d.ID),
		Name:        d.Name,
		Cooldown:    d.Cooldown,
		Power:       d.Power,
		HealPerUnit: d.HealPerUnit,
		Effects:     d.Effects,
	}
	var err error
	if ability.Target, err = combatant.ParseTargetType(d.Target); err != nil {
		return ability, err
	}
	if ability.DamageType, err = combatant.ParseDamageType(d.DamageType); err != nil {
		return ability, err
	}
	return ability, ability.Validate()
}

func (d squadDoc) definition(abilities map[string]combatant.Ability) (combatant.Definition, error) {
	def := combatant.Definition{
		ID:   strings.TrimSpace(d.ID),
		Name: d.Name,
		Stats: combatant.Stats{
			HealthPerUnit:   d.HealthPerUnit,
			PhysicalDefense: d.Defense.Physical,
			MagicDefense:    d.Defense.Magic,
			AbsoluteDefense: d.Defense.Absolute,
			Initiative:      d.Initiative,
			CritChance:      d.CritChance,
			CritMultiplier:  d.CritMultiplier,
			MissChance:      d.MissChance,
		},
	}
	switch len(d.Damage) {
	case 1:
		def.Stats.MinDamage, def.Stats.MaxDamage = d.Damage[0], d.Damage[0]
	case 2:
		def.Stats.MinDamage, def.Stats.MaxDamage = d.Damage[0], d.Damage[1]
	default:
		return def, fmt.Errorf("damage must be [min, max], got %v", d.Damage)
	}
	for _, p := range []float64{d.CritChance, d.MissChance} {
		if p < 0 || p > 1 {
			return def, fmt.Errorf("chance %v outside [0, 1]", p)
		}
	}
	var err error
	if def.Stats.DamageType, err = combatant.ParseDamageType(d.DamageType); err != nil {
		return def, err
	}
	for _, id := range d.Abilities {
		ability, ok := abilities[id]
		if !ok {
			return def, fmt.Errorf("unknown ability %q", id)
		}
		def.Abilities = append(def.Abilities, ability)
	}
	return def, def.Validate()
}
