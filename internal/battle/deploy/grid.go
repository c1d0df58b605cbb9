// Package deploy places squads on the battlefield grid before combat.
package deploy

import (
	"errors"
	"fmt"

	"github.com/louisbranch/skirmish/internal/battle/combatant"
)

const (
	DefaultColumns = 8
	DefaultRows    = 6
	// ZoneColumns is the width of each side's deployment zone.
	ZoneColumns = 2
)

var (
	ErrOutOfBounds  = errors.New("cell is outside the grid")
	ErrOccupied     = errors.New("cell is occupied")
	ErrOutsideZone  = errors.New("cell is outside the deployment zone")
	ErrLocked       = errors.New("deployment is locked")
	ErrUnknownSquad = errors.New("squad is not deployed")
	ErrNotFriendly  = errors.New("only friendly squads can be moved")
	ErrNoSpace      = errors.New("deployment zone is full")
)

// Cell addresses one grid square.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Col, c.Row) }

// Grid tracks where each squad stands. Friendly squads deploy in the left
// columns and enemies in the right columns.
type Grid struct {
	cols, rows int
	positions  map[string]Cell
	occupants  map[Cell]string
	friendly   map[string]bool
	locked     bool
}

// NewGrid returns an empty grid. Dimensions below the zone width fall back
// to the defaults.
func NewGrid(cols, rows int) *Grid {
	if cols < 2*ZoneColumns {
		cols = DefaultColumns
	}
	if rows <= 0 {
		rows = DefaultRows
	}
	return &Grid{
		cols:      cols,
		rows:      rows,
		positions: map[string]Cell{},
		occupants: map[Cell]string{},
		friendly:  map[string]bool{},
	}
}

// Size returns the grid dimensions.
func (g *Grid) Size() (cols, rows int) { return g.cols, g.rows }

// DefaultLayout places roster top to bottom, column by column, inside each
// side's zone. Squads already placed keep their cell.
func (g *Grid) DefaultLayout(roster []*combatant.Combatant) error {
	for _, c := range roster {
		if _, ok := g.positions[c.ID()]; ok {
			continue
		}
		cell, ok := g.freeCell(c.Faction().Friendly())
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoSpace, c.ID())
		}
		if err := g.Place(c, cell); err != nil {
			return err
		}
	}
	return nil
}

// Place puts c on cell inside its side's zone.
func (g *Grid) Place(c *combatant.Combatant, cell Cell) error {
	if g.locked {
		return ErrLocked
	}
	friendly := c.Faction().Friendly()
	if err := g.check(c.ID(), cell, friendly); err != nil {
		return err
	}
	g.set(c.ID(), cell)
	g.friendly[c.ID()] = friendly
	return nil
}

// Move relocates a friendly squad within the friendly zone.
func (g *Grid) Move(id string, cell Cell) error {
	if g.locked {
		return ErrLocked
	}
	if _, ok := g.positions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSquad, id)
	}
	if !g.friendly[id] {
		return fmt.Errorf("%w: %s", ErrNotFriendly, id)
	}
	if err := g.check(id, cell, true); err != nil {
		return err
	}
	g.set(id, cell)
	return nil
}

// Lock freezes the layout.
func (g *Grid) Lock() { g.locked = true }

// Locked reports whether the layout is frozen.
func (g *Grid) Locked() bool { return g.locked }

// Position returns the cell of squad id.
func (g *Grid) Position(id string) (Cell, bool) {
	cell, ok := g.positions[id]
	return cell, ok
}

// Layout returns a copy of every squad position.
func (g *Grid) Layout() map[string]Cell {
	out := make(map[string]Cell, len(g.positions))
	for id, cell := range g.positions {
		out[id] = cell
	}
	return out
}

func (g *Grid) check(id string, cell Cell, friendly bool) error {
	if cell.Col < 0 || cell.Row < 0 || cell.Col >= g.cols || cell.Row >= g.rows {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, cell)
	}
	if !g.inZone(cell, friendly) {
		return fmt.Errorf("%w: %s", ErrOutsideZone, cell)
	}
	if other, ok := g.occupants[cell]; ok && other != id {
		return fmt.Errorf("%w: %s by %s", ErrOccupied, cell, other)
	}
	return nil
}

func (g *Grid) inZone(cell Cell, friendly bool) bool {
	if friendly {
		return cell.Col < ZoneColumns
	}
	return cell.Col >= g.cols-ZoneColumns
}

func (g *Grid) set(id string, cell Cell) {
	if old, ok := g.positions[id]; ok {
		delete(g.occupants, old)
	}
	g.positions[id] = cell
	g.occupants[cell] = id
}

// freeCell scans the side's zone from the outer column inwards.
func (g *Grid) freeCell(friendly bool) (Cell, bool) {
	for i := 0; i < ZoneColumns; i++ {
		col := i
		if !friendly {
			col = g.cols - 1 - i
		}
		for row := 0; row < g.rows; row++ {
			cell := Cell{Col: col, Row: row}
			if _, taken := g.occupants[cell]; !taken {
				return cell, true
			}
		}
	}
	return Cell{}, false
}
