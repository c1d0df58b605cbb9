// Package encounter loads Lua encounter scripts that declare which squads
// meet on the battlefield.
//
//	local e = Encounter.new("Bridge")
//	e:hero("knight", 1)
//	e:ally("archer", 20)
//	e:enemy("goblin", 30)
//	e:seed(42)
//	return e
package encounter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/skirmish/internal/battle/catalog"
	"github.com/louisbranch/skirmish/internal/battle/phase"
)

const encounterTypeName = "encounter"

// ErrInvalidScript indicates a script ran but did not declare a usable encounter.
var ErrInvalidScript = errors.New("invalid encounter script")

// Entry is one declared squad.
type Entry struct {
	SquadID string
	Count   int
}

// Script is the encounter a Lua file declares.
type Script struct {
	Name    string
	Hero    *Entry
	Allies  []Entry
	Enemies []Entry
	Seed    int64
}

// LoadFile runs the script at path. The file name is the fallback name.
func LoadFile(path string) (*Script, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	script, err := run(state)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(script.Name) == "" {
		script.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return script, nil
}

// LoadDir runs every *.lua file in dir, keyed by file name without extension.
func LoadDir(dir string) (map[string]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read encounters dir: %w", err)
	}
	scripts := make(map[string]*Script)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		script, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scripts[strings.TrimSuffix(entry.Name(), ".lua")] = script
	}
	return scripts, nil
}

// Parse runs script source held in memory.
func Parse(source string) (*Script, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return run(state)
}

// Resolve looks every declared squad up in cat and builds the setup payload.
func (s *Script) Resolve(cat *catalog.Catalog) (phase.Setup, error) {
	if s.Hero == nil {
		return phase.Setup{}, fmt.Errorf("%w: %s declares no hero", ErrInvalidScript, s.Name)
	}
	setup := phase.Setup{Name: s.Name, Seed: s.Seed, Effects: cat.Effects()}
	var err error
	if setup.Hero, err = squad(cat, *s.Hero); err != nil {
		return phase.Setup{}, err
	}
	for _, e := range s.Allies {
		sq, err := squad(cat, e)
		if err != nil {
			return phase.Setup{}, err
		}
		setup.Allies = append(setup.Allies, sq)
	}
	for _, e := range s.Enemies {
		sq, err := squad(cat, e)
		if err != nil {
			return phase.Setup{}, err
		}
		setup.Enemies = append(setup.Enemies, sq)
	}
	return setup, nil
}

func squad(cat *catalog.Catalog, e Entry) (phase.Squad, error) {
	def, err := cat.Squad(e.SquadID)
	if err != nil {
		return phase.Squad{}, err
	}
	return phase.Squad{Definition: def, Count: e.Count}, nil
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)

	lua.NewMetaTable(state, encounterTypeName)
	state.NewTable()
	lua.SetFunctions(state, encounterMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: encounterNew}}, 0)
	state.SetGlobal("Encounter")
	return state
}

func run(state *lua.State) (*Script, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("%w: script must return an Encounter", ErrInvalidScript)
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	script, ok := ud.(*Script)
	if !ok || script == nil {
		return nil, fmt.Errorf("%w: script returned a foreign value", ErrInvalidScript)
	}
	if script.Hero == nil {
		return nil, fmt.Errorf("%w: no hero declared", ErrInvalidScript)
	}
	if len(script.Enemies) == 0 {
		return nil, fmt.Errorf("%w: no enemies declared", ErrInvalidScript)
	}
	return script, nil
}

var encounterMethods = []lua.RegistryFunction{
	{Name: "hero", Function: encounterHero},
	{Name: "ally", Function: encounterAlly},
	{Name: "enemy", Function: encounterEnemy},
	{Name: "seed", Function: encounterSeed},
}

func encounterNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Script{Name: name})
	lua.SetMetaTableNamed(state, encounterTypeName)
	return 1
}

func encounterHero(state *lua.State) int {
	script := checkScript(state)
	entry := checkEntry(state)
	if script.Hero != nil {
		lua.Errorf(state, "hero already declared as %s", script.Hero.SquadID)
	}
	script.Hero = &entry
	return 0
}

func encounterAlly(state *lua.State) int {
	script := checkScript(state)
	script.Allies = append(script.Allies, checkEntry(state))
	return 0
}

func encounterEnemy(state *lua.State) int {
	script := checkScript(state)
	script.Enemies = append(script.Enemies, checkEntry(state))
	return 0
}

func encounterSeed(state *lua.State) int {
	script := checkScript(state)
	script.Seed = int64(lua.CheckInteger(state, 2))
	return 0
}

func checkScript(state *lua.State) *Script {
	ud := lua.CheckUserData(state, 1, encounterTypeName)
	if script, ok := ud.(*Script); ok && script != nil {
		return script
	}
	lua.ArgumentError(state, 1, "encounter expected")
	return nil
}

func checkEntry(state *lua.State) Entry {
	id := strings.TrimSpace(lua.CheckString(state, 2))
	lua.ArgumentCheck(state, id != "", 2, "squad id must not be empty")
	count := lua.OptInteger(state, 3, 1)
	lua.ArgumentCheck(state, count > 0, 3, "troop count must be positive")
	return Entry{SquadID: id, Count: count}
}
