package catalog

import "fmt"

// Race selects which slice of the catalog a snapshot plays with.
type Race uint8

const (
	Terran Race = iota
	Protoss
	Zerg
)

func (r Race) String() string {
	switch r {
	case Terran:
		return "terran"
	case Protoss:
		return "protoss"
	case Zerg:
		return "zerg"
	}
	return fmt.Sprintf("race(%d)", r)
}

// ParseRace accepts the lowercase race names used by the catalog and the game mod.
func ParseRace(s string) (Race, error) {
	switch s {
	case "terran", "Terran":
		return Terran, nil
	case "protoss", "Protoss":
		return Protoss, nil
	case "zerg", "Zerg":
		return Zerg, nil
	}
	return 0, fmt.Errorf("unknown race %q", s)
}

// UnitTypeID is a dense index into Table.Units. The catalog assigns ids in
// file order so the same catalog always yields the same ids.
type UnitTypeID int

// UpgradeID is a dense index into Table.Upgrades.
type UpgradeID int

const (
	NoUnit    UnitTypeID = -1
	NoUpgrade UpgradeID  = -1
)

// Unit is one row of the rules table. Times are simulation seconds.
type Unit struct {
	ID            UnitTypeID
	Name          string
	Race          Race
	Minerals      float64
	Vespene       float64
	BuildTime     float64
	WarpBuildTime float64 // used instead of BuildTime when produced by a warpgate
	Food          float64 // per produced unit
	FoodProvided  float64
	Count         int // units produced per item (zerglings hatch in pairs)

	Producers       []UnitTypeID
	RequiredUnit    UnitTypeID
	RequiredUpgrade UpgradeID
	RequiredAddon   UnitTypeID

	// ProducerBusyTime > 0 releases the producer before the item finishes
	// (probes only start a warp-in).
	ProducerBusyTime float64
	Lifetime         float64
	Spawner          UnitTypeID
	VariantOf        UnitTypeID

	Harvester        bool
	Collector        bool
	TownHall         bool
	Structure        bool
	Addon            bool
	DoublesSlots     bool
	Combat           bool
	ConsumesProducer bool
	Morph            bool
	Transient        bool
}

// Buildable reports whether a build order can name the unit directly.
func (u *Unit) Buildable() bool {
	return len(u.Producers) > 0 && !u.Transient
}

// Upgrade is a research item.
type Upgrade struct {
	ID              UpgradeID
	Name            string
	Race            Race
	Minerals        float64
	Vespene         float64
	BuildTime       float64
	Producer        UnitTypeID
	RequiredUnit    UnitTypeID
	RequiredUpgrade UpgradeID
}

// RaceInfo names the race-defining unit types. Zero-valued fields are NoUnit.
type RaceInfo struct {
	Harvester        UnitTypeID
	TownHall         UnitTypeID
	Supply           UnitTypeID
	Collector        UnitTypeID
	Larva            UnitTypeID
	Gateway          UnitTypeID
	WarpGate         UnitTypeID
	WarpGateResearch UpgradeID
}

// Table is the immutable rules table. Build it once with Load or Default
// and share it by pointer; nothing mutates it after load.
type Table struct {
	Units    []Unit
	Upgrades []Upgrade

	races       [3]RaceInfo
	unitByName  map[string]UnitTypeID
	upgByName   map[string]UpgradeID
	chronoable  []bool
	hasVariants []bool
}

func (t *Table) Unit(id UnitTypeID) *Unit      { return &t.Units[id] }
func (t *Table) Upgrade(id UpgradeID) *Upgrade { return &t.Upgrades[id] }
func (t *Table) Race(r Race) RaceInfo          { return t.races[r] }

func (t *Table) UnitName(id UnitTypeID) string {
	if id < 0 {
		return "none"
	}
	return t.Units[id].Name
}

func (t *Table) UpgradeName(id UpgradeID) string {
	if id < 0 {
		return "none"
	}
	return t.Upgrades[id].Name
}

// UnitByName resolves a unit name. Lookups by name belong at the edges
// (importer, goal rules); hot loops work on ids.
func (t *Table) UnitByName(name string) (UnitTypeID, bool) {
	id, ok := t.unitByName[name]
	return id, ok
}

func (t *Table) UpgradeByName(name string) (UpgradeID, bool) {
	id, ok := t.upgByName[name]
	return id, ok
}

// ItemByName resolves either a unit or an upgrade.
func (t *Table) ItemByName(name string) (Item, error) {
	if id, ok := t.unitByName[name]; ok {
		return UnitItem(id), nil
	}
	if id, ok := t.upgByName[name]; ok {
		return UpgradeItem(id), nil
	}
	return Item{}, fmt.Errorf("unknown unit or upgrade %q", name)
}

// ItemName is the display name of a unit or upgrade item.
func (t *Table) ItemName(it Item) string {
	if id, ok := it.Unit(); ok {
		return t.Units[id].Name
	}
	if id, ok := it.Upgrade(); ok {
		return t.Upgrades[id].Name
	}
	return "none"
}

// Satisfies reports whether owning `have` counts as owning `need`, following
// the variant chain (Lair counts as a Hatchery, WarpGate as a Gateway).
func (t *Table) Satisfies(have, need UnitTypeID) bool {
	if have == need {
		return true
	}
	if have < 0 || need < 0 || !t.hasVariants[need] {
		return false
	}
	for v := t.Units[have].VariantOf; v != NoUnit; v = t.Units[v].VariantOf {
		if v == need {
			return true
		}
	}
	return false
}

// Chronoable reports whether production at this producer can be chrono boosted.
func (t *Table) Chronoable(producer UnitTypeID) bool {
	return producer >= 0 && t.chronoable[producer]
}

// ItemCost returns the mineral and vespene price of an item.
func (t *Table) ItemCost(it Item) (minerals, vespene float64) {
	if id, ok := it.Unit(); ok {
		u := &t.Units[id]
		return u.Minerals, u.Vespene
	}
	if id, ok := it.Upgrade(); ok {
		u := &t.Upgrades[id]
		return u.Minerals, u.Vespene
	}
	return 0, 0
}

// ItemRace returns the race an item belongs to.
func (t *Table) ItemRace(it Item) Race {
	if id, ok := it.Unit(); ok {
		return t.Units[id].Race
	}
	id, _ := it.Upgrade()
	return t.Upgrades[id].Race
}
