package econ

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/nstehr/vimy/vimy-build/catalog"
)

// Resources are banked minerals and vespene.
type Resources struct {
	Minerals float64
	Vespene  float64
}

// UnitEntry counts units of one type with one (optional) attached addon.
// Busy counts occupied production slots, not units.
type UnitEntry struct {
	Type  catalog.UnitTypeID
	Addon catalog.UnitTypeID
	Total int
	Busy  int
}

// State is one snapshot of the simulated economy. It is not safe for
// concurrent use; searches clone it per evaluation.
type State struct {
	table     *catalog.Table
	time      float64
	race      catalog.Race
	units     []UnitEntry
	events    []Event
	resources Resources
	bases     []BaseInfo
	ledger    ChronoLedger
	upgrades  []bool

	mining      miningCache
	miningValid bool

	hash      uint64
	hashValid bool
}

// NewState returns an empty economy at time zero.
func NewState(table *catalog.Table, race catalog.Race) *State {
	return &State{
		table:    table,
		race:     race,
		upgrades: make([]bool, len(table.Upgrades)),
	}
}

func (s *State) Table() *catalog.Table { return s.table }
func (s *State) Time() float64         { return s.time }
func (s *State) Race() catalog.Race    { return s.race }
func (s *State) Resources() Resources  { return s.resources }

// Units exposes the unit entries. Callers must not modify the slice.
func (s *State) Units() []UnitEntry { return s.units }

// Events exposes the pending events in time order. Callers must not modify the slice.
func (s *State) Events() []Event { return s.events }

// Bases exposes per-base remaining resources. Callers must not modify the slice.
func (s *State) Bases() []BaseInfo { return s.bases }

// SetTime moves the clock forward without mining. Only importers use it,
// before any unit exists; moving backwards panics.
func (s *State) SetTime(t float64) {
	if t < s.time {
		panic(fmt.Sprintf("econ: time moved backwards from %.2f to %.2f", s.time, t))
	}
	s.time = t
	s.touch()
}

func (s *State) SetResources(r Resources) {
	s.resources = r
	s.touch()
}

// AddBase registers a mining base.
func (s *State) AddBase(b BaseInfo) {
	s.bases = append(s.bases, b)
	s.miningValid = false
	s.touch()
}

// Spend debits resources. Tiny negative balances left by floating point
// rounding of the affordability wait are clamped to zero.
func (s *State) Spend(minerals, vespene float64) {
	s.resources.Minerals -= minerals
	s.resources.Vespene -= vespene
	if s.resources.Minerals < 0 {
		if s.resources.Minerals < -affordEpsilon {
			panic(fmt.Sprintf("econ: spent %.2f minerals with only %.2f banked", minerals, s.resources.Minerals+minerals))
		}
		s.resources.Minerals = 0
	}
	if s.resources.Vespene < 0 {
		if s.resources.Vespene < -affordEpsilon {
			panic(fmt.Sprintf("econ: spent %.2f vespene with only %.2f banked", vespene, s.resources.Vespene+vespene))
		}
		s.resources.Vespene = 0
	}
	s.touch()
}

// affordEpsilon absorbs rounding when time is advanced to the exact moment
// an item becomes affordable.
const affordEpsilon = 1e-4

// CanAfford reports whether the bank covers the cost.
func (s *State) CanAfford(minerals, vespene float64) bool {
	return s.resources.Minerals+affordEpsilon >= minerals && s.resources.Vespene+affordEpsilon >= vespene
}

func (s *State) entryIndex(t, addon catalog.UnitTypeID) int {
	for i := range s.units {
		if s.units[i].Type == t && s.units[i].Addon == addon {
			return i
		}
	}
	return -1
}

func (s *State) slots(e *UnitEntry) int {
	if e.Addon != catalog.NoUnit && s.table.Unit(e.Addon).DoublesSlots {
		return 2 * e.Total
	}
	return e.Total
}

// Available returns the number of free production slots of an entry.
func (s *State) Available(e UnitEntry) int {
	return s.slots(&e) - e.Busy
}

// economic reports whether adding or removing the unit changes income or food.
func (s *State) economic(t catalog.UnitTypeID) bool {
	u := s.table.Unit(t)
	return u.Harvester || u.Collector || u.TownHall || u.FoodProvided > 0
}

// AddUnits adds n completed units of type t carrying addon.
func (s *State) AddUnits(t, addon catalog.UnitTypeID, n int) {
	if n <= 0 {
		return
	}
	if i := s.entryIndex(t, addon); i >= 0 {
		s.units[i].Total += n
	} else {
		s.units = append(s.units, UnitEntry{Type: t, Addon: addon, Total: n})
	}
	if s.economic(t) {
		s.miningValid = false
	}
	s.touch()
}

// KillUnits removes n units. If that leaves more busy slots than units, the
// pending event holding a unit of this kind that fires last is cancelled,
// repeatedly, until the entry is consistent. When no such event
// exists the busy count is forced down and the inconsistency is logged.
// Removing more units than exist is a programming error and panics.
func (s *State) KillUnits(t, addon catalog.UnitTypeID, n int) {
	i := s.entryIndex(t, addon)
	if i < 0 || s.units[i].Total < n {
		have := 0
		if i >= 0 {
			have = s.units[i].Total
		}
		panic(fmt.Sprintf("econ: removing %d %s (addon %s) but only %d exist",
			n, s.table.UnitName(t), s.table.UnitName(addon), have))
	}
	s.units[i].Total -= n
	for s.Available(s.units[i]) < 0 {
		if !s.cancelHoldingEvent(t, addon) {
			slog.Warn("no pending event holds the removed unit, forcing slot release",
				"unit", s.table.UnitName(t),
				"addon", s.table.UnitName(addon),
				"time", s.time,
			)
		}
		s.units[i].Busy--
	}
	if s.economic(t) {
		s.miningValid = false
	}
	s.touch()
}

// MakeUnitsBusy occupies n production slots.
func (s *State) MakeUnitsBusy(t, addon catalog.UnitTypeID, n int) {
	i := s.entryIndex(t, addon)
	if i < 0 || s.Available(s.units[i]) < n {
		panic(fmt.Sprintf("econ: occupying %d slots of %s (addon %s) without enough free",
			n, s.table.UnitName(t), s.table.UnitName(addon)))
	}
	s.units[i].Busy += n
	if s.table.Unit(t).Harvester {
		s.miningValid = false
	}
	s.touch()
}

// FreeUnits releases n production slots. A release that would go negative
// can only follow a forced release in KillUnits; it is clamped and logged.
func (s *State) FreeUnits(t, addon catalog.UnitTypeID, n int) {
	i := s.entryIndex(t, addon)
	if i < 0 || s.units[i].Busy < n {
		slog.Warn("releasing more slots than are busy",
			"unit", s.table.UnitName(t),
			"addon", s.table.UnitName(addon),
			"time", s.time,
		)
		if i >= 0 {
			s.units[i].Busy = 0
		}
	} else {
		s.units[i].Busy -= n
	}
	if s.table.Unit(t).Harvester {
		s.miningValid = false
	}
	s.touch()
}

// CountUnits counts completed units satisfying t (variants included) over all addons.
func (s *State) CountUnits(t catalog.UnitTypeID) int {
	n := 0
	for i := range s.units {
		if s.table.Satisfies(s.units[i].Type, t) {
			n += s.units[i].Total
		}
	}
	return n
}

// HasUnit reports whether at least one completed unit satisfies t.
func (s *State) HasUnit(t catalog.UnitTypeID) bool {
	for i := range s.units {
		if s.units[i].Total > 0 && s.table.Satisfies(s.units[i].Type, t) {
			return true
		}
	}
	return false
}

// CountPending counts units of type t that pending events will produce.
func (s *State) CountPending(t catalog.UnitTypeID) int {
	n := 0
	for i := range s.events {
		e := &s.events[i]
		if e.Kind != UnitFinished {
			continue
		}
		if id, ok := e.Ref.Unit(); ok && s.table.Satisfies(id, t) {
			n += s.table.Unit(id).Count
		}
	}
	return n
}

func (s *State) HasUpgrade(id catalog.UpgradeID) bool {
	return int(id) < len(s.upgrades) && s.upgrades[id]
}

// UpgradePending reports whether a research of id is in progress.
func (s *State) UpgradePending(id catalog.UpgradeID) bool {
	for i := range s.events {
		if s.events[i].Kind != UpgradeFinished {
			continue
		}
		if u, ok := s.events[i].Ref.Upgrade(); ok && u == id {
			return true
		}
	}
	return false
}

// AddUpgrade marks an upgrade as researched.
func (s *State) AddUpgrade(id catalog.UpgradeID) {
	for int(id) >= len(s.upgrades) {
		s.upgrades = append(s.upgrades, false)
	}
	s.upgrades[id] = true
	s.touch()
}

// MaxFood is the supply ceiling of the game.
const MaxFood = 200

// FoodCap is the supply provided by completed units, capped at MaxFood.
func (s *State) FoodCap() float64 {
	provided := 0.0
	for i := range s.units {
		provided += s.table.Unit(s.units[i].Type).FoodProvided * float64(s.units[i].Total)
	}
	return math.Min(provided, MaxFood)
}

// FoodUsed is the supply of completed units plus units still in production.
func (s *State) FoodUsed() float64 {
	used := 0.0
	for i := range s.units {
		used += s.table.Unit(s.units[i].Type).Food * float64(s.units[i].Total)
	}
	for i := range s.events {
		if s.events[i].Kind != UnitFinished {
			continue
		}
		if id, ok := s.events[i].Ref.Unit(); ok {
			u := s.table.Unit(id)
			used += u.Food * float64(u.Count)
		}
	}
	return used
}

// FoodAvailable is FoodCap minus FoodUsed.
func (s *State) FoodAvailable() float64 {
	return s.FoodCap() - s.FoodUsed()
}

// Validate checks the structural invariants: every entry has a
// non-negative busy count and free slots, and events are time ordered.
func (s *State) Validate() error {
	for _, e := range s.units {
		if e.Busy < 0 || s.Available(e) < 0 {
			return fmt.Errorf("unit %s (addon %s): total %d busy %d",
				s.table.UnitName(e.Type), s.table.UnitName(e.Addon), e.Total, e.Busy)
		}
	}
	for i := 1; i < len(s.events); i++ {
		if s.events[i].Time < s.events[i-1].Time {
			return fmt.Errorf("events out of order at %d: %.3f after %.3f", i, s.events[i].Time, s.events[i-1].Time)
		}
	}
	return nil
}

// Clone returns an independent deep copy.
func (s *State) Clone() *State {
	c := *s
	c.units = append([]UnitEntry(nil), s.units...)
	c.events = append([]Event(nil), s.events...)
	c.bases = append([]BaseInfo(nil), s.bases...)
	c.upgrades = append([]bool(nil), s.upgrades...)
	c.ledger = s.ledger.clone()
	c.mining = s.mining.clone()
	return &c
}

func (s *State) touch() { s.hashValid = false }

// Hash fingerprints the state. It is cached until the next mutation.
func (s *State) Hash() uint64 {
	if s.hashValid {
		return s.hash
	}
	h := fnv.New64a()
	var buf [8]byte
	putF := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	putI := func(i int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(i)))
		h.Write(buf[:])
	}
	putF(s.time)
	putI(int(s.race))
	putF(s.resources.Minerals)
	putF(s.resources.Vespene)
	for _, u := range s.units {
		putI(int(u.Type))
		putI(int(u.Addon))
		putI(u.Total)
		putI(u.Busy)
	}
	for _, e := range s.events {
		putI(int(e.Kind))
		putF(e.Time)
		putI(int(e.Caster))
		putI(int(e.CasterAddon))
		putI(e.Ref.Key())
		putF(e.ChronoEnd)
	}
	for _, b := range s.bases {
		putF(b.Minerals)
		putF(b.Vespene[0])
		putF(b.Vespene[1])
	}
	for i, done := range s.upgrades {
		if done {
			putI(i)
		}
	}
	s.ledger.hashInto(putI, putF)
	s.hash = h.Sum64()
	s.hashValid = true
	return s.hash
}
