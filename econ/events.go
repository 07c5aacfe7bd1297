package econ

import (
	"fmt"
	"math"
	"sort"

	"github.com/nstehr/vimy/vimy-build/catalog"
)

var inf = math.Inf(1)

// EventKind identifies what applying an event does to the state.
type EventKind uint8

const (
	UnitFinished EventKind = iota
	UpgradeFinished
	LarvaSpawn
	TransientExpired
	ProducerFreed
	WarpGateTransition
)

func (k EventKind) String() string {
	switch k {
	case UnitFinished:
		return "unit_finished"
	case UpgradeFinished:
		return "upgrade_finished"
	case LarvaSpawn:
		return "larva_spawn"
	case TransientExpired:
		return "transient_expired"
	case ProducerFreed:
		return "producer_freed"
	case WarpGateTransition:
		return "warpgate_transition"
	}
	return fmt.Sprintf("event(%d)", k)
}

// Zerg larva and protoss warpgate timings.
const (
	LarvaInterval         = 11.0
	LarvaPerTownHall      = 3
	GatewayTransitionTime = 7.0
	transitionRetry       = 1.0
)

// Event is a scheduled future mutation of the state.
type Event struct {
	Kind        EventKind
	Time        float64
	Caster      catalog.UnitTypeID
	CasterAddon catalog.UnitTypeID
	Ref         catalog.Item
	// ChronoEnd is the end of the boost window the production ran under.
	// Whatever is left of it when the event fires goes back to the ledger.
	ChronoEnd float64
	// HoldsCaster is set when applying the event releases one busy slot of
	// (Caster, CasterAddon).
	HoldsCaster bool
}

// Schedule inserts an event after every event with the same or an earlier time.
func (s *State) Schedule(e Event) {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Time > e.Time })
	s.events = append(s.events, Event{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = e
	s.touch()
}

// HasPendingEvents reports whether any event is scheduled.
func (s *State) HasPendingEvents() bool { return len(s.events) > 0 }

// NextEventTime returns the time of the earliest scheduled event.
func (s *State) NextEventTime() (float64, bool) {
	if len(s.events) == 0 {
		return 0, false
	}
	return s.events[0].Time, true
}

// NextEconomicEventTime returns the time of the earliest event that changes
// the mining rate or supply.
func (s *State) NextEconomicEventTime() (float64, bool) {
	for i := range s.events {
		if s.economyImpacting(s.events[i]) {
			return s.events[i].Time, true
		}
	}
	return 0, false
}

func (s *State) cancelHoldingEvent(t, addon catalog.UnitTypeID) bool {
	for j := len(s.events) - 1; j >= 0; j-- {
		e := &s.events[j]
		if e.HoldsCaster && e.Caster == t && e.CasterAddon == addon {
			s.events = append(s.events[:j], s.events[j+1:]...)
			return true
		}
	}
	return false
}

// advanceTo integrates mining up to t at the cached rate. Time never moves backwards.
func (s *State) advanceTo(t float64) {
	if t <= s.time {
		return
	}
	s.SimulateMining(t - s.time)
	s.time = t
	s.touch()
}

// Simulate applies every event due at or before end, integrating mining
// between them, then mines up to end. The mining rate is re-derived only
// after events classified as economy-impacting. onEvent, when set, is called
// after each applied event.
func (s *State) Simulate(end float64, onEvent func(Event)) {
	for len(s.events) > 0 && s.events[0].Time <= end {
		e := s.events[0]
		s.events = s.events[1:]
		s.advanceTo(e.Time)
		s.apply(e)
		if s.economyImpacting(e) {
			s.miningValid = false
		}
		if onEvent != nil {
			onEvent(e)
		}
	}
	s.advanceTo(end)
}

// SimulateNext advances to the next scheduled event and applies every event
// due at that time. It reports false when nothing is scheduled.
func (s *State) SimulateNext(onEvent func(Event)) bool {
	t, ok := s.NextEventTime()
	if !ok {
		return false
	}
	s.Simulate(t, onEvent)
	return true
}

func (s *State) economyImpacting(e Event) bool {
	switch e.Kind {
	case UnitFinished:
		id, _ := e.Ref.Unit()
		u := s.table.Unit(id)
		if u.Harvester || u.Collector || u.TownHall || u.FoodProvided > 0 || u.Structure || u.Addon || u.Morph {
			return true
		}
		return e.HoldsCaster && s.table.Unit(e.Caster).Harvester
	case ProducerFreed, TransientExpired:
		return s.table.Unit(e.Caster).Harvester
	case WarpGateTransition:
		return true
	}
	return false
}

func (s *State) apply(e Event) {
	switch e.Kind {
	case UnitFinished:
		s.applyUnitFinished(e)
	case UpgradeFinished:
		if e.HoldsCaster {
			s.FreeUnits(e.Caster, e.CasterAddon, 1)
		}
		id, _ := e.Ref.Upgrade()
		s.AddUpgrade(id)
		s.returnBoost(e)
		if id == s.table.Race(s.race).WarpGateResearch {
			s.scheduleTransitions(e.Time)
		}
	case LarvaSpawn:
		s.spawnLarva()
	case TransientExpired:
		s.KillUnits(e.Caster, e.CasterAddon, 1)
	case ProducerFreed:
		s.FreeUnits(e.Caster, e.CasterAddon, 1)
	case WarpGateTransition:
		s.transitionGateway(e)
	default:
		panic(fmt.Sprintf("econ: unknown event kind %d", e.Kind))
	}
}

func (s *State) applyUnitFinished(e Event) {
	id, ok := e.Ref.Unit()
	if !ok {
		panic("econ: unit_finished event without a unit")
	}
	u := s.table.Unit(id)
	if e.HoldsCaster {
		s.FreeUnits(e.Caster, e.CasterAddon, 1)
	}
	switch {
	case u.Morph:
		s.KillUnits(e.Caster, e.CasterAddon, 1)
		s.AddUnits(id, e.CasterAddon, 1)
	case u.Addon:
		s.KillUnits(e.Caster, catalog.NoUnit, 1)
		s.AddUnits(e.Caster, id, 1)
		s.AddUnits(id, catalog.NoUnit, 1)
	default:
		s.AddUnits(id, catalog.NoUnit, u.Count)
	}
	s.returnBoost(e)

	info := s.table.Race(s.race)
	if u.TownHall && !u.Morph {
		s.AddBase(NewBase())
		switch s.race {
		case catalog.Protoss:
			s.AddChronoCaster(StartEnergy)
		case catalog.Zerg:
			s.EnsureLarva()
		}
	}
	if id == info.Gateway && info.WarpGateResearch != catalog.NoUpgrade && s.HasUpgrade(info.WarpGateResearch) {
		s.Schedule(Event{Kind: WarpGateTransition, Time: e.Time + GatewayTransitionTime, Caster: id, CasterAddon: catalog.NoUnit})
	}
}

// returnBoost hands the unused part of a boost window back to the caster type.
func (s *State) returnBoost(e Event) {
	if e.ChronoEnd > e.Time && e.Caster != catalog.NoUnit {
		s.CommitBoost(e.Caster, e.ChronoEnd)
	}
}

func (s *State) scheduleTransitions(now float64) {
	info := s.table.Race(s.race)
	if info.Gateway == catalog.NoUnit {
		return
	}
	i := s.entryIndex(info.Gateway, catalog.NoUnit)
	if i < 0 {
		return
	}
	for n := 0; n < s.units[i].Total; n++ {
		s.Schedule(Event{Kind: WarpGateTransition, Time: now + GatewayTransitionTime, Caster: info.Gateway, CasterAddon: catalog.NoUnit})
	}
}

// transitionGateway converts one idle gateway. A busy gateway retries
// shortly after; a missing one is dropped.
func (s *State) transitionGateway(e Event) {
	info := s.table.Race(s.race)
	i := s.entryIndex(info.Gateway, catalog.NoUnit)
	if i < 0 || s.units[i].Total == 0 {
		return
	}
	if s.Available(s.units[i]) <= 0 {
		e.Time += transitionRetry
		s.Schedule(e)
		return
	}
	s.KillUnits(info.Gateway, catalog.NoUnit, 1)
	s.AddUnits(info.WarpGate, catalog.NoUnit, 1)
}

func (s *State) larvaCap() (larva catalog.UnitTypeID, count, limit int) {
	info := s.table.Race(s.race)
	if info.Larva == catalog.NoUnit {
		return catalog.NoUnit, 0, 0
	}
	return info.Larva, s.CountUnits(info.Larva), LarvaPerTownHall * s.CountUnits(info.TownHall)
}

// EnsureLarva keeps a larva spawn scheduled while the larva count is below
// the cap. The chain stops at the cap so the event queue can drain.
func (s *State) EnsureLarva() {
	larva, count, limit := s.larvaCap()
	if larva == catalog.NoUnit || count >= limit {
		return
	}
	for i := range s.events {
		if s.events[i].Kind == LarvaSpawn {
			return
		}
	}
	s.Schedule(Event{Kind: LarvaSpawn, Time: s.time + LarvaInterval, Caster: s.table.Race(s.race).TownHall, CasterAddon: catalog.NoUnit})
}

func (s *State) spawnLarva() {
	larva, count, limit := s.larvaCap()
	if larva == catalog.NoUnit {
		return
	}
	info := s.table.Race(s.race)
	if n := min(s.CountUnits(info.TownHall), limit-count); n > 0 {
		s.AddUnits(larva, catalog.NoUnit, n)
	}
	s.EnsureLarva()
}
