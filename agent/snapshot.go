package agent

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
	"github.com/nstehr/vimy/vimy-build/model"
)

// ImportObservation converts what the game reports into a simulator state.
//
// Completed units become unit entries. A completed producer with an order
// is marked busy and a completion event is scheduled for the order's
// remaining build time; upgrades under research are handled the same way.
// Units still under construction become completion events with no caster,
// so morphs and addons must be reported as producer orders instead.
func ImportObservation(t *catalog.Table, obs model.Observation) (*econ.State, error) {
	race, err := catalog.ParseRace(obs.Race)
	if err != nil {
		return nil, fmt.Errorf("import observation: %w", err)
	}
	s := econ.NewState(t, race)
	s.SetTime(obs.Time)
	s.SetResources(econ.Resources{Minerals: obs.Minerals, Vespene: obs.Vespene})

	for _, u := range obs.Units {
		if !u.Completed() {
			continue
		}
		id, addon, err := resolveUnit(t, u)
		if err != nil {
			return nil, err
		}
		s.AddUnits(id, addon, 1)
	}

	if len(obs.Bases) > 0 {
		for _, b := range obs.Bases {
			s.AddBase(econ.BaseInfo{Minerals: b.Minerals, Vespene: b.Vespene})
		}
	} else {
		// Fresh bases under every town hall when the game leaves them out.
		for range s.CountUnits(t.Race(race).TownHall) {
			s.AddBase(econ.NewBase())
		}
	}

	for _, name := range obs.Upgrades {
		id, ok := t.UpgradeByName(name)
		if !ok {
			return nil, fmt.Errorf("import observation: unknown upgrade %q", name)
		}
		s.AddUpgrade(id)
	}
	for _, c := range obs.Chrono {
		s.AddChronoCaster(c.Energy)
	}

	for _, u := range obs.Units {
		if !u.Completed() || u.Order == "" {
			continue
		}
		id, addon, _ := resolveUnit(t, u)
		if err := importOrder(s, id, addon, u.Order, u.OrderProgress); err != nil {
			return nil, fmt.Errorf("import observation: unit %d: %w", u.ID, err)
		}
	}
	for _, r := range obs.Researching {
		if err := importResearch(s, r); err != nil {
			return nil, fmt.Errorf("import observation: %w", err)
		}
	}
	for _, u := range obs.Units {
		if u.Completed() {
			continue
		}
		if err := importConstruction(s, u); err != nil {
			return nil, fmt.Errorf("import observation: unit %d: %w", u.ID, err)
		}
	}

	s.EnsureLarva()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("import observation: %w", err)
	}
	return s, nil
}

func resolveUnit(t *catalog.Table, u model.Unit) (id, addon catalog.UnitTypeID, err error) {
	id, ok := t.UnitByName(u.TypeName())
	if !ok {
		return catalog.NoUnit, catalog.NoUnit, fmt.Errorf("import observation: unknown unit %q", u.Type)
	}
	addon = catalog.NoUnit
	if u.Addon != "" {
		if addon, ok = t.UnitByName(u.Addon); !ok {
			return catalog.NoUnit, catalog.NoUnit, fmt.Errorf("import observation: unknown addon %q", u.Addon)
		}
	}
	return id, addon, nil
}

func remaining(buildTime, progress float64) float64 {
	return (1 - clampProgress(progress)) * buildTime
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// importOrder occupies the producer (producer, addon) with the named item.
func importOrder(s *econ.State, producer, addon catalog.UnitTypeID, name string, progress float64) error {
	t := s.Table()
	it, err := t.ItemByName(name)
	if err != nil {
		return err
	}
	if id, ok := it.Upgrade(); ok {
		return occupy(s, producer, addon, it, remaining(t.Upgrade(id).BuildTime, progress), 0)
	}

	id, _ := it.Unit()
	u := t.Unit(id)
	build := u.BuildTime
	if producer == t.Race(s.Race()).WarpGate && u.WarpBuildTime > 0 {
		build = u.WarpBuildTime
	}
	left := remaining(build, progress)
	if u.ConsumesProducer {
		// The game has already removed the producer.
		s.Schedule(econ.Event{Kind: econ.UnitFinished, Time: s.Time() + left, Caster: producer, CasterAddon: addon, Ref: it})
		return nil
	}
	busy := 0.0
	if u.ProducerBusyTime > 0 {
		busy = u.ProducerBusyTime - clampProgress(progress)*build
		if busy <= 0 {
			// The producer has moved on; only the item is still in flight.
			s.Schedule(econ.Event{Kind: econ.UnitFinished, Time: s.Time() + left, Caster: producer, CasterAddon: addon, Ref: it})
			return nil
		}
	}
	return occupy(s, producer, addon, it, left, busy)
}

// occupy marks one slot of (producer, addon) busy and schedules the item's
// completion. With busy > 0 the slot is freed after busy seconds instead of
// on completion.
func occupy(s *econ.State, producer, addon catalog.UnitTypeID, it catalog.Item, left, busy float64) error {
	t := s.Table()
	if !hasFreeSlot(s, producer, addon) {
		return fmt.Errorf("%s (addon %s) has no free slot for %s",
			t.UnitName(producer), t.UnitName(addon), t.ItemName(it))
	}
	s.MakeUnitsBusy(producer, addon, 1)
	kind := econ.UnitFinished
	if _, ok := it.Upgrade(); ok {
		kind = econ.UpgradeFinished
	}
	now := s.Time()
	s.Schedule(econ.Event{Kind: kind, Time: now + left, Caster: producer, CasterAddon: addon, Ref: it, HoldsCaster: busy <= 0})
	if busy > 0 {
		s.Schedule(econ.Event{Kind: econ.ProducerFreed, Time: now + min(busy, left), Caster: producer, CasterAddon: addon})
	}
	return nil
}

func hasFreeSlot(s *econ.State, t, addon catalog.UnitTypeID) bool {
	for _, e := range s.Units() {
		if e.Type == t && e.Addon == addon {
			return s.Available(e) > 0
		}
	}
	return false
}

// importResearch places an upgrade in progress on a free producer entry of
// the reported type, whatever addon it carries.
func importResearch(s *econ.State, r model.Research) error {
	t := s.Table()
	id, ok := t.UpgradeByName(r.Name)
	if !ok {
		return fmt.Errorf("unknown upgrade %q", r.Name)
	}
	if s.HasUpgrade(id) {
		return fmt.Errorf("%s is both researched and in progress", r.Name)
	}
	upg := t.Upgrade(id)
	producer := upg.Producer
	if r.Producer != "" {
		if producer, ok = t.UnitByName(r.Producer); !ok {
			return fmt.Errorf("unknown producer %q", r.Producer)
		}
	}
	for _, e := range s.Units() {
		if e.Type == producer && s.Available(e) > 0 {
			return occupy(s, producer, e.Addon, catalog.UpgradeItem(id), remaining(upg.BuildTime, r.Progress), 0)
		}
	}
	return fmt.Errorf("no free %s to research %s", t.UnitName(producer), r.Name)
}

func importConstruction(s *econ.State, u model.Unit) error {
	t := s.Table()
	id, ok := t.UnitByName(u.TypeName())
	if !ok {
		return fmt.Errorf("unknown unit %q", u.Type)
	}
	info := t.Unit(id)
	if info.Morph || info.Addon {
		return fmt.Errorf("%s under construction must be reported as its producer's order", u.Type)
	}
	s.Schedule(econ.Event{
		Kind:        econ.UnitFinished,
		Time:        s.Time() + remaining(info.BuildTime, u.Progress),
		Caster:      catalog.NoUnit,
		CasterAddon: catalog.NoUnit,
		Ref:         catalog.UnitItem(id),
	})
	return nil
}
