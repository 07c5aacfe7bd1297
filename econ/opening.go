package econ

import "github.com/nstehr/vimy/vimy-build/catalog"

// Opening returns the standard game start for race: one town hall with a
// fresh base, twelve harvesters and 50 minerals. Zerg also get an overlord
// and three larva, protoss a chrono caster at starting energy.
func Opening(table *catalog.Table, race catalog.Race) *State {
	info := table.Race(race)
	s := NewState(table, race)
	s.AddUnits(info.TownHall, catalog.NoUnit, 1)
	s.AddUnits(info.Harvester, catalog.NoUnit, 12)
	s.AddBase(NewBase())
	s.SetResources(Resources{Minerals: 50})
	switch race {
	case catalog.Zerg:
		s.AddUnits(info.Supply, catalog.NoUnit, 1)
		s.AddUnits(info.Larva, catalog.NoUnit, LarvaPerTownHall)
	case catalog.Protoss:
		s.AddChronoCaster(StartEnergy)
	}
	return s
}
