package agent

import (
	"testing"

	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
	"github.com/nstehr/vimy/vimy-build/model"
)

func units(name string, n int) []model.Unit {
	out := make([]model.Unit, n)
	for i := range out {
		out[i] = model.Unit{ID: i + 1, Type: name, Progress: 1}
	}
	return out
}

func unitID(t *testing.T, tbl *catalog.Table, name string) catalog.UnitTypeID {
	t.Helper()
	id, ok := tbl.UnitByName(name)
	if !ok {
		t.Fatalf("unknown unit %s", name)
	}
	return id
}

func TestImportOpeningMatchesSimulatorOpening(t *testing.T) {
	tbl := catalog.MustDefault()
	obs := model.Observation{
		Race:     "protoss",
		Minerals: 50,
		Units:    append(units("Nexus", 1), units("Probe", 12)...),
		Bases:    []model.Base{{Minerals: econ.BaseMinerals, Vespene: [2]float64{econ.BaseGeyser, econ.BaseGeyser}}},
		Chrono:   []model.Caster{{Energy: econ.StartEnergy}},
	}
	s, err := ImportObservation(tbl, obs)
	if err != nil {
		t.Fatalf("ImportObservation: %v", err)
	}
	if s.Hash() != econ.Opening(tbl, catalog.Protoss).Hash() {
		t.Errorf("imported opening differs from econ.Opening")
	}
}

func TestImportInProgressBecomesEvents(t *testing.T) {
	tbl := catalog.MustDefault()
	obs := model.Observation{
		Race:     "terran",
		Time:     100,
		Minerals: 120,
		Units: append(append(units("CommandCenter", 1), units("SCV", 14)...),
			model.Unit{ID: 50, Type: "SupplyDepot", Progress: 1},
			model.Unit{ID: 51, Type: "Barracks", Progress: 0.5},
		),
	}
	obs.Units[0].Order = "SCV"
	obs.Units[0].OrderProgress = 0.25

	s, err := ImportObservation(tbl, obs)
	if err != nil {
		t.Fatalf("ImportObservation: %v", err)
	}
	if len(s.Bases()) != 1 {
		t.Errorf("expected a fresh base under the command center, got %d", len(s.Bases()))
	}

	events := s.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// SCV: 12s build, a quarter done.
	if events[0].Time != 109 || !events[0].HoldsCaster {
		t.Errorf("unexpected scv event: %+v", events[0])
	}
	// Barracks: 46s build, half done.
	if events[1].Time != 123 || events[1].Caster != catalog.NoUnit {
		t.Errorf("unexpected barracks event: %+v", events[1])
	}

	cc := unitID(t, tbl, "CommandCenter")
	for _, e := range s.Units() {
		if e.Type == cc && e.Busy != 1 {
			t.Errorf("expected the command center to be busy")
		}
	}

	s.Simulate(123, nil)
	if s.CountUnits(unitID(t, tbl, "SCV")) != 15 || !s.HasUnit(unitID(t, tbl, "Barracks")) {
		t.Errorf("events did not complete the scv and barracks")
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestImportResearchAndUpgrades(t *testing.T) {
	tbl := catalog.MustDefault()
	obs := model.Observation{
		Race: "terran",
		Time: 300,
		Units: append(append(units("CommandCenter", 1), units("SCV", 16)...),
			model.Unit{ID: 40, Type: "SupplyDepot", Progress: 1},
			model.Unit{ID: 41, Type: "Barracks", Addon: "BarracksTechLab", Progress: 1},
			model.Unit{ID: 42, Type: "BarracksTechLab", Progress: 1},
			model.Unit{ID: 43, Type: "EngineeringBay", Progress: 1},
		),
		Upgrades:    []string{"TerranInfantryWeaponsLevel1"},
		Researching: []model.Research{{Name: "Stimpack", Progress: 0.5}},
	}
	s, err := ImportObservation(tbl, obs)
	if err != nil {
		t.Fatalf("ImportObservation: %v", err)
	}
	weapons, _ := tbl.UpgradeByName("TerranInfantryWeaponsLevel1")
	stim, _ := tbl.UpgradeByName("Stimpack")
	if !s.HasUpgrade(weapons) {
		t.Errorf("expected weapons upgrade imported")
	}
	if !s.UpgradePending(stim) || s.HasUpgrade(stim) {
		t.Errorf("expected stimpack in progress")
	}
	want := 300 + tbl.Upgrade(stim).BuildTime/2
	s.Simulate(want, nil)
	if !s.HasUpgrade(stim) {
		t.Errorf("stimpack should finish at %.1f", want)
	}
}

func TestImportZergSchedulesLarva(t *testing.T) {
	tbl := catalog.MustDefault()
	obs := model.Observation{
		Race:  "zerg",
		Units: append(append(units("Hatchery", 1), units("Drone", 12)...), units("Overlord", 1)...),
	}
	s, err := ImportObservation(tbl, obs)
	if err != nil {
		t.Fatalf("ImportObservation: %v", err)
	}
	next, ok := s.NextEventTime()
	if !ok || next != econ.LarvaInterval {
		t.Errorf("expected a larva spawn at %v, got %v %v", econ.LarvaInterval, next, ok)
	}
}

func TestImportWarpGateUsesWarpBuildTime(t *testing.T) {
	tbl := catalog.MustDefault()
	obs := model.Observation{
		Race: "protoss",
		Units: append(append(units("Nexus", 1), units("Probe", 12)...),
			model.Unit{ID: 30, Type: "Pylon", Progress: 1},
			model.Unit{ID: 31, Type: "WarpGate", Progress: 1, Order: "Zealot", OrderProgress: 0.5},
		),
		Upgrades: []string{"WarpGateResearch"},
	}
	s, err := ImportObservation(tbl, obs)
	if err != nil {
		t.Fatalf("ImportObservation: %v", err)
	}
	zealot := unitID(t, tbl, "Zealot")
	finish := -1.0
	for _, e := range s.Events() {
		if id, ok := e.Ref.Unit(); ok && id == zealot && e.Kind == econ.UnitFinished {
			finish = e.Time
		}
	}
	if want := tbl.Unit(zealot).WarpBuildTime / 2; finish != want {
		t.Errorf("expected the zealot to finish at %v, got %v", want, finish)
	}
}

func TestImportErrors(t *testing.T) {
	tbl := catalog.MustDefault()
	cases := []struct {
		name string
		obs  model.Observation
	}{
		{"race", model.Observation{Race: "elves"}},
		{"unit", model.Observation{Race: "terran", Units: units("Battlecruiser", 1)}},
		{"addon", model.Observation{Race: "terran", Units: []model.Unit{{Type: "Barracks", Addon: "Hangar", Progress: 1}}}},
		{"upgrade", model.Observation{Race: "terran", Upgrades: []string{"Telepathy"}}},
		{"order", model.Observation{Race: "terran", Units: []model.Unit{{Type: "CommandCenter", Progress: 1, Order: "Dragoon"}}}},
		{"morph under construction", model.Observation{Race: "terran", Units: []model.Unit{{Type: "OrbitalCommand", Progress: 0.3}}}},
		{"research without producer", model.Observation{Race: "terran", Researching: []model.Research{{Name: "Stimpack"}}}},
		{"double booked producer", model.Observation{
			Race:        "terran",
			Units:       []model.Unit{{ID: 1, Type: "BarracksTechLab", Progress: 1, Order: "CombatShield"}},
			Researching: []model.Research{{Name: "Stimpack", Progress: 0.2}},
		}},
	}
	for _, c := range cases {
		if _, err := ImportObservation(tbl, c.obs); err == nil {
			t.Errorf("%s: expected an error", c.name)
		}
	}
}
