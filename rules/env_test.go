package rules

import (
	"testing"

	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

func TestGoalEnvHelpers(t *testing.T) {
	tbl := catalog.MustDefault()
	s := econ.Opening(tbl, catalog.Protoss)
	env := GoalEnv{State: s, Table: tbl}

	if env.Race() != "protoss" {
		t.Errorf("Race() = %q", env.Race())
	}
	if env.Harvesters() != 12 || env.UnitCount("Probe") != 12 {
		t.Errorf("expected 12 probes, got %d/%d", env.Harvesters(), env.UnitCount("Probe"))
	}
	if env.UnitCount("NoSuchThing") != 0 || env.HasUpgrade("NoSuchThing") {
		t.Errorf("unknown names should count as zero")
	}
	if env.Bases() != 1 || env.FoodCap() != 15 || env.FoodUsed() != 12 {
		t.Errorf("unexpected bases/food: %d %v %v", env.Bases(), env.FoodCap(), env.FoodUsed())
	}
	if env.Income() <= 0 {
		t.Errorf("expected positive income")
	}

	gate, _ := tbl.UnitByName("Gateway")
	probe, _ := tbl.UnitByName("Probe")
	s.Schedule(econ.Event{Kind: econ.UnitFinished, Time: 46, Caster: probe, CasterAddon: catalog.NoUnit, Ref: catalog.UnitItem(gate)})
	if env.Pending("Gateway") != 1 || env.HasUnit("Gateway") {
		t.Errorf("expected one pending gateway and none completed")
	}
}
