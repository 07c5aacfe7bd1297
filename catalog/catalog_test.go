package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	tbl, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	for _, r := range []Race{Terran, Protoss, Zerg} {
		info := tbl.Race(r)
		if info.Harvester == NoUnit || info.TownHall == NoUnit || info.Supply == NoUnit || info.Collector == NoUnit {
			t.Errorf("race %s missing core units: %+v", r, info)
		}
		if !tbl.Unit(info.Harvester).Harvester {
			t.Errorf("race %s harvester %s not flagged as harvester", r, tbl.UnitName(info.Harvester))
		}
	}
	if tbl.Race(Protoss).WarpGateResearch == NoUpgrade {
		t.Errorf("expected protoss warpgate research")
	}
	if tbl.Race(Zerg).Larva == NoUnit {
		t.Errorf("expected zerg larva")
	}
}

func TestIDsAreDenseAndStable(t *testing.T) {
	tbl := MustDefault()
	for i, u := range tbl.Units {
		if int(u.ID) != i {
			t.Fatalf("unit %s has id %d at index %d", u.Name, u.ID, i)
		}
		id, ok := tbl.UnitByName(u.Name)
		if !ok || id != u.ID {
			t.Errorf("UnitByName(%q) = %d,%v want %d", u.Name, id, ok, u.ID)
		}
	}
	for i, u := range tbl.Upgrades {
		if int(u.ID) != i {
			t.Fatalf("upgrade %s has id %d at index %d", u.Name, u.ID, i)
		}
	}
}

func TestSatisfiesFollowsVariants(t *testing.T) {
	tbl := MustDefault()
	lair, _ := tbl.UnitByName("Lair")
	hatch, _ := tbl.UnitByName("Hatchery")
	warp, _ := tbl.UnitByName("WarpGate")
	gate, _ := tbl.UnitByName("Gateway")
	pool, _ := tbl.UnitByName("SpawningPool")

	if !tbl.Satisfies(lair, hatch) {
		t.Errorf("Lair should satisfy Hatchery")
	}
	if tbl.Satisfies(hatch, lair) {
		t.Errorf("Hatchery should not satisfy Lair")
	}
	if !tbl.Satisfies(warp, gate) {
		t.Errorf("WarpGate should satisfy Gateway")
	}
	if tbl.Satisfies(pool, hatch) {
		t.Errorf("SpawningPool should not satisfy Hatchery")
	}
	if tbl.Satisfies(NoUnit, hatch) || tbl.Satisfies(hatch, NoUnit) {
		t.Errorf("NoUnit never satisfies anything")
	}
}

func TestItemUnion(t *testing.T) {
	tbl := MustDefault()
	marine, err := tbl.ItemByName("Marine")
	if err != nil {
		t.Fatalf("ItemByName(Marine): %v", err)
	}
	if !marine.IsUnit() || marine.IsUpgrade() {
		t.Errorf("Marine should be a unit item")
	}
	if _, ok := marine.Upgrade(); ok {
		t.Errorf("Marine should not unwrap as an upgrade")
	}
	stim, err := tbl.ItemByName("Stimpack")
	if err != nil {
		t.Fatalf("ItemByName(Stimpack): %v", err)
	}
	if !stim.IsUpgrade() {
		t.Errorf("Stimpack should be an upgrade item")
	}
	if got := tbl.ItemName(stim); got != "Stimpack" {
		t.Errorf("ItemName = %q", got)
	}
	m, v := tbl.ItemCost(stim)
	if m != 100 || v != 100 {
		t.Errorf("Stimpack cost = %v/%v", m, v)
	}
	if _, err := tbl.ItemByName("Battlecruiser9000"); err == nil {
		t.Errorf("expected error for unknown name")
	}
	if !(Item{}).IsZero() {
		t.Errorf("zero Item should report IsZero")
	}
}

func TestChronoableOnlyProtossStructures(t *testing.T) {
	tbl := MustDefault()
	nexus, _ := tbl.UnitByName("Nexus")
	probe, _ := tbl.UnitByName("Probe")
	rax, _ := tbl.UnitByName("Barracks")
	if !tbl.Chronoable(nexus) {
		t.Errorf("Nexus should be chronoable")
	}
	if tbl.Chronoable(probe) || tbl.Chronoable(rax) {
		t.Errorf("Probe and Barracks should not be chronoable")
	}
}

func TestLoadRejectsUnknownReference(t *testing.T) {
	doc := `{
		"races": {},
		"units": [{"name": "A", "race": "terran", "producers": ["Ghost"]}],
		"upgrades": []
	}`
	_, err := Load(doc)
	if err == nil || !strings.Contains(err.Error(), "Ghost") {
		t.Fatalf("expected unknown producer error, got %v", err)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	if _, err := Load("{not json"); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestLoadFileMatchesEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(embeddedCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(tbl.Units) != len(MustDefault().Units) {
		t.Errorf("expected %d units, got %d", len(MustDefault().Units), len(tbl.Units))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}
