package econ

import (
	"math"
	"testing"

	"github.com/nstehr/vimy/vimy-build/catalog"
)

func unitID(t *testing.T, tbl *catalog.Table, name string) catalog.UnitTypeID {
	t.Helper()
	id, ok := tbl.UnitByName(name)
	if !ok {
		t.Fatalf("unknown unit %q", name)
	}
	return id
}

func upgradeID(t *testing.T, tbl *catalog.Table, name string) catalog.UpgradeID {
	t.Helper()
	id, ok := tbl.UpgradeByName(name)
	if !ok {
		t.Fatalf("unknown upgrade %q", name)
	}
	return id
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestOpeningTerran(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)

	if got := s.CountUnits(unitID(t, tbl, "SCV")); got != 12 {
		t.Errorf("expected 12 SCVs, got %d", got)
	}
	if got := s.FoodCap(); got != 15 {
		t.Errorf("expected food cap 15, got %v", got)
	}
	if got := s.FoodUsed(); got != 12 {
		t.Errorf("expected food used 12, got %v", got)
	}
	speed := s.MiningSpeed()
	if !near(speed.MineralsPerSecond, 12*HighYieldRate) {
		t.Errorf("expected %v minerals/s, got %v", 12*HighYieldRate, speed.MineralsPerSecond)
	}
	if speed.VespenePerSecond != 0 {
		t.Errorf("expected no vespene income without a collector, got %v", speed.VespenePerSecond)
	}
}

func TestMiningWholeEqualsHalves(t *testing.T) {
	tbl := catalog.MustDefault()
	whole := Opening(tbl, catalog.Terran)
	whole.AddUnits(unitID(t, tbl, "Refinery"), catalog.NoUnit, 1)
	halves := whole.Clone()

	whole.Simulate(60, nil)
	halves.Simulate(30, nil)
	halves.Simulate(60, nil)

	a, b := whole.Resources(), halves.Resources()
	if !near(a.Minerals, b.Minerals) || !near(a.Vespene, b.Vespene) {
		t.Errorf("one 60s integration %+v differs from two 30s integrations %+v", a, b)
	}
	if !near(whole.Bases()[0].Minerals, halves.Bases()[0].Minerals) {
		t.Errorf("base content differs: %v vs %v", whole.Bases()[0].Minerals, halves.Bases()[0].Minerals)
	}
	if a.Vespene <= 0 {
		t.Errorf("expected vespene income with a refinery, got %v", a.Vespene)
	}
}

func TestMiningSplitsAtSlotThreshold(t *testing.T) {
	tbl := catalog.MustDefault()
	whole := NewState(tbl, catalog.Terran)
	whole.AddUnits(unitID(t, tbl, "CommandCenter"), catalog.NoUnit, 1)
	whole.AddUnits(unitID(t, tbl, "SCV"), catalog.NoUnit, 22)
	whole.AddBase(BaseInfo{Minerals: 4805, Vespene: [2]float64{BaseGeyser, BaseGeyser}})
	whole.SetResources(Resources{Minerals: 50})
	halves := whole.Clone()

	high := whole.MiningSpeed().MineralsPerSecond
	whole.Simulate(20, nil)
	halves.Simulate(10, nil)
	halves.Simulate(20, nil)

	a, b := whole.Resources(), halves.Resources()
	if !near(a.Minerals, b.Minerals) {
		t.Errorf("one 20s integration %v differs from two 10s integrations %v", a.Minerals, b.Minerals)
	}
	if !near(whole.Bases()[0].Minerals, halves.Bases()[0].Minerals) {
		t.Errorf("base content differs: %v vs %v", whole.Bases()[0].Minerals, halves.Bases()[0].Minerals)
	}
	// Five minerals at the sixteen slot rate, the rest at the twelve slot rate.
	low := whole.MiningSpeed().MineralsPerSecond
	if low >= high {
		t.Fatalf("expected the rate to drop below %v, got %v", high, low)
	}
	want := 50 + 5 + (20-5/high)*low
	if !near(a.Minerals, want) {
		t.Errorf("expected %v minerals, got %v", want, a.Minerals)
	}
	if !near(a.Minerals-50, 4805-whole.Bases()[0].Minerals) {
		t.Errorf("bank grew by %v but the base lost %v", a.Minerals-50, 4805-whole.Bases()[0].Minerals)
	}
}

func TestResourcesMonotoneWithoutPurchases(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	scv := unitID(t, tbl, "SCV")
	cc := unitID(t, tbl, "CommandCenter")
	s.MakeUnitsBusy(cc, catalog.NoUnit, 1)
	s.Schedule(Event{Kind: UnitFinished, Time: 12, Caster: cc, CasterAddon: catalog.NoUnit, Ref: catalog.UnitItem(scv), HoldsCaster: true})

	prev := s.Resources()
	for _, end := range []float64{1, 5, 12, 12, 20, 45} {
		s.Simulate(end, nil)
		cur := s.Resources()
		if cur.Minerals < prev.Minerals || cur.Vespene < prev.Vespene {
			t.Fatalf("resources decreased at %v: %+v -> %+v", end, prev, cur)
		}
		prev = cur
	}
	if got := s.CountUnits(scv); got != 13 {
		t.Errorf("expected 13 SCVs after completion, got %d", got)
	}
}

func TestLowYieldBaseMinesLess(t *testing.T) {
	tbl := catalog.MustDefault()
	scv := unitID(t, tbl, "SCV")
	cc := unitID(t, tbl, "CommandCenter")

	build := func(base BaseInfo) *State {
		s := NewState(tbl, catalog.Terran)
		s.AddUnits(cc, catalog.NoUnit, 1)
		s.AddUnits(scv, catalog.NoUnit, 2)
		s.AddBase(base)
		return s
	}
	poor := build(BaseInfo{Minerals: 500})
	fresh := build(NewBase())

	poor.Simulate(30, nil)
	fresh.Simulate(30, nil)

	if poor.Resources().Minerals >= fresh.Resources().Minerals {
		t.Errorf("low-yield base mined %v, expected less than fresh base %v",
			poor.Resources().Minerals, fresh.Resources().Minerals)
	}
	if !near(poor.Resources().Minerals, 2*LowYieldRate*30) {
		t.Errorf("expected %v from low-yield slots, got %v", 2*LowYieldRate*30, poor.Resources().Minerals)
	}
}

func TestBaseSlotsStepDown(t *testing.T) {
	cases := []struct {
		minerals  float64
		high, low int
	}{
		{BaseMinerals, 16, 8},
		{3000, 12, 6},
		{1000, 8, 4},
		{10, 0, 2},
		{0, 0, 0},
	}
	for _, c := range cases {
		h, l := BaseInfo{Minerals: c.minerals}.Slots()
		if h != c.high || l != c.low {
			t.Errorf("Slots(%v) = (%d,%d), want (%d,%d)", c.minerals, h, l, c.high, c.low)
		}
	}
}

func TestKillUnitsCancelsLastHoldingEvent(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	scv := unitID(t, tbl, "SCV")
	depot := catalog.UnitItem(unitID(t, tbl, "SupplyDepot"))

	s.MakeUnitsBusy(scv, catalog.NoUnit, 2)
	s.Schedule(Event{Kind: UnitFinished, Time: 20, Caster: scv, CasterAddon: catalog.NoUnit, Ref: depot, HoldsCaster: true})
	s.Schedule(Event{Kind: UnitFinished, Time: 10, Caster: scv, CasterAddon: catalog.NoUnit, Ref: depot, HoldsCaster: true})

	s.KillUnits(scv, catalog.NoUnit, 11)

	if err := s.Validate(); err != nil {
		t.Fatalf("state invalid after kill: %v", err)
	}
	events := s.Events()
	if len(events) != 1 || events[0].Time != 10 {
		t.Fatalf("expected only the t=10 event to survive, got %+v", events)
	}
	if got := s.Units()[s.entryIndex(scv, catalog.NoUnit)].Busy; got != 1 {
		t.Errorf("expected 1 busy SCV, got %d", got)
	}
}

func TestKillUnitsForcesReleaseWithoutEvents(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	scv := unitID(t, tbl, "SCV")

	s.MakeUnitsBusy(scv, catalog.NoUnit, 3)
	s.KillUnits(scv, catalog.NoUnit, 12)

	if err := s.Validate(); err != nil {
		t.Fatalf("state invalid after degraded kill: %v", err)
	}
	e := s.Units()[s.entryIndex(scv, catalog.NoUnit)]
	if e.Total != 0 || e.Busy != 0 {
		t.Errorf("expected empty entry, got %+v", e)
	}
}

func TestKillUnitsOverRemovalPanics(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic when removing more units than exist")
		}
	}()
	s.KillUnits(unitID(t, tbl, "SCV"), catalog.NoUnit, 13)
}

func TestReactorDoublesSlots(t *testing.T) {
	tbl := catalog.MustDefault()
	s := NewState(tbl, catalog.Terran)
	rax := unitID(t, tbl, "Barracks")
	reactor := unitID(t, tbl, "BarracksReactor")
	s.AddUnits(rax, reactor, 1)

	s.MakeUnitsBusy(rax, reactor, 2)
	if got := s.Available(s.Units()[0]); got != 0 {
		t.Errorf("expected 0 free slots, got %d", got)
	}
}

func TestHashInvalidatesOnMutation(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	h := s.Hash()
	if s.Hash() != h {
		t.Fatalf("hash not stable without mutation")
	}
	s.AddUnits(unitID(t, tbl, "Marine"), catalog.NoUnit, 1)
	if s.Hash() == h {
		t.Errorf("hash unchanged after AddUnits")
	}
	h = s.Hash()
	s.Simulate(1, nil)
	if s.Hash() == h {
		t.Errorf("hash unchanged after Simulate")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Protoss)
	c := s.Clone()

	probe := unitID(t, tbl, "Probe")
	c.AddUnits(probe, catalog.NoUnit, 5)
	c.MakeUnitsBusy(probe, catalog.NoUnit, 1)
	c.Schedule(Event{Kind: ProducerFreed, Time: 3, Caster: probe, CasterAddon: catalog.NoUnit})
	c.UseBoost()
	c.Simulate(10, nil)

	if got := s.CountUnits(probe); got != 12 {
		t.Errorf("original probes changed to %d", got)
	}
	if s.HasPendingEvents() {
		t.Errorf("original gained events")
	}
	if s.Time() != 0 || s.Resources().Minerals != 50 {
		t.Errorf("original advanced: time %v resources %+v", s.Time(), s.Resources())
	}
	if s.ChronoEnergy(0) != StartEnergy {
		t.Errorf("original chrono energy changed to %v", s.ChronoEnergy(0))
	}
	if s.Hash() == c.Hash() {
		t.Errorf("clone and original hash equal after divergence")
	}
}

func TestFoodCountsPendingUnits(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	marine := unitID(t, tbl, "Marine")
	rax := unitID(t, tbl, "Barracks")
	s.AddUnits(rax, catalog.NoUnit, 1)
	s.MakeUnitsBusy(rax, catalog.NoUnit, 1)
	s.Schedule(Event{Kind: UnitFinished, Time: 18, Caster: rax, CasterAddon: catalog.NoUnit, Ref: catalog.UnitItem(marine), HoldsCaster: true})

	if got := s.FoodAvailable(); got != 2 {
		t.Errorf("expected 2 food available with a marine in production, got %v", got)
	}
}

func TestSpendRejectsOverdraft(t *testing.T) {
	tbl := catalog.MustDefault()
	s := Opening(tbl, catalog.Terran)
	s.Spend(50, 0)
	if s.Resources().Minerals != 0 {
		t.Errorf("expected 0 minerals, got %v", s.Resources().Minerals)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on overdraft")
		}
	}()
	s.Spend(10, 0)
}

func TestSetTimeBackwardsPanics(t *testing.T) {
	s := NewState(catalog.MustDefault(), catalog.Zerg)
	s.SetTime(10)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic when time moves backwards")
		}
	}()
	s.SetTime(5)
}
