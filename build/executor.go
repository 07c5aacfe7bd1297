package build

import (
	"fmt"
	"math"

	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

// Status is the outcome of running an order.
type Status uint8

const (
	// Completed means every item was committed.
	Completed Status = iota
	// Partial means the next item could not be paid for before MaxTime.
	Partial
	// Unreachable means some item waits on something no pending event can provide.
	Unreachable
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Partial:
		return "partial"
	case Unreachable:
		return "unreachable"
	}
	return fmt.Sprintf("status(%d)", s)
}

// Commit describes an item at the moment it was started.
type Commit struct {
	Index         int
	Item          Item
	Time          float64
	Finish        float64
	Producer      catalog.UnitTypeID
	ProducerAddon catalog.UnitTypeID
	// Chrono is the end of the boost window the production ran under, 0 if none.
	Chrono float64
}

// Result summarizes a Run.
type Result struct {
	Status    Status
	Committed int
	// EndTime is the state time when Run returned.
	EndTime float64
	// LastFinish is the latest completion time among committed items.
	LastFinish float64
}

// Executor advances an economic state through a build order.
type Executor struct {
	Table *catalog.Table
	// OnCommit is called once per item, when it is started.
	OnCommit func(Commit)
	// OnEvent is called once per applied event.
	OnEvent func(econ.Event)
	// MaxTime stops execution with Partial once an item cannot be paid for
	// before it. Zero means no ceiling.
	MaxTime float64
	// SimulateToEnd runs the state forward to the last completion so the
	// final state holds finished items, not merely started ones.
	SimulateToEnd bool
}

type stepOutcome uint8

const (
	stepCommitted stepOutcome = iota
	stepSkipped
	stepUnreachable
	stepCapped
	stepRetry
)

type producerSlot struct {
	typ, addon catalog.UnitTypeID
}

// Run commits items from the cursor until the order is exhausted, an item
// is unreachable, or MaxTime is hit. Only invariant violations panic.
func (x *Executor) Run(s *econ.State, c *Cursor) Result {
	res := Result{LastFinish: s.Time()}
	for !c.Done() {
		outcome, finish := x.step(s, c)
		switch outcome {
		case stepCommitted:
			res.Committed++
			res.LastFinish = max(res.LastFinish, finish)
			c.Next++
		case stepSkipped:
			c.Next++
		case stepUnreachable:
			res.Status = Unreachable
			res.EndTime = s.Time()
			return res
		case stepCapped:
			res.Status = Partial
			res.EndTime = s.Time()
			return res
		}
	}
	if x.SimulateToEnd && res.LastFinish > s.Time() {
		s.Simulate(res.LastFinish, x.OnEvent)
	}
	res.Status = Completed
	res.EndTime = s.Time()
	return res
}

// step walks one item through tech, resources and producer waits.
func (x *Executor) step(s *econ.State, c *Cursor) (stepOutcome, float64) {
	it := c.Order[c.Next]
	if up, ok := it.Ref.Upgrade(); ok && (s.HasUpgrade(up) || s.UpgradePending(up)) {
		return stepSkipped, 0
	}
	minerals, vespene := x.Table.ItemCost(it.Ref)

	for {
		if !x.techMet(s, it.Ref) || !x.foodMet(s, it.Ref) {
			if o := x.waitForEvent(s); o != stepRetry {
				return o, 0
			}
			continue
		}

		wait := s.TimeUntilAffordable(minerals, vespene)
		if next, ok := s.NextEconomicEventTime(); ok && next < s.Time()+wait {
			if x.MaxTime > 0 && next > x.MaxTime {
				return stepCapped, 0
			}
			s.Simulate(next, x.OnEvent)
			continue
		}
		if math.IsInf(wait, 1) {
			return stepUnreachable, 0
		}
		if x.MaxTime > 0 && s.Time()+wait > x.MaxTime {
			return stepCapped, 0
		}
		s.Simulate(s.Time()+wait, x.OnEvent)
		if !s.CanAfford(minerals, vespene) {
			// A base dropped a slot tier during the wait.
			continue
		}

		p, ok := x.findProducer(s, it.Ref)
		if !ok {
			if o := x.waitForEvent(s); o != stepRetry {
				return o, 0
			}
			continue
		}
		return stepCommitted, x.commit(s, c, it, p)
	}
}

func (x *Executor) waitForEvent(s *econ.State) stepOutcome {
	next, ok := s.NextEventTime()
	if !ok {
		return stepUnreachable
	}
	if x.MaxTime > 0 && next > x.MaxTime {
		return stepCapped
	}
	s.Simulate(next, x.OnEvent)
	return stepRetry
}

func (x *Executor) techMet(s *econ.State, ref catalog.Item) bool {
	reqUnit, reqUpgrade := catalog.NoUnit, catalog.NoUpgrade
	if id, ok := ref.Unit(); ok {
		u := x.Table.Unit(id)
		reqUnit, reqUpgrade = u.RequiredUnit, u.RequiredUpgrade
	} else if id, ok := ref.Upgrade(); ok {
		u := x.Table.Upgrade(id)
		reqUnit, reqUpgrade = u.RequiredUnit, u.RequiredUpgrade
	}
	if reqUnit != catalog.NoUnit && !s.HasUnit(reqUnit) {
		return false
	}
	if reqUpgrade != catalog.NoUpgrade && !s.HasUpgrade(reqUpgrade) {
		return false
	}
	return true
}

// NetFood is the supply an item needs when committed, after the supply
// freed by a consumed producer.
func NetFood(t *catalog.Table, ref catalog.Item) float64 {
	id, ok := ref.Unit()
	if !ok {
		return 0
	}
	u := t.Unit(id)
	need := u.Food * float64(u.Count)
	if u.ConsumesProducer && len(u.Producers) > 0 {
		need -= t.Unit(u.Producers[0]).Food
	}
	return need
}

func (x *Executor) foodMet(s *econ.State, ref catalog.Item) bool {
	need := NetFood(x.Table, ref)
	if need <= 0 {
		return true
	}
	return s.FoodAvailable()+1e-9 >= need
}

// findProducer picks a free producer, preferring entries without an addon
// so addon-equipped structures stay free for items that need them.
// Transient producers are materialized when none is free.
func (x *Executor) findProducer(s *econ.State, ref catalog.Item) (producerSlot, bool) {
	var producers []catalog.UnitTypeID
	requiredAddon := catalog.NoUnit
	exact, bare := false, false
	if id, ok := ref.Unit(); ok {
		u := x.Table.Unit(id)
		producers = u.Producers
		requiredAddon = u.RequiredAddon
		exact = u.Morph || u.Addon
		bare = u.Addon
	} else if id, ok := ref.Upgrade(); ok {
		producers = []catalog.UnitTypeID{x.Table.Upgrade(id).Producer}
	}

	best, bestRank := -1, 0
	units := s.Units()
	for i, e := range units {
		if e.Total == 0 || s.Available(e) <= 0 {
			continue
		}
		if requiredAddon != catalog.NoUnit && e.Addon != requiredAddon {
			continue
		}
		if bare && e.Addon != catalog.NoUnit {
			continue
		}
		if !x.produces(e.Type, producers, exact) {
			continue
		}
		rank := 0
		if e.Addon != catalog.NoUnit {
			rank = 1
		}
		if best < 0 || rank < bestRank {
			best, bestRank = i, rank
		}
	}
	if best >= 0 {
		return producerSlot{typ: units[best].Type, addon: units[best].Addon}, true
	}

	for _, p := range producers {
		pu := x.Table.Unit(p)
		if !pu.Transient {
			continue
		}
		s.AddUnits(p, catalog.NoUnit, 1)
		s.Schedule(econ.Event{
			Kind:        econ.TransientExpired,
			Time:        s.Time() + pu.Lifetime,
			Caster:      p,
			CasterAddon: catalog.NoUnit,
		})
		return producerSlot{typ: p, addon: catalog.NoUnit}, true
	}
	return producerSlot{}, false
}

func (x *Executor) produces(have catalog.UnitTypeID, producers []catalog.UnitTypeID, exact bool) bool {
	for _, p := range producers {
		if have == p || (!exact && x.Table.Satisfies(have, p)) {
			return true
		}
	}
	return false
}

// commit pays for the item, occupies or consumes the producer and schedules
// its completion. It returns the completion time.
func (x *Executor) commit(s *econ.State, c *Cursor, it Item, p producerSlot) float64 {
	now := s.Time()
	minerals, vespene := x.Table.ItemCost(it.Ref)
	s.Spend(minerals, vespene)

	kind := econ.UnitFinished
	var buildTime, busyTime float64
	consumes := false
	if id, ok := it.Ref.Unit(); ok {
		u := x.Table.Unit(id)
		buildTime = u.BuildTime
		if p.typ == x.Table.Race(s.Race()).WarpGate && u.WarpBuildTime > 0 {
			buildTime = u.WarpBuildTime
		}
		busyTime = u.ProducerBusyTime
		consumes = u.ConsumesProducer
	} else {
		id, _ := it.Ref.Upgrade()
		buildTime = x.Table.Upgrade(id).BuildTime
		kind = econ.UpgradeFinished
	}

	if consumes {
		s.KillUnits(p.typ, p.addon, 1)
		if p.typ == x.Table.Race(s.Race()).Larva {
			s.EnsureLarva()
		}
	} else {
		s.MakeUnitsBusy(p.typ, p.addon, 1)
	}

	chronoEnd := 0.0
	if !consumes && x.Table.Chronoable(p.typ) {
		if it.Boost {
			if end, ok := s.UseBoost(); ok {
				s.CommitBoost(p.typ, end)
				c.LastBoost = p.typ
			}
		}
		if end, ok := s.BoostEndTime(p.typ); ok {
			buildTime = econ.ReducedDuration(buildTime, now, end)
			chronoEnd = end
		}
	}

	finish := now + buildTime
	s.Schedule(econ.Event{
		Kind:        kind,
		Time:        finish,
		Caster:      p.typ,
		CasterAddon: p.addon,
		Ref:         it.Ref,
		ChronoEnd:   chronoEnd,
		HoldsCaster: !consumes && busyTime <= 0,
	})
	if !consumes && busyTime > 0 {
		s.Schedule(econ.Event{
			Kind:        econ.ProducerFreed,
			Time:        now + min(busyTime, buildTime),
			Caster:      p.typ,
			CasterAddon: p.addon,
			HoldsCaster: true,
		})
	}

	if x.OnCommit != nil {
		x.OnCommit(Commit{
			Index:         c.Next,
			Item:          it,
			Time:          now,
			Finish:        finish,
			Producer:      p.typ,
			ProducerAddon: p.addon,
			Chrono:        chronoEnd,
		})
	}
	return finish
}
