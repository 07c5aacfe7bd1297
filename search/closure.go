package search

import (
	"github.com/nstehr/vimy/vimy-build/build"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

// tally is the projection of what will exist once every item placed so far
// has been built. It ignores timing: it only answers whether a dependency
// is met at all.
type tally struct {
	t        *catalog.Table
	info     catalog.RaceInfo
	units    []int
	upgrades []bool
	food     float64
	foodCap  float64

	// bare counts units of each exact type with no addon attached and no
	// addon or morph claimed on them.
	bare []int
}

func newTally(t *catalog.Table, start *econ.State) *tally {
	tl := &tally{
		t:        t,
		info:     t.Race(start.Race()),
		units:    make([]int, len(t.Units)),
		upgrades: make([]bool, len(t.Upgrades)),
		food:     start.FoodUsed(),
		foodCap:  start.FoodCap(),
		bare:     make([]int, len(t.Units)),
	}
	for _, e := range start.Units() {
		tl.units[e.Type] += e.Total
		if e.Addon == catalog.NoUnit {
			tl.bare[e.Type] += e.Total
		}
	}
	for _, e := range start.Events() {
		switch e.Kind {
		case econ.UnitFinished:
			id, _ := e.Ref.Unit()
			u := t.Unit(id)
			tl.units[id] += u.Count
			tl.foodCap = min(econ.MaxFood, tl.foodCap+u.FoodProvided*float64(u.Count))
			switch {
			case u.Addon:
				// The parent is still a bare entry until the addon lands.
				tl.take(e.Caster)
			case u.Morph:
				if e.Caster >= 0 && tl.units[e.Caster] > 0 {
					tl.units[e.Caster]--
				}
				if e.CasterAddon == catalog.NoUnit && tl.take(e.Caster) {
					tl.bare[id]++
				}
			default:
				tl.bare[id] += u.Count
			}
		case econ.UpgradeFinished:
			id, _ := e.Ref.Upgrade()
			tl.upgrades[id] = true
		}
	}
	for i := range tl.upgrades {
		if start.HasUpgrade(catalog.UpgradeID(i)) {
			tl.upgrades[i] = true
		}
	}
	return tl
}

func (tl *tally) has(need catalog.UnitTypeID) bool {
	for id, n := range tl.units {
		if n > 0 && tl.t.Satisfies(catalog.UnitTypeID(id), need) {
			return true
		}
	}
	return false
}

// take claims one bare unit of exactly type p.
func (tl *tally) take(p catalog.UnitTypeID) bool {
	if p < 0 || tl.bare[p] == 0 {
		return false
	}
	tl.bare[p]--
	return true
}

// attachable reports whether an addon or morph of u has a parent left:
// addons need a bare parent, morphs any unit of the exact producer type.
func (tl *tally) attachable(u *catalog.Unit) bool {
	for _, p := range u.Producers {
		if (u.Addon && tl.bare[p] > 0) || (u.Morph && !u.Addon && tl.units[p] > 0) {
			return true
		}
	}
	return false
}

// available reports whether a producer of this type can be had without
// building it: owned, or spawned by something owned, or materialized on demand.
func (tl *tally) available(p catalog.UnitTypeID) bool {
	u := tl.t.Unit(p)
	switch {
	case u.Transient:
		return true
	case u.Spawner != catalog.NoUnit:
		return tl.has(u.Spawner)
	}
	return tl.has(p)
}

// buildable is the item to insert for a missing unit, or false when the
// unit cannot be ordered directly (larva, warpgates).
func (tl *tally) buildable(id catalog.UnitTypeID) (build.Item, bool) {
	if !tl.t.Unit(id).Buildable() {
		return build.Item{}, false
	}
	return build.Item{Ref: catalog.UnitItem(id)}, true
}

// missing returns the first unmet dependency of ref.
func (tl *tally) missing(ref catalog.Item) (build.Item, bool) {
	var (
		producers  []catalog.UnitTypeID
		reqUnit    = catalog.NoUnit
		reqUpgrade = catalog.NoUpgrade
		reqAddon   = catalog.NoUnit
		parent     *catalog.Unit
	)
	if id, ok := ref.Unit(); ok {
		u := tl.t.Unit(id)
		producers, reqUnit, reqUpgrade, reqAddon = u.Producers, u.RequiredUnit, u.RequiredUpgrade, u.RequiredAddon
		if u.Addon || u.Morph {
			parent = u
		}
	} else if id, ok := ref.Upgrade(); ok {
		u := tl.t.Upgrade(id)
		producers, reqUnit, reqUpgrade = []catalog.UnitTypeID{u.Producer}, u.RequiredUnit, u.RequiredUpgrade
	}

	if reqUnit != catalog.NoUnit && !tl.has(reqUnit) {
		if it, ok := tl.buildable(reqUnit); ok {
			return it, true
		}
	}
	if reqUpgrade != catalog.NoUpgrade && !tl.upgrades[reqUpgrade] {
		return build.Item{Ref: catalog.UpgradeItem(reqUpgrade)}, true
	}
	if parent != nil && len(producers) > 0 {
		if !tl.attachable(parent) {
			if it, ok := tl.buildable(producers[0]); ok {
				return it, true
			}
		}
	} else if len(producers) > 0 {
		found := false
		for _, p := range producers {
			if tl.available(p) {
				found = true
				break
			}
		}
		if !found {
			if it, ok := tl.buildable(producers[0]); ok {
				return it, true
			}
		}
	}
	if reqAddon != catalog.NoUnit && !tl.has(reqAddon) {
		if it, ok := tl.buildable(reqAddon); ok {
			return it, true
		}
	}
	if _, vespene := tl.t.ItemCost(ref); vespene > 0 && !tl.has(tl.info.Collector) {
		return build.Item{Ref: catalog.UnitItem(tl.info.Collector)}, true
	}
	if need := build.NetFood(tl.t, ref); need > 0 && tl.food+need > tl.foodCap && tl.foodCap < econ.MaxFood {
		return build.Item{Ref: catalog.UnitItem(tl.info.Supply)}, true
	}
	return build.Item{}, false
}

func (tl *tally) add(ref catalog.Item) {
	if id, ok := ref.Upgrade(); ok {
		tl.upgrades[id] = true
		return
	}
	id, _ := ref.Unit()
	u := tl.t.Unit(id)
	tl.units[id] += u.Count
	tl.food += build.NetFood(tl.t, ref)
	tl.foodCap = min(econ.MaxFood, tl.foodCap+u.FoodProvided*float64(u.Count))
	switch {
	case u.Addon:
		// The addon itself is a bare unit; its parent stops being one.
		tl.bare[id] += u.Count
		for _, p := range u.Producers {
			if tl.take(p) {
				break
			}
		}
	case u.Morph:
		// The executor morphs a bare parent when it has one.
		for _, p := range u.Producers {
			if tl.units[p] == 0 {
				continue
			}
			tl.units[p]--
			if tl.take(p) {
				tl.bare[id]++
			}
			break
		}
	default:
		tl.bare[id] += u.Count
		if u.ConsumesProducer && len(u.Producers) > 0 {
			p := u.Producers[0]
			if tl.t.Unit(p).Spawner == catalog.NoUnit && tl.units[p] > 0 {
				tl.units[p]--
				if tl.bare[p] > tl.units[p] {
					tl.bare[p] = tl.units[p]
				}
			}
		}
	}
}

func (tl *tally) researched(ref catalog.Item) bool {
	id, ok := ref.Upgrade()
	return ok && tl.upgrades[id]
}

// Close inserts every implicit prerequisite so items can execute from
// start: producing structures and their own requirements, addons, a gas
// collector for vespene costs, and supply providers as food runs out.
// Upgrades that are already researched or placed earlier are dropped.
// Closing a closed order returns it unchanged.
func Close(t *catalog.Table, start *econ.State, items build.Order) build.Order {
	tl := newTally(t, start)
	out := make(build.Order, 0, len(items)+len(items)/2)
	var stack build.Order
	for _, it := range items {
		if tl.researched(it.Ref) {
			continue
		}
		stack = append(stack[:0], it)
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if dep, ok := tl.missing(top.Ref); ok && !onStack(stack, dep.Ref) {
				stack = append(stack, dep)
				continue
			}
			stack = stack[:len(stack)-1]
			if tl.researched(top.Ref) {
				continue
			}
			tl.add(top.Ref)
			out = append(out, top)
		}
	}
	return out
}

// onStack breaks dependency cycles such as a town hall whose only producer
// is a harvester that the town hall itself produces.
func onStack(stack build.Order, ref catalog.Item) bool {
	for _, it := range stack {
		if it.Ref == ref {
			return true
		}
	}
	return false
}
