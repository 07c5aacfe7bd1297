package search

import (
	"github.com/nstehr/vimy/vimy-build/build"
	"github.com/nstehr/vimy/vimy-build/catalog"
)

// Index is a dense numbering of the items one race can put in a build
// order: buildable units of the race plus its upgrades.
type Index struct {
	table     *catalog.Table
	race      catalog.Race
	items     []catalog.Item
	pos       map[catalog.Item]int
	economy   []int
	boostable []bool
}

// NewIndex builds the index for race.
func NewIndex(t *catalog.Table, race catalog.Race) *Index {
	x := &Index{table: t, race: race, pos: make(map[catalog.Item]int)}
	info := t.Race(race)
	for i := range t.Units {
		u := &t.Units[i]
		if u.Race != race || !u.Buildable() {
			continue
		}
		x.add(catalog.UnitItem(u.ID), u.Producers[0])
		if u.ID == info.Harvester || u.ID == info.Supply || u.ID == info.Collector {
			x.economy = append(x.economy, len(x.items)-1)
		}
	}
	for i := range t.Upgrades {
		u := &t.Upgrades[i]
		if u.Race != race {
			continue
		}
		x.add(catalog.UpgradeItem(u.ID), u.Producer)
	}
	return x
}

func (x *Index) add(it catalog.Item, producer catalog.UnitTypeID) {
	x.pos[it] = len(x.items)
	x.items = append(x.items, it)
	x.boostable = append(x.boostable, x.table.Chronoable(producer))
}

func (x *Index) Len() int                { return len(x.items) }
func (x *Index) Item(i int) catalog.Item { return x.items[i] }

// IndexOf maps an item back to its dense index.
func (x *Index) IndexOf(it catalog.Item) (int, bool) {
	i, ok := x.pos[it]
	return i, ok
}

// Economy lists the indices of the harvester, supply provider and collector.
func (x *Index) Economy() []int { return x.economy }

// Boostable reports whether the item at i is made by a chrono-boostable producer.
func (x *Index) Boostable(i int) bool { return x.boostable[i] }

// GeneUnit is one gene position: an index item and whether it asks for a boost.
type GeneUnit struct {
	Index   int
	Boosted bool
}

// Gene is a candidate build order before dependency closure.
type Gene []GeneUnit

// Clone returns an independent copy.
func (g Gene) Clone() Gene { return append(Gene(nil), g...) }

// Expand turns a gene into build order items, boost flags included.
func (x *Index) Expand(g Gene) build.Order {
	o := make(build.Order, len(g))
	for i, u := range g {
		o[i] = build.Item{Ref: x.items[u.Index], Boost: u.Boosted && x.boostable[u.Index]}
	}
	return o
}
