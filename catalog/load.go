package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tidwall/gjson"
)

//go:embed data/catalog.json
var embeddedCatalog string

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the table built from the embedded catalog. It is loaded on
// first use and shared afterwards.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Load(embeddedCatalog)
	})
	return defaultTable, defaultErr
}

// MustDefault is Default for callers that cannot proceed without the table.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("load embedded catalog: %v", err))
	}
	return t
}

// LoadFile reads and parses a catalog document from disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	t, err := Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load parses a catalog document. Names are resolved in a second pass so
// entries may reference units declared later in the file.
func Load(data string) (*Table, error) {
	if !gjson.Valid(data) {
		return nil, errors.New("catalog: invalid JSON")
	}
	doc := gjson.Parse(data)

	t := &Table{
		unitByName: make(map[string]UnitTypeID),
		upgByName:  make(map[string]UpgradeID),
	}

	unitRows := doc.Get("units").Array()
	for i, row := range unitRows {
		name := row.Get("name").String()
		if name == "" {
			return nil, fmt.Errorf("catalog: unit %d has no name", i)
		}
		if _, dup := t.unitByName[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate unit %q", name)
		}
		t.unitByName[name] = UnitTypeID(i)
	}
	upgradeRows := doc.Get("upgrades").Array()
	for i, row := range upgradeRows {
		name := row.Get("name").String()
		if name == "" {
			return nil, fmt.Errorf("catalog: upgrade %d has no name", i)
		}
		if _, dup := t.upgByName[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate upgrade %q", name)
		}
		t.upgByName[name] = UpgradeID(i)
	}

	t.Units = make([]Unit, len(unitRows))
	for i, row := range unitRows {
		u, err := t.parseUnit(UnitTypeID(i), row)
		if err != nil {
			return nil, fmt.Errorf("catalog: unit %q: %w", row.Get("name").String(), err)
		}
		t.Units[i] = u
	}
	t.Upgrades = make([]Upgrade, len(upgradeRows))
	for i, row := range upgradeRows {
		u, err := t.parseUpgrade(UpgradeID(i), row)
		if err != nil {
			return nil, fmt.Errorf("catalog: upgrade %q: %w", row.Get("name").String(), err)
		}
		t.Upgrades[i] = u
	}

	for _, r := range []Race{Terran, Protoss, Zerg} {
		info, err := t.parseRace(doc.Get("races." + r.String()))
		if err != nil {
			return nil, fmt.Errorf("catalog: race %s: %w", r, err)
		}
		t.races[r] = info
	}

	t.derive()
	return t, nil
}

func (t *Table) parseUnit(id UnitTypeID, row gjson.Result) (Unit, error) {
	race, err := ParseRace(row.Get("race").String())
	if err != nil {
		return Unit{}, err
	}
	u := Unit{
		ID:               id,
		Name:             row.Get("name").String(),
		Race:             race,
		Minerals:         row.Get("minerals").Float(),
		Vespene:          row.Get("vespene").Float(),
		BuildTime:        row.Get("build_time").Float(),
		WarpBuildTime:    row.Get("warp_build_time").Float(),
		Food:             row.Get("food").Float(),
		FoodProvided:     row.Get("food_provided").Float(),
		Count:            int(row.Get("count").Int()),
		ProducerBusyTime: row.Get("producer_busy_time").Float(),
		Lifetime:         row.Get("lifetime").Float(),
		RequiredUpgrade:  NoUpgrade,
	}
	if u.Count <= 0 {
		u.Count = 1
	}

	var refErr error
	ref := func(key string) UnitTypeID {
		name := row.Get(key).String()
		if name == "" {
			return NoUnit
		}
		rid, ok := t.unitByName[name]
		if !ok && refErr == nil {
			refErr = fmt.Errorf("%s references unknown unit %q", key, name)
		}
		if !ok {
			return NoUnit
		}
		return rid
	}
	u.RequiredUnit = ref("requires")
	u.RequiredAddon = ref("requires_addon")
	u.Spawner = ref("spawner")
	u.VariantOf = ref("variant_of")
	if name := row.Get("requires_upgrade").String(); name != "" {
		uid, ok := t.upgByName[name]
		if !ok {
			return Unit{}, fmt.Errorf("requires_upgrade references unknown upgrade %q", name)
		}
		u.RequiredUpgrade = uid
	}
	row.Get("producers").ForEach(func(_, v gjson.Result) bool {
		pid, ok := t.unitByName[v.String()]
		if !ok {
			refErr = fmt.Errorf("producer %q is not a unit", v.String())
			return false
		}
		u.Producers = append(u.Producers, pid)
		return true
	})
	if refErr != nil {
		return Unit{}, refErr
	}

	var flagErr error
	row.Get("flags").ForEach(func(_, v gjson.Result) bool {
		switch v.String() {
		case "harvester":
			u.Harvester = true
		case "collector":
			u.Collector = true
		case "town_hall":
			u.TownHall = true
		case "structure":
			u.Structure = true
		case "addon":
			u.Addon = true
		case "doubles_slots":
			u.DoublesSlots = true
		case "combat":
			u.Combat = true
		case "consumes_producer":
			u.ConsumesProducer = true
		case "morph":
			u.Morph = true
		case "transient":
			u.Transient = true
		default:
			flagErr = fmt.Errorf("unknown flag %q", v.String())
			return false
		}
		return true
	})
	if flagErr != nil {
		return Unit{}, flagErr
	}
	if u.Transient && u.Lifetime <= 0 {
		return Unit{}, errors.New("transient unit needs a positive lifetime")
	}
	if u.Morph && len(u.Producers) != 1 {
		return Unit{}, errors.New("morph needs exactly one producer")
	}
	return u, nil
}

func (t *Table) parseUpgrade(id UpgradeID, row gjson.Result) (Upgrade, error) {
	race, err := ParseRace(row.Get("race").String())
	if err != nil {
		return Upgrade{}, err
	}
	u := Upgrade{
		ID:              id,
		Name:            row.Get("name").String(),
		Race:            race,
		Minerals:        row.Get("minerals").Float(),
		Vespene:         row.Get("vespene").Float(),
		BuildTime:       row.Get("build_time").Float(),
		RequiredUnit:    NoUnit,
		RequiredUpgrade: NoUpgrade,
	}
	producer, ok := t.unitByName[row.Get("producer").String()]
	if !ok {
		return Upgrade{}, fmt.Errorf("producer %q is not a unit", row.Get("producer").String())
	}
	u.Producer = producer
	if name := row.Get("requires").String(); name != "" {
		rid, ok := t.unitByName[name]
		if !ok {
			return Upgrade{}, fmt.Errorf("requires references unknown unit %q", name)
		}
		u.RequiredUnit = rid
	}
	if name := row.Get("requires_upgrade").String(); name != "" {
		rid, ok := t.upgByName[name]
		if !ok {
			return Upgrade{}, fmt.Errorf("requires_upgrade references unknown upgrade %q", name)
		}
		u.RequiredUpgrade = rid
	}
	return u, nil
}

func (t *Table) parseRace(row gjson.Result) (RaceInfo, error) {
	info := RaceInfo{
		Harvester:        NoUnit,
		TownHall:         NoUnit,
		Supply:           NoUnit,
		Collector:        NoUnit,
		Larva:            NoUnit,
		Gateway:          NoUnit,
		WarpGate:         NoUnit,
		WarpGateResearch: NoUpgrade,
	}
	if !row.Exists() {
		return info, errors.New("missing race section")
	}
	fields := []struct {
		key      string
		dst      *UnitTypeID
		required bool
	}{
		{"harvester", &info.Harvester, true},
		{"town_hall", &info.TownHall, true},
		{"supply", &info.Supply, true},
		{"collector", &info.Collector, true},
		{"larva", &info.Larva, false},
		{"gateway", &info.Gateway, false},
		{"warpgate", &info.WarpGate, false},
	}
	for _, f := range fields {
		name := row.Get(f.key).String()
		if name == "" {
			if f.required {
				return info, fmt.Errorf("missing %s", f.key)
			}
			continue
		}
		id, ok := t.unitByName[name]
		if !ok {
			return info, fmt.Errorf("%s references unknown unit %q", f.key, name)
		}
		*f.dst = id
	}
	if name := row.Get("warpgate_research").String(); name != "" {
		id, ok := t.upgByName[name]
		if !ok {
			return info, fmt.Errorf("warpgate_research references unknown upgrade %q", name)
		}
		info.WarpGateResearch = id
	}
	return info, nil
}

// derive precomputes per-id lookups so hot paths never consult names.
func (t *Table) derive() {
	t.chronoable = make([]bool, len(t.Units))
	t.hasVariants = make([]bool, len(t.Units))
	for i := range t.Units {
		u := &t.Units[i]
		t.chronoable[i] = u.Race == Protoss && u.Structure
		if u.VariantOf != NoUnit {
			for v := u.VariantOf; v != NoUnit; v = t.Units[v].VariantOf {
				t.hasVariants[v] = true
			}
		}
	}
}
