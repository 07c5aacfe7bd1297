package econ

// Per-harvester income in resources per simulation second.
const (
	HighYieldRate = 0.95 // first two harvesters on a patch
	LowYieldRate  = 0.35 // third harvester on a patch
	VespeneRate   = 0.94

	HarvestersPerGeyser = 3

	BaseMinerals = 10800.0
	BaseGeyser   = 2250.0
)

// BaseInfo is what is left to mine at one town hall.
type BaseInfo struct {
	Minerals float64
	Vespene  [2]float64
}

// NewBase returns an untouched base.
func NewBase() BaseInfo {
	return BaseInfo{Minerals: BaseMinerals, Vespene: [2]float64{BaseGeyser, BaseGeyser}}
}

// Slots returns how many harvesters the base can use at the high and at the
// low yield rate. Fewer patches remain as the base mines out, so the slot
// counts step down with the remaining content.
func (b BaseInfo) Slots() (high, low int) {
	switch {
	case b.Minerals > 4800:
		return 16, 8
	case b.Minerals > 2400:
		return 12, 6
	case b.Minerals > 800:
		return 8, 4
	case b.Minerals > 0:
		return 0, 2
	}
	return 0, 0
}

// MiningSpeed is total income per simulation second.
type MiningSpeed struct {
	MineralsPerSecond float64
	VespenePerSecond  float64
}

type geyserRef struct {
	base, slot int
}

type miningCache struct {
	speed       MiningSpeed
	baseWeights []float64 // minerals per second contributed by each base
	geysers     []geyserRef
}

func (m miningCache) clone() miningCache {
	m.baseWeights = append([]float64(nil), m.baseWeights...)
	m.geysers = append([]geyserRef(nil), m.geysers...)
	return m
}

// MiningSpeed returns the cached income rate, deriving it first if an
// economy-impacting mutation invalidated it.
func (s *State) MiningSpeed() MiningSpeed {
	return s.currentMining().speed
}

func (s *State) currentMining() *miningCache {
	if !s.miningValid {
		s.mining = s.computeMining()
		s.miningValid = true
	}
	return &s.mining
}

func (s *State) computeMining() miningCache {
	harvesters, collectors := 0, 0
	for _, e := range s.units {
		u := s.table.Unit(e.Type)
		if u.Harvester {
			harvesters += s.Available(e)
		}
		if u.Collector {
			collectors += e.Total
		}
	}

	var m miningCache
	for bi, b := range s.bases {
		for g := range b.Vespene {
			if len(m.geysers) < collectors && b.Vespene[g] > 0 {
				m.geysers = append(m.geysers, geyserRef{base: bi, slot: g})
			}
		}
	}

	gas := min(harvesters/2, HarvestersPerGeyser*len(m.geysers))
	remaining := harvesters - gas

	m.baseWeights = make([]float64, len(s.bases))
	for bi, b := range s.bases {
		high, _ := b.Slots()
		take := min(remaining, high)
		m.baseWeights[bi] += float64(take) * HighYieldRate
		remaining -= take
	}
	for bi, b := range s.bases {
		_, low := b.Slots()
		take := min(remaining, low)
		m.baseWeights[bi] += float64(take) * LowYieldRate
		remaining -= take
	}

	for _, w := range m.baseWeights {
		m.speed.MineralsPerSecond += w
	}
	m.speed.VespenePerSecond = float64(gas) * VespeneRate
	return m
}

// mineralThresholds are the base contents below which Slots steps down.
var mineralThresholds = [...]float64{4800, 2400, 800, 0}

// nextThreshold is the next slot boundary below minerals.
func nextThreshold(minerals float64) float64 {
	for _, th := range mineralThresholds {
		if minerals > th {
			return th
		}
	}
	return 0
}

// SimulateMining integrates income over dt. The rate is piecewise constant:
// whenever a base drops to a slot threshold or a geyser runs dry inside dt,
// integration stops there, the rate is re-derived and the rest of dt
// continues at the new rate. The bank grows by the integrated income; base
// contents are reduced by their share and never go negative.
func (s *State) SimulateMining(dt float64) {
	if dt <= 0 {
		return
	}
	for dt > 0 {
		m := s.currentMining()
		step := dt
		base, geyser := -1, -1
		for bi, w := range m.baseWeights {
			if bi >= len(s.bases) || w <= 0 {
				continue
			}
			left := s.bases[bi].Minerals - nextThreshold(s.bases[bi].Minerals)
			if left > 0 && left/w < step {
				step, base, geyser = left/w, bi, -1
			}
		}
		if len(m.geysers) > 0 && m.speed.VespenePerSecond > 0 {
			per := m.speed.VespenePerSecond / float64(len(m.geysers))
			for gi, g := range m.geysers {
				if g.base >= len(s.bases) {
					continue
				}
				left := s.bases[g.base].Vespene[g.slot]
				if left > 0 && left/per < step {
					step, base, geyser = left/per, -1, gi
				}
			}
		}

		var snap float64
		if base >= 0 {
			snap = nextThreshold(s.bases[base].Minerals)
		}
		s.mine(m, step)
		switch {
		case base >= 0:
			s.bases[base].Minerals = snap
			s.miningValid = false
		case geyser >= 0:
			g := m.geysers[geyser]
			s.bases[g.base].Vespene[g.slot] = 0
			s.miningValid = false
		}
		dt -= step
	}
	s.touch()
}

// mine integrates dt at the rate in m.
func (s *State) mine(m *miningCache, dt float64) {
	s.resources.Minerals += m.speed.MineralsPerSecond * dt
	vespene := m.speed.VespenePerSecond * dt
	s.resources.Vespene += vespene

	for bi, w := range m.baseWeights {
		if bi >= len(s.bases) || w == 0 {
			continue
		}
		h0, l0 := s.bases[bi].Slots()
		s.bases[bi].Minerals = max(0, s.bases[bi].Minerals-w*dt)
		if h1, l1 := s.bases[bi].Slots(); h1 != h0 || l1 != l0 {
			s.miningValid = false
		}
	}
	if len(m.geysers) > 0 && vespene > 0 {
		per := vespene / float64(len(m.geysers))
		for _, g := range m.geysers {
			if g.base >= len(s.bases) {
				continue
			}
			left := max(0, s.bases[g.base].Vespene[g.slot]-per)
			if left == 0 {
				s.miningValid = false
			}
			s.bases[g.base].Vespene[g.slot] = left
		}
	}
}

// TimeUntilAffordable returns how long, at the current rate, until the
// bank covers the cost. It is +Inf when a missing resource has no income.
func (s *State) TimeUntilAffordable(minerals, vespene float64) float64 {
	speed := s.MiningSpeed()
	wait := 0.0
	if need := minerals - s.resources.Minerals; need > affordEpsilon {
		if speed.MineralsPerSecond <= 0 {
			return inf
		}
		wait = max(wait, need/speed.MineralsPerSecond)
	}
	if need := vespene - s.resources.Vespene; need > affordEpsilon {
		if speed.VespenePerSecond <= 0 {
			return inf
		}
		wait = max(wait, need/speed.VespenePerSecond)
	}
	return wait
}
