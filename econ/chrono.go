package econ

import "github.com/nstehr/vimy/vimy-build/catalog"

// Chrono boost tuning, in simulation seconds and energy units.
const (
	ChronoCost     = 50.0
	ChronoDuration = 20.0
	EnergyRegen    = 0.7875
	MaxEnergy      = 200.0
	StartEnergy    = 50.0
)

// energyFn encodes a caster's energy as min(MaxEnergy, offset + EnergyRegen·t)
// so the current value is an O(1) query.
type energyFn struct {
	offset float64
}

func (f energyFn) at(t float64) float64 {
	return min(MaxEnergy, f.offset+EnergyRegen*t)
}

type boostWindow struct {
	caster catalog.UnitTypeID
	end    float64
}

// ChronoLedger tracks boost energy per casting structure and the boost
// windows that have been committed to producer types but not yet used.
type ChronoLedger struct {
	casters []energyFn
	windows []boostWindow
}

// AddCaster registers a structure that can cast the boost, holding energy at now.
func (l *ChronoLedger) AddCaster(now, energy float64) {
	l.casters = append(l.casters, energyFn{offset: energy - EnergyRegen*now})
}

// Casters returns the number of registered casters.
func (l *ChronoLedger) Casters() int { return len(l.casters) }

// Energy returns caster i's energy at now.
func (l *ChronoLedger) Energy(i int, now float64) float64 {
	return l.casters[i].at(now)
}

// UseBoost spends a charge from the first caster that can afford it and
// returns the end of the new window.
func (l *ChronoLedger) UseBoost(now float64) (float64, bool) {
	for i := range l.casters {
		cur := l.casters[i].at(now)
		if cur < ChronoCost {
			continue
		}
		l.casters[i].offset = cur - ChronoCost - EnergyRegen*now
		return now + ChronoDuration, true
	}
	return 0, false
}

// Commit records a window that production at caster may use until end.
func (l *ChronoLedger) Commit(caster catalog.UnitTypeID, end float64) {
	l.windows = append(l.windows, boostWindow{caster: caster, end: end})
}

// GetBoostEndTime consumes and returns the latest-ending active window for
// caster. Expired windows are dropped on the way.
func (l *ChronoLedger) GetBoostEndTime(caster catalog.UnitTypeID, now float64) (float64, bool) {
	best := -1
	kept := l.windows[:0]
	for _, w := range l.windows {
		if w.end <= now {
			continue
		}
		kept = append(kept, w)
		if w.caster == caster && (best < 0 || w.end > kept[best].end) {
			best = len(kept) - 1
		}
	}
	l.windows = kept
	if best < 0 {
		return 0, false
	}
	end := l.windows[best].end
	l.windows = append(l.windows[:best], l.windows[best+1:]...)
	return end, true
}

// PendingWindows returns the number of committed windows, stale ones included.
func (l *ChronoLedger) PendingWindows() int { return len(l.windows) }

func (l *ChronoLedger) clone() ChronoLedger {
	return ChronoLedger{
		casters: append([]energyFn(nil), l.casters...),
		windows: append([]boostWindow(nil), l.windows...),
	}
}

func (l *ChronoLedger) hashInto(putI func(int), putF func(float64)) {
	for _, c := range l.casters {
		putF(c.offset)
	}
	for _, w := range l.windows {
		putI(int(w.caster))
		putF(w.end)
	}
}

// ReducedDuration shortens a production of buildTime started at now by the
// part of the boost window that overlaps it. The saving is capped at a
// third of the build time.
func ReducedDuration(buildTime, now, boostEnd float64) float64 {
	overlap := boostEnd - now
	if overlap <= 0 {
		return buildTime
	}
	return buildTime - min(buildTime*2/3, overlap)/2
}

// UseBoost spends a charge at the current time; see ChronoLedger.UseBoost.
func (s *State) UseBoost() (float64, bool) {
	end, ok := s.ledger.UseBoost(s.time)
	if ok {
		s.touch()
	}
	return end, ok
}

// CommitBoost records a boost window for production at caster.
func (s *State) CommitBoost(caster catalog.UnitTypeID, end float64) {
	s.ledger.Commit(caster, end)
	s.touch()
}

// BoostEndTime consumes the best active window for caster at the current time.
func (s *State) BoostEndTime(caster catalog.UnitTypeID) (float64, bool) {
	end, ok := s.ledger.GetBoostEndTime(caster, s.time)
	s.touch()
	return end, ok
}

// AddChronoCaster registers a boost-casting structure with the given energy.
func (s *State) AddChronoCaster(energy float64) {
	s.ledger.AddCaster(s.time, energy)
	s.touch()
}

// ChronoEnergy returns caster i's energy at the current time.
func (s *State) ChronoEnergy(i int) float64 { return s.ledger.Energy(i, s.time) }

// ChronoCasters returns the number of boost-casting structures.
func (s *State) ChronoCasters() int { return s.ledger.Casters() }
