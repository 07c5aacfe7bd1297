package search

import (
	"math"

	"github.com/nstehr/vimy/vimy-build/build"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

// rateEpsilon keeps the banked-resource credit finite with no income.
const rateEpsilon = 0.1

// Fitness scores one executed order. Lower Adjusted is better.
type Fitness struct {
	// Time is completion time plus the weighted mean completion of combat items.
	Time float64
	// Adjusted credits leftover resources: Time minus how long the final
	// income needs to mine them.
	Adjusted float64
	// Rate is the final income, vespene counted double.
	Rate     float64
	Feasible bool
}

// Infeasible is the worst possible score.
func Infeasible() Fitness {
	return Fitness{Time: math.Inf(1), Adjusted: math.Inf(1)}
}

// Better reports whether f beats o. Adjusted times within window of each
// other are decided by income rate, so an order that grows the economy is
// not lost to one that is a fraction of a second faster. This is not a
// strict weak order; sorts that use it are only approximately ordered.
func (f Fitness) Better(o Fitness, window float64) bool {
	if f.Feasible != o.Feasible {
		return f.Feasible
	}
	if !f.Feasible {
		return false
	}
	if math.Abs(f.Adjusted-o.Adjusted) <= window && f.Rate != o.Rate {
		return f.Rate > o.Rate
	}
	return f.Adjusted < o.Adjusted
}

// Target maps items to the number that must exist when the order finishes.
type Target map[catalog.Item]int

// Met reports whether s owns everything in the target.
func (tg Target) Met(s *econ.State) bool {
	for it, n := range tg {
		if id, ok := it.Unit(); ok {
			if s.CountUnits(id) < n {
				return false
			}
			continue
		}
		if id, ok := it.Upgrade(); ok && n > 0 && !s.HasUpgrade(id) {
			return false
		}
	}
	return true
}

// Evaluate runs a closed order on a clone of start and scores it.
func Evaluate(t *catalog.Table, start *econ.State, order build.Order, target Target, cfg *Config) Fitness {
	s := start.Clone()
	var combat []float64
	x := build.Executor{
		Table:         t,
		MaxTime:       cfg.MaxTime,
		SimulateToEnd: true,
		OnCommit: func(c build.Commit) {
			if id, ok := c.Item.Ref.Unit(); ok && t.Unit(id).Combat {
				combat = append(combat, c.Finish)
			}
		},
	}
	res := x.Run(s, build.NewCursor(order))
	if res.Status != build.Completed || !target.Met(s) {
		return Infeasible()
	}

	f := Fitness{Time: res.EndTime, Feasible: true}
	if len(combat) > 0 {
		sum := 0.0
		for _, c := range combat {
			sum += c
		}
		f.Time += cfg.CombatTimeWeight * sum / float64(len(combat))
	}
	speed := s.MiningSpeed()
	bank := s.Resources()
	f.Rate = speed.MineralsPerSecond + 2*speed.VespenePerSecond
	f.Adjusted = f.Time - (bank.Minerals+2*bank.Vespene)/(f.Rate+rateEpsilon)
	return f
}
