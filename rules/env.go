package rules

import (
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

// GoalEnv wraps an economic state and exposes helper methods callable from
// expr expressions. Unknown names count as zero.
type GoalEnv struct {
	State *econ.State
	Table *catalog.Table
}

func (e GoalEnv) UnitCount(name string) int {
	id, ok := e.Table.UnitByName(name)
	if !ok {
		return 0
	}
	return e.State.CountUnits(id)
}

// Pending counts units of the type still in production.
func (e GoalEnv) Pending(name string) int {
	id, ok := e.Table.UnitByName(name)
	if !ok {
		return 0
	}
	return e.State.CountPending(id)
}

func (e GoalEnv) HasUnit(name string) bool { return e.UnitCount(name) > 0 }

func (e GoalEnv) HasUpgrade(name string) bool {
	id, ok := e.Table.UpgradeByName(name)
	return ok && e.State.HasUpgrade(id)
}

func (e GoalEnv) Minerals() float64 { return e.State.Resources().Minerals }
func (e GoalEnv) Vespene() float64  { return e.State.Resources().Vespene }
func (e GoalEnv) Time() float64     { return e.State.Time() }
func (e GoalEnv) Race() string      { return e.State.Race().String() }
func (e GoalEnv) FoodCap() float64  { return e.State.FoodCap() }
func (e GoalEnv) FoodUsed() float64 { return e.State.FoodUsed() }
func (e GoalEnv) Bases() int        { return len(e.State.Bases()) }

func (e GoalEnv) Harvesters() int {
	return e.State.CountUnits(e.Table.Race(e.State.Race()).Harvester)
}

// Income is the current mining rate, vespene counted double.
func (e GoalEnv) Income() float64 {
	s := e.State.MiningSpeed()
	return s.MineralsPerSecond + 2*s.VespenePerSecond
}
