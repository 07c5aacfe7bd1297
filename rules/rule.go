package rules

import (
	"github.com/expr-lang/expr/vm"
	"github.com/nstehr/vimy/vimy-build/search"
)

// Goal is a condition → target composition pair. When a plan request names
// no target, the engine picks the highest-priority goal whose condition
// holds and whose target the state does not already meet.
type Goal struct {
	Name         string `yaml:"name"`
	Priority     int    `yaml:"priority"` // higher = evaluated first
	ConditionSrc string `yaml:"condition"`

	// Target maps unit or upgrade names to the count wanted.
	Target map[string]int `yaml:"target"`

	program *vm.Program
	target  search.Target
}
