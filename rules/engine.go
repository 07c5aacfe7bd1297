package rules

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/search"
	"gopkg.in/yaml.v3"
)

// Engine picks a target composition for the current state.
type Engine struct {
	mu    sync.RWMutex
	table *catalog.Table
	goals []*Goal
}

// NewEngine compiles all goal conditions into expr bytecode, resolves their
// targets against the catalog and sorts by priority.
func NewEngine(table *catalog.Table, goals []*Goal) (*Engine, error) {
	compiled, err := compileGoals(table, goals)
	if err != nil {
		return nil, err
	}
	return &Engine{table: table, goals: compiled}, nil
}

// Select returns the first goal, by priority, whose condition holds and
// whose target is not yet met.
func (e *Engine) Select(env GoalEnv) (*Goal, search.Target, bool) {
	e.mu.RLock()
	goals := e.goals
	e.mu.RUnlock()

	for _, g := range goals {
		result, err := vm.Run(g.program, env)
		if err != nil {
			slog.Warn("goal condition error", "goal", g.Name, "error", err)
			continue
		}
		match, ok := result.(bool)
		if !ok || !match {
			continue
		}
		if g.target.Met(env.State) {
			slog.Debug("goal already met", "goal", g.Name)
			continue
		}
		slog.Debug("goal selected", "goal", g.Name, "priority", g.Priority)
		return g, g.target, true
	}
	return nil, nil, false
}

// Swap atomically replaces the goal set. Compiles first; if compilation
// fails the old goals remain active.
func (e *Engine) Swap(goals []*Goal) error {
	compiled, err := compileGoals(e.table, goals)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.goals = compiled
	e.mu.Unlock()
	slog.Info("goal set swapped", "count", len(compiled), "goals", e.Names())
	return nil
}

// Names lists the active goals in evaluation order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.goals))
	for i, g := range e.goals {
		names[i] = g.Name
	}
	return names
}

// ResolveTarget maps unit and upgrade names to catalog items.
func ResolveTarget(table *catalog.Table, names map[string]int) (search.Target, error) {
	tg := make(search.Target, len(names))
	for name, n := range names {
		it, err := table.ItemByName(name)
		if err != nil {
			return nil, fmt.Errorf("resolve target: %w", err)
		}
		if n < 0 {
			return nil, fmt.Errorf("resolve target: negative count %d for %s", n, name)
		}
		tg[it] = n
	}
	return tg, nil
}

// LoadGoals reads a goal list from a YAML file.
func LoadGoals(path string) ([]*Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}
	var doc struct {
		Goals []*Goal `yaml:"goals"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse goals %s: %w", path, err)
	}
	if len(doc.Goals) == 0 {
		return nil, fmt.Errorf("goals %s: no goals defined", path)
	}
	return doc.Goals, nil
}

func compileGoals(table *catalog.Table, goals []*Goal) ([]*Goal, error) {
	for _, g := range goals {
		prog, err := expr.Compile(g.ConditionSrc, expr.Env(GoalEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile goal %q: %w", g.Name, err)
		}
		tg, err := ResolveTarget(table, g.Target)
		if err != nil {
			return nil, fmt.Errorf("goal %q: %w", g.Name, err)
		}
		g.program = prog
		g.target = tg
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority > goals[j].Priority
	})
	return goals, nil
}
