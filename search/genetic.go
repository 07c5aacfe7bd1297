package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/nstehr/vimy/vimy-build/build"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
)

// ErrEmptyTarget is returned when the start state already meets the target.
var ErrEmptyTarget = errors.New("search: target already met")

// Result is the best order found.
type Result struct {
	Order       build.Order
	Fitness     Fitness
	Gene        Gene
	Generations int
}

type scored struct {
	gene    Gene
	fitness Fitness
}

type optimizer struct {
	table  *catalog.Table
	start  *econ.State
	target Target
	cfg    Config
	index  *Index
	need   []int // required count per index position
	rng    *rand.Rand
}

// Optimize searches for the fastest closed build order that reaches target
// from start. Cancelling ctx ends the search after the current generation
// with the best order found so far.
func Optimize(ctx context.Context, t *catalog.Table, start *econ.State, target Target, cfg Config) (Result, error) {
	cfg.Validate()
	o := &optimizer{
		table:  t,
		start:  start.Clone(),
		target: target,
		cfg:    cfg,
		index:  NewIndex(t, start.Race()),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	base, err := o.requirements()
	if err != nil {
		return Result{}, err
	}
	if len(base) == 0 {
		return Result{}, ErrEmptyTarget
	}

	pop := make([]Gene, cfg.Population)
	for i := range pop {
		g := base.Clone()
		o.rng.Shuffle(len(g), func(a, b int) { g[a], g[b] = g[b], g[a] })
		pop[i] = g
	}

	var best scored
	best.fitness = Infeasible()
	gen := 0
	for ; gen < cfg.Generations; gen++ {
		if ctx.Err() != nil {
			slog.Info("search cancelled", "generation", gen, "best", best.fitness.Time)
			break
		}
		ranked := o.rank(pop)
		if ranked[0].fitness.Better(best.fitness, 0) || best.gene == nil {
			best = scored{gene: ranked[0].gene.Clone(), fitness: ranked[0].fitness}
		}

		survivors := o.survive(ranked)
		if cfg.LocalSearchEvery > 0 && (gen+1)%cfg.LocalSearchEvery == 0 {
			o.localSearchAll(survivors)
			for _, s := range survivors {
				if s.fitness.Better(best.fitness, 0) {
					best = scored{gene: s.gene.Clone(), fitness: s.fitness}
				}
			}
		}
		slog.Debug("search generation",
			"generation", gen,
			"best_time", best.fitness.Time,
			"best_adjusted", best.fitness.Adjusted,
			"feasible", best.fitness.Feasible,
			"length", len(best.gene),
		)

		next := make([]Gene, 0, cfg.Population)
		for _, s := range survivors {
			next = append(next, s.gene)
		}
		for len(next) < cfg.Population {
			child := survivors[o.rng.IntN(len(survivors))].gene.Clone()
			child = o.mutateMove(child)
			child = o.mutateAddRemove(child)
			next = append(next, child)
		}
		pop = next
	}

	if best.gene == nil {
		best = scored{gene: base, fitness: o.fitness(base)}
	}
	best.gene, best.fitness = o.localSearch(best.gene, best.fitness)
	return Result{
		Order:       Close(t, o.start, o.index.Expand(best.gene)),
		Fitness:     best.fitness,
		Gene:        best.gene,
		Generations: gen,
	}, nil
}

// requirements is the multiset of items the start state still lacks.
func (o *optimizer) requirements() (Gene, error) {
	o.need = make([]int, o.index.Len())
	var g Gene
	for it, n := range o.target {
		i, ok := o.index.IndexOf(it)
		if !ok {
			return nil, fmt.Errorf("search: %s cannot be built by %s", o.table.ItemName(it), o.start.Race())
		}
		missing := 0
		if id, ok := it.Unit(); ok {
			have := o.start.CountUnits(id) + o.start.CountPending(id)
			if n > have {
				per := o.table.Unit(id).Count
				missing = (n - have + per - 1) / per
			}
		} else if id, ok := it.Upgrade(); ok && n > 0 && !o.start.HasUpgrade(id) && !o.start.UpgradePending(id) {
			missing = 1
		}
		o.need[i] = missing
		for range missing {
			g = append(g, GeneUnit{Index: i})
		}
	}
	// Map iteration order is random; sort so a seed reproduces the search.
	sort.Slice(g, func(a, b int) bool { return g[a].Index < g[b].Index })
	return g, nil
}

func (o *optimizer) fitness(g Gene) Fitness {
	return Evaluate(o.table, o.start, Close(o.table, o.start, o.index.Expand(g)), o.target, &o.cfg)
}

// rank scores the population on a worker pool and sorts it best first.
func (o *optimizer) rank(pop []Gene) []scored {
	out := make([]scored, len(pop))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range o.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = scored{gene: pop[i], fitness: o.fitness(pop[i])}
			}
		}()
	}
	for i := range pop {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].fitness.Better(out[b].fitness, o.cfg.BiasWindow)
	})
	return out
}

// survive keeps the best Survivors plus one random survivor from the rest.
func (o *optimizer) survive(ranked []scored) []scored {
	n := min(o.cfg.Survivors, len(ranked))
	out := append([]scored(nil), ranked[:n]...)
	if rest := len(ranked) - n; rest > 0 {
		out = append(out, ranked[n+o.rng.IntN(rest)])
	}
	return out
}

// surplus reports whether position i can be removed without dropping below
// the required count of its item.
func (o *optimizer) surplus(g Gene, i int) bool {
	idx := g[i].Index
	n := 0
	for _, u := range g {
		if u.Index == idx {
			n++
		}
	}
	return n > o.need[idx]
}

// mutateMove relocates a random subset of positions by a Gaussian offset.
func (o *optimizer) mutateMove(g Gene) Gene {
	for i := range g {
		if o.rng.Float64() >= o.cfg.MoveRate {
			continue
		}
		j := i + int(math.Round(o.rng.NormFloat64()*o.cfg.MoveSigma))
		j = clampInt(j, 0, len(g)-1)
		if j == i {
			continue
		}
		u := g[i]
		if j > i {
			copy(g[i:j], g[i+1:j+1])
		} else {
			copy(g[j+1:i+1], g[j:i])
		}
		g[j] = u
	}
	return g
}

// mutateAddRemove deletes surplus positions, inserts economy items and
// toggles boost flags.
func (o *optimizer) mutateAddRemove(g Gene) Gene {
	for i := 0; i < len(g); {
		if o.surplus(g, i) && o.rng.Float64() < o.cfg.RemoveRate {
			g = append(g[:i], g[i+1:]...)
			continue
		}
		i++
	}
	if eco := o.index.Economy(); len(eco) > 0 && o.rng.Float64() < o.cfg.AddRate {
		u := GeneUnit{Index: eco[o.rng.IntN(len(eco))]}
		at := o.rng.IntN(len(g) + 1)
		g = append(g, GeneUnit{})
		copy(g[at+1:], g[at:])
		g[at] = u
	}
	for i := range g {
		if o.index.Boostable(g[i].Index) && o.rng.Float64() < o.cfg.BoostRate {
			g[i].Boosted = !g[i].Boosted
		}
	}
	return g
}

func (o *optimizer) localSearchAll(survivors []scored) {
	var wg sync.WaitGroup
	for i := range survivors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			survivors[i].gene, survivors[i].fitness = o.localSearch(survivors[i].gene.Clone(), survivors[i].fitness)
		}()
	}
	wg.Wait()
}

// localSearch hill-climbs a gene in one greedy pass: surplus positions are
// deleted when that does not make things worse, then adjacent swaps are
// kept when they improve.
func (o *optimizer) localSearch(g Gene, f Fitness) (Gene, Fitness) {
	for i := 0; i < len(g); {
		if !o.surplus(g, i) {
			i++
			continue
		}
		cand := append(g[:i:i], g[i+1:]...)
		if cf := o.fitness(cand); !f.Better(cf, 0) {
			g, f = cand, cf
			continue
		}
		i++
	}
	for i := 0; i+1 < len(g); i++ {
		if g[i] == g[i+1] {
			continue
		}
		cand := g.Clone()
		cand[i], cand[i+1] = cand[i+1], cand[i]
		if cf := o.fitness(cand); cf.Better(f, 0) {
			g, f = cand, cf
		}
	}
	return g, f
}
