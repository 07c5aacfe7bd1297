package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nstehr/vimy/vimy-build/build"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/econ"
	"github.com/nstehr/vimy/vimy-build/ipc"
	"github.com/nstehr/vimy/vimy-build/rules"
	"github.com/nstehr/vimy/vimy-build/search"
)

// planCacheSize bounds the result cache; it is emptied when full.
const planCacheSize = 256

// Planner turns plan requests into build orders. It is shared by every
// connection and safe for concurrent use.
type Planner struct {
	table   *catalog.Table
	goals   *rules.Engine
	cfg     search.Config
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]ipc.BuildOrder
}

// NewPlanner creates a planner that runs at most limit searches per second
// with the given burst. goals may be nil, in which case requests must name
// a target.
func NewPlanner(table *catalog.Table, goals *rules.Engine, cfg search.Config, limit rate.Limit, burst int) *Planner {
	cfg.Validate()
	return &Planner{
		table:   table,
		goals:   goals,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		cache:   make(map[string]ipc.BuildOrder),
	}
}

// Plan imports the observation, picks a target and searches for the
// fastest build order reaching it. Identical states and targets are served
// from the cache.
func (p *Planner) Plan(ctx context.Context, req ipc.PlanRequest) (ipc.BuildOrder, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	out := ipc.BuildOrder{RequestID: req.RequestID, Items: []ipc.BuildOrderItem{}}

	s, err := ImportObservation(p.table, req.Observation)
	if err != nil {
		return out, err
	}
	target, goal, err := p.target(s, req.Target)
	if err != nil {
		return out, err
	}
	out.Goal = goal
	out.EndTime = s.Time()
	if target == nil || target.Met(s) {
		slog.Info("nothing to plan", "request", req.RequestID, "goal", goal)
		out.Feasible = true
		return out, nil
	}

	key := p.cacheKey(s, target, req.MaxTime)
	if cached, ok := p.lookup(key); ok {
		slog.Debug("plan served from cache", "request", req.RequestID)
		cached.RequestID = req.RequestID
		return cached, nil
	}

	if !p.limiter.Allow() {
		slog.Warn("plan request throttled", "request", req.RequestID)
		if err := p.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("plan %s: %w", req.RequestID, err)
		}
	}

	cfg := p.cfg
	if req.MaxTime > 0 {
		cfg.MaxTime = req.MaxTime
	}
	started := time.Now()
	res, err := search.Optimize(ctx, p.table, s, target, cfg)
	switch {
	case errors.Is(err, search.ErrEmptyTarget):
		out.Feasible = true
		return out, nil
	case err != nil:
		return out, fmt.Errorf("plan %s: %w", req.RequestID, err)
	}

	out.Items, out.EndTime, out.Feasible = p.schedule(s, res.Order, target, cfg.MaxTime)
	slog.Info("plan ready",
		"request", req.RequestID,
		"goal", goal,
		"items", len(out.Items),
		"end_time", out.EndTime,
		"feasible", out.Feasible,
		"generations", res.Generations,
		"elapsed", time.Since(started),
	)
	p.store(key, out)
	return out, nil
}

func (p *Planner) target(s *econ.State, names map[string]int) (search.Target, string, error) {
	if len(names) > 0 {
		tg, err := rules.ResolveTarget(p.table, names)
		return tg, "", err
	}
	if p.goals == nil {
		return nil, "", fmt.Errorf("request names no target and no goals are loaded")
	}
	g, tg, ok := p.goals.Select(rules.GoalEnv{State: s, Table: p.table})
	if !ok {
		return nil, "", nil
	}
	return tg, g.Name, nil
}

// schedule replays order from s and reports when each item starts and finishes.
func (p *Planner) schedule(s *econ.State, order build.Order, target search.Target, maxTime float64) ([]ipc.BuildOrderItem, float64, bool) {
	sim := s.Clone()
	items := make([]ipc.BuildOrderItem, 0, len(order))
	x := build.Executor{
		Table:         p.table,
		MaxTime:       maxTime,
		SimulateToEnd: true,
		OnCommit: func(c build.Commit) {
			items = append(items, ipc.BuildOrderItem{
				Name:   p.table.ItemName(c.Item.Ref),
				Boost:  c.Chrono > 0,
				Start:  c.Time,
				Finish: c.Finish,
			})
		},
	}
	res := x.Run(sim, build.NewCursor(order))
	return items, res.EndTime, res.Status == build.Completed && target.Met(sim)
}

func (p *Planner) cacheKey(s *econ.State, target search.Target, maxTime float64) string {
	parts := make([]string, 0, len(target))
	for it, n := range target {
		parts = append(parts, fmt.Sprintf("%d=%d", it.Key(), n))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%x|%s|%g", s.Hash(), strings.Join(parts, ","), maxTime)
}

func (p *Planner) lookup(key string) (ipc.BuildOrder, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.cache[key]
	return o, ok
}

func (p *Planner) store(key string, o ipc.BuildOrder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.cache) >= planCacheSize {
		clear(p.cache)
	}
	p.cache[key] = o
}
