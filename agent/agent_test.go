package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/ipc"
	"github.com/nstehr/vimy/vimy-build/model"
	"github.com/nstehr/vimy/vimy-build/rules"
	"github.com/nstehr/vimy/vimy-build/search"
)

func testPlanner(t *testing.T, limit rate.Limit) *Planner {
	t.Helper()
	tbl := catalog.MustDefault()
	engine, err := rules.NewEngine(tbl, rules.DefaultGoals())
	if err != nil {
		t.Fatal(err)
	}
	cfg := search.DefaultConfig()
	cfg.Generations = 8
	cfg.Population = 8
	cfg.Survivors = 3
	cfg.LocalSearchEvery = 4
	cfg.Workers = 2
	return NewPlanner(tbl, engine, cfg, limit, 1)
}

// defaultSnapshot is the terran game start as the mod reports it.
func defaultSnapshot() model.Observation {
	return model.Observation{
		Race:     "terran",
		Minerals: 50,
		Units:    append(units("CommandCenter", 1), units("SCV", 12)...),
	}
}

func TestPlanReturnsFeasibleOrder(t *testing.T) {
	p := testPlanner(t, rate.Inf)
	order, err := p.Plan(context.Background(), ipc.PlanRequest{
		Observation: defaultSnapshot(),
		Target:      map[string]int{"Marine": 1},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if order.RequestID == "" {
		t.Errorf("expected a generated request id")
	}
	if !order.Feasible {
		t.Fatalf("expected a feasible order, got %+v", order)
	}
	names := make(map[string]int)
	for i, it := range order.Items {
		names[it.Name]++
		if it.Finish < it.Start {
			t.Errorf("%s finishes before it starts", it.Name)
		}
		if i > 0 && it.Start < order.Items[i-1].Start {
			t.Errorf("items are not in start order")
		}
	}
	for _, want := range []string{"SupplyDepot", "Barracks", "Marine"} {
		if names[want] != 1 {
			t.Errorf("expected one %s, got %v", want, names)
		}
	}
	if last := order.Items[len(order.Items)-1]; order.EndTime < last.Finish {
		t.Errorf("end time %v before the last finish %v", order.EndTime, last.Finish)
	}
}

func TestPlanUsesGoalsAndCache(t *testing.T) {
	p := testPlanner(t, rate.Inf)
	req := ipc.PlanRequest{RequestID: "a", Observation: defaultSnapshot()}
	first, err := p.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if first.Goal != "terran-opening" || !first.Feasible {
		t.Fatalf("expected a feasible terran-opening plan, got %+v", first)
	}

	req.RequestID = "b"
	second, err := p.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if second.RequestID != "b" {
		t.Errorf("cached answer should carry the new request id, got %q", second.RequestID)
	}
	if len(second.Items) != len(first.Items) || second.EndTime != first.EndTime {
		t.Errorf("expected the cached order")
	}
	if len(p.cache) != 1 {
		t.Errorf("expected one cache entry, got %d", len(p.cache))
	}
}

func TestPlanThrottled(t *testing.T) {
	p := testPlanner(t, rate.Every(time.Hour))
	if _, err := p.Plan(context.Background(), ipc.PlanRequest{Observation: defaultSnapshot(), Target: map[string]int{"SCV": 13}}); err != nil {
		t.Fatalf("first plan: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Plan(ctx, ipc.PlanRequest{Observation: defaultSnapshot(), Target: map[string]int{"SCV": 14}}); err == nil {
		t.Errorf("expected the second search to be throttled")
	}
}

func TestPlanMetTargetIsEmpty(t *testing.T) {
	p := testPlanner(t, rate.Inf)
	order, err := p.Plan(context.Background(), ipc.PlanRequest{Observation: defaultSnapshot(), Target: map[string]int{"SCV": 12}})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !order.Feasible || len(order.Items) != 0 {
		t.Errorf("expected an empty feasible order, got %+v", order)
	}
}

func TestHandlePlanRequest(t *testing.T) {
	a := New(context.Background(), nil, testPlanner(t, rate.Inf))

	hello, _ := ipc.NewEnvelope(ipc.TypeHello, ipc.HelloMessage{Player: "p1", Race: "terran"})
	if resp, err := a.HandleHello(hello); err != nil || resp.Type != ipc.TypeAck {
		t.Fatalf("hello failed: %v %v", resp, err)
	}

	obs := defaultSnapshot()
	obs.Race = ""
	env, _ := ipc.NewEnvelope(ipc.TypePlanRequest, ipc.PlanRequest{RequestID: "r1", Observation: obs, Target: map[string]int{"SupplyDepot": 1}})
	resp, err := a.HandlePlanRequest(env)
	if err != nil {
		t.Fatalf("HandlePlanRequest: %v", err)
	}
	if resp.Type != ipc.TypeBuildOrder {
		t.Fatalf("expected a build order, got %s: %s", resp.Type, resp.Data)
	}
	var order ipc.BuildOrder
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		t.Fatal(err)
	}
	if order.RequestID != "r1" || len(order.Items) != 1 || order.Items[0].Name != "SupplyDepot" {
		t.Errorf("unexpected order %+v", order)
	}

	env, _ = ipc.NewEnvelope(ipc.TypePlanRequest, ipc.PlanRequest{RequestID: "r2", Observation: obs, Target: map[string]int{"Dragoon": 1}})
	resp, err = a.HandlePlanRequest(env)
	if err != nil {
		t.Fatalf("HandlePlanRequest: %v", err)
	}
	var msg ipc.ErrorMessage
	if resp.Type != ipc.TypeError || json.Unmarshal(resp.Data, &msg) != nil || msg.RequestID != "r2" {
		t.Errorf("expected an error reply for r2, got %s %s", resp.Type, resp.Data)
	}
}

func TestGoalReloader(t *testing.T) {
	tbl := catalog.MustDefault()
	engine, err := rules.NewEngine(tbl, rules.DefaultGoals())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "goals.yaml")
	doc := "goals:\n  - name: depots\n    condition: \"true\"\n    target:\n      SupplyDepot: 3\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewGoalReloader(engine, path, time.Second)
	if changed, err := r.Check(); err != nil || !changed {
		t.Fatalf("first check should load the file: %v %v", changed, err)
	}
	if names := engine.Names(); len(names) != 1 || names[0] != "depots" {
		t.Errorf("unexpected goals after reload: %v", names)
	}
	if changed, _ := r.Check(); changed {
		t.Errorf("an unchanged file should not reload")
	}

	if err := os.WriteFile(path, []byte("goals:\n  - name: broken\n    condition: \"(\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Check(); err == nil {
		t.Errorf("expected a compile error")
	}
	if names := engine.Names(); len(names) != 1 || names[0] != "depots" {
		t.Errorf("a broken file must keep the old goals, got %v", names)
	}
}
