package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-build/ipc"
)

// Agent owns the request handling for a single player session.
type Agent struct {
	Conn    *ipc.Connection
	Player  string
	Race    string
	Planner *Planner

	ctx context.Context
}

// New binds a session to a shared planner. Searches started by the session
// are cancelled with ctx.
func New(ctx context.Context, conn *ipc.Connection, planner *Planner) *Agent {
	return &Agent{Conn: conn, Planner: planner, ctx: ctx}
}

// HandleHello completes the handshake so the mod knows the sidecar is ready.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return nil, fmt.Errorf("unmarshal hello: %w", err)
	}

	a.Player = hello.Player
	a.Race = hello.Race
	if a.Conn != nil {
		a.Conn.Player = hello.Player
	}
	slog.Info("player identified", "player", a.Player, "race", a.Race)

	ack, err := ipc.NewEnvelope(ipc.TypeAck, ipc.AckMessage{Status: "ok"})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// HandlePlanRequest answers with a build order, or with an error message
// carrying the request id when planning fails.
func (a *Agent) HandlePlanRequest(env ipc.Envelope) (*ipc.Envelope, error) {
	var req ipc.PlanRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal plan request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Observation.Race == "" {
		req.Observation.Race = a.Race
	}

	slog.Info("plan request received",
		"player", a.Player,
		"request", req.RequestID,
		"time", req.Observation.Time,
		"units", len(req.Observation.Units),
		"target", req.Target,
	)

	order, err := a.Planner.Plan(a.ctx, req)
	if err != nil {
		slog.Error("planning failed", "request", req.RequestID, "error", err)
		resp, err := ipc.NewEnvelope(ipc.TypeError, ipc.ErrorMessage{RequestID: req.RequestID, Error: err.Error()})
		if err != nil {
			return nil, err
		}
		return &resp, nil
	}

	resp, err := ipc.NewEnvelope(ipc.TypeBuildOrder, order)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
