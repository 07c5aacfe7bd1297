package ipc

import "github.com/nstehr/vimy/vimy-build/model"

// These constants must stay in sync with the message names the game mod sends.
const (
	TypeHello       = "hello"
	TypeAck         = "ack"
	TypePlanRequest = "plan_request"
	TypeBuildOrder  = "build_order"
	TypeError       = "error"
)

type HelloMessage struct {
	Player string `json:"player"`
	Race   string `json:"race"`
}

type AckMessage struct {
	Status string `json:"status"`
}

// PlanRequest asks for a build order from the observed state. An empty
// Target lets the goal rules choose one.
type PlanRequest struct {
	RequestID   string            `json:"requestId,omitempty"`
	Observation model.Observation `json:"observation"`
	Target      map[string]int    `json:"target,omitempty"`
	// MaxTime overrides the search's simulated time ceiling when positive.
	MaxTime float64 `json:"maxTime,omitempty"`
}

type BuildOrderItem struct {
	Name   string  `json:"name"`
	Boost  bool    `json:"boost,omitempty"`
	Start  float64 `json:"start"`
	Finish float64 `json:"finish"`
}

// BuildOrder answers a PlanRequest. Times are game seconds.
type BuildOrder struct {
	RequestID string           `json:"requestId"`
	Goal      string           `json:"goal,omitempty"`
	Items     []BuildOrderItem `json:"items"`
	EndTime   float64          `json:"endTime"`
	Feasible  bool             `json:"feasible"`
}

type ErrorMessage struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
}
