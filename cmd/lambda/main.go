//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"golang.org/x/time/rate"

	"github.com/nstehr/vimy/vimy-build/agent"
	"github.com/nstehr/vimy/vimy-build/catalog"
	"github.com/nstehr/vimy/vimy-build/ipc"
	"github.com/nstehr/vimy/vimy-build/rules"
	"github.com/nstehr/vimy/vimy-build/search"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// One planner per warm container; each invocation handles one request.
var planner *agent.Planner

func handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "", "invalid base64 body")
		}
		body = string(decoded)
	}

	var req ipc.PlanRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(400, "", "invalid JSON: "+err.Error())
	}
	if req.Observation.Race == "" {
		return errResp(400, req.RequestID, "missing observation.race")
	}

	order, err := planner.Plan(ctx, req)
	if err != nil {
		slog.Error("planning failed", "request", order.RequestID, "error", err)
		return errResp(422, order.RequestID, err.Error())
	}
	respJSON, _ := json.Marshal(order)
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, requestID, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(ipc.ErrorMessage{RequestID: requestID, Error: msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	table := catalog.MustDefault()
	engine, err := rules.NewEngine(table, rules.DefaultGoals())
	if err != nil {
		slog.Error("failed to compile goals", "error", err)
		os.Exit(1)
	}
	cfg := search.DefaultConfig()
	if path := os.Getenv("VIMY_SEARCH_CONFIG"); path != "" {
		if cfg, err = search.LoadConfig(path); err != nil {
			slog.Error("failed to load search config", "error", err)
			os.Exit(1)
		}
	}
	// Invocations are already isolated by the platform.
	planner = agent.NewPlanner(table, engine, cfg, rate.Inf, 1)
	lambda.Start(handler)
}
