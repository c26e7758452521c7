// Package mcpserver registers MCP tools that expose glucose data.
// It adapts the dexcom package to the MCP SDK's tool handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
	"github.com/alexjbarnes/dexcom-sync/internal/state"
)

const (
	// latestLookback is how far back glucose_latest searches for the
	// most recent reading. Sensors report every five minutes, but gaps
	// of hours happen during warmup or signal loss.
	latestLookback = 24 * time.Hour

	// defaultDays is the glucose_days lookback when none is given.
	defaultDays = 7

	// maxDays caps per-call lookback so a single tool call cannot pull
	// years of readings into one response.
	maxDays = 90
)

// Service bundles the API client, the token store, and the current
// statistics targets for the MCP tool handlers. Targets can be swapped
// at runtime by the config watcher.
type Service struct {
	client *dexcom.Client
	store  *state.Store
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	targets dexcom.StatisticsTargets
}

// NewService creates the tool service.
func NewService(client *dexcom.Client, store *state.Store, logger *slog.Logger, targets dexcom.StatisticsTargets) *Service {
	return &Service{
		client:  client,
		store:   store,
		logger:  logger,
		now:     time.Now,
		targets: targets,
	}
}

// SetTargets replaces the statistics target ranges. Safe to call while
// tool calls are in flight.
func (s *Service) SetTargets(targets dexcom.StatisticsTargets) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = targets
}

// Targets returns the current statistics target ranges.
func (s *Service) Targets() dexcom.StatisticsTargets {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.targets
}

// envelope loads the stored token envelope for a tool call.
func (s *Service) envelope() (dexcom.TokenEnvelope, error) {
	env, err := s.store.TokenEnvelope()
	if err != nil {
		return dexcom.TokenEnvelope{}, fmt.Errorf("loading token envelope: %w", err)
	}

	if env == nil {
		return dexcom.TokenEnvelope{}, fmt.Errorf("no token envelope stored: run the login subcommand first")
	}

	return *env, nil
}

// persistToken saves a refreshed envelope returned by a fetch. Losing
// it would waste the rotation, so failure is logged loudly, but the
// tool call itself still succeeds: the data was fetched.
func (s *Service) persistToken(tok *dexcom.TokenEnvelope) {
	if tok == nil {
		return
	}

	if err := s.store.SetTokenEnvelope(*tok); err != nil {
		s.logger.Error("persisting refreshed token failed", slog.String("error", err.Error()))
	}
}

// RegisterTools adds all glucose tools to the given MCP server.
func RegisterTools(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "glucose_latest",
		Description: "Get the most recent estimated glucose value: value, trend arrow, trend rate, and reading time. Searches the last 24 hours.",
	}, latestHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "glucose_window",
		Description: "Get estimated glucose values between two instants (epoch milliseconds). Long windows are fetched in chunks transparently.",
	}, windowHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "glucose_days",
		Description: "Get estimated glucose values for the last N days, grouped by calendar day. Defaults to 7 days, capped at 90.",
	}, daysHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "data_range",
		Description: "Get the time span of data the provider holds for this account, per category (glucose values, events, calibrations).",
	}, rangeHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "statistics",
		Description: "Get summary glucose statistics (mean, time-in-range, and related metrics) for a window, computed against the configured target ranges.",
	}, statisticsHandler(svc))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// LatestInput has no parameters.
type LatestInput struct{}

// WindowInput holds parameters for glucose_window.
type WindowInput struct {
	StartMS int64 `json:"start_ms" jsonschema:"required,window start as epoch milliseconds"`
	EndMS   int64 `json:"end_ms" jsonschema:"required,window end as epoch milliseconds, must be after start_ms"`
}

// DaysInput holds parameters for glucose_days.
type DaysInput struct {
	Days int `json:"days,omitempty" jsonschema:"number of days to look back, defaults to 7, maximum 90"`
}

// RangeInput has no parameters.
type RangeInput struct{}

// StatisticsInput holds parameters for statistics.
type StatisticsInput struct {
	StartMS int64 `json:"start_ms" jsonschema:"required,window start as epoch milliseconds"`
	EndMS   int64 `json:"end_ms" jsonschema:"required,window end as epoch milliseconds, must be after start_ms"`
}

// --- Output types ---

// LatestResult is the glucose_latest response.
type LatestResult struct {
	Reading  *dexcom.EGV `json:"reading"`
	Unit     string      `json:"unit,omitempty"`
	RateUnit string      `json:"rateUnit,omitempty"`
}

// WindowResult is the glucose_window response.
type WindowResult struct {
	Unit     string       `json:"unit"`
	RateUnit string       `json:"rateUnit"`
	Count    int          `json:"count"`
	EGVs     []dexcom.EGV `json:"egvs"`
}

// DaysResult is the glucose_days response.
type DaysResult struct {
	Unit     string            `json:"unit"`
	RateUnit string            `json:"rateUnit"`
	Days     []dexcom.DayGroup `json:"days"`
}

// StatisticsOutput is the statistics response: the provider's
// statistics document plus the target ranges it was computed against.
// The document is decoded into a map because the SDK derives the
// output schema from this type, and the provider's statistics shape is
// not pinned down.
type StatisticsOutput struct {
	Statistics map[string]any           `json:"statistics"`
	Targets    dexcom.StatisticsTargets `json:"targets"`
}

// --- Handlers ---

func latestHandler(s *Service) mcp.ToolHandlerFor[LatestInput, *LatestResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ LatestInput) (*mcp.CallToolResult, *LatestResult, error) {
		env, err := s.envelope()
		if err != nil {
			return nil, nil, err
		}

		end := s.now().UnixMilli()

		w, err := dexcom.NewWindow(end-latestLookback.Milliseconds(), end)
		if err != nil {
			return nil, nil, err
		}

		res, err := s.client.EGVsRange(ctx, env, w)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(res.Token)

		out := &LatestResult{
			Unit:     res.EstimatedGlucoseValues.Unit,
			RateUnit: res.EstimatedGlucoseValues.RateUnit,
		}

		if egvs := res.EstimatedGlucoseValues.EGVs; len(egvs) > 0 {
			out.Reading = &egvs[len(egvs)-1]
		}

		return textResult(out), out, nil
	}
}

func windowHandler(s *Service) mcp.ToolHandlerFor[WindowInput, *WindowResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input WindowInput) (*mcp.CallToolResult, *WindowResult, error) {
		env, err := s.envelope()
		if err != nil {
			return nil, nil, err
		}

		w, err := dexcom.NewWindow(input.StartMS, input.EndMS)
		if err != nil {
			return nil, nil, err
		}

		res, err := s.client.EGVsRange(ctx, env, w)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(res.Token)

		out := &WindowResult{
			Unit:     res.EstimatedGlucoseValues.Unit,
			RateUnit: res.EstimatedGlucoseValues.RateUnit,
			Count:    len(res.EstimatedGlucoseValues.EGVs),
			EGVs:     res.EstimatedGlucoseValues.EGVs,
		}

		return textResult(out), out, nil
	}
}

func daysHandler(s *Service) mcp.ToolHandlerFor[DaysInput, *DaysResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DaysInput) (*mcp.CallToolResult, *DaysResult, error) {
		days := input.Days
		if days <= 0 {
			days = defaultDays
		}

		if days > maxDays {
			return nil, nil, fmt.Errorf("days must be at most %d, got %d", maxDays, days)
		}

		env, err := s.envelope()
		if err != nil {
			return nil, nil, err
		}

		rangeRes, err := s.client.Range(ctx, env)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(rangeRes.Token)

		w, ok := dexcom.LookbackWindow(rangeRes.DataRange, s.now().UnixMilli(), days)
		if !ok {
			return textResult(&DaysResult{}), &DaysResult{}, nil
		}

		res, err := s.client.EGVsRange(ctx, env, w)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(res.Token)

		out := &DaysResult{
			Unit:     res.EstimatedGlucoseValues.Unit,
			RateUnit: res.EstimatedGlucoseValues.RateUnit,
			Days:     dexcom.GroupByDay(res.EstimatedGlucoseValues.EGVs),
		}

		return textResult(out), out, nil
	}
}

func rangeHandler(s *Service) mcp.ToolHandlerFor[RangeInput, *dexcom.DataRange] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ RangeInput) (*mcp.CallToolResult, *dexcom.DataRange, error) {
		env, err := s.envelope()
		if err != nil {
			return nil, nil, err
		}

		res, err := s.client.Range(ctx, env)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(res.Token)

		return textResult(&res.DataRange), &res.DataRange, nil
	}
}

func statisticsHandler(s *Service) mcp.ToolHandlerFor[StatisticsInput, *StatisticsOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StatisticsInput) (*mcp.CallToolResult, *StatisticsOutput, error) {
		env, err := s.envelope()
		if err != nil {
			return nil, nil, err
		}

		w, err := dexcom.NewWindow(input.StartMS, input.EndMS)
		if err != nil {
			return nil, nil, err
		}

		targets := s.Targets()

		res, err := s.client.Statistics(ctx, env, w, targets)
		if err != nil {
			return nil, nil, err
		}

		s.persistToken(res.Token)

		stats := make(map[string]any)
		if err := json.Unmarshal(res.Statistics, &stats); err != nil {
			return nil, nil, fmt.Errorf("decoding statistics document: %w", err)
		}

		out := &StatisticsOutput{Statistics: stats, Targets: targets}

		return textResult(out), out, nil
	}
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
