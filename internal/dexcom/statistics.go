package dexcom

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// StatisticsTargets is the target-range structure POSTed to the
// statistics endpoint. The provider computes time-in-range and summary
// metrics against these windows.
type StatisticsTargets struct {
	TargetRanges []TargetRange `json:"targetRanges" yaml:"targetRanges"`
}

// TargetRange is one named window of the day with its glucose bounds.
// StartTime and EndTime are wall-clock "hh:mm" strings.
type TargetRange struct {
	Name      string     `json:"name" yaml:"name"`
	StartTime string     `json:"startTime" yaml:"startTime"`
	EndTime   string     `json:"endTime" yaml:"endTime"`
	EGVRanges []EGVRange `json:"egvRanges" yaml:"egvRanges"`
}

// EGVRange is a single named glucose bound in mg/dL. The provider's
// wire name for the bound is "egvRange".
type EGVRange struct {
	Name  string `json:"name" yaml:"name"`
	Bound int    `json:"egvRange" yaml:"egvRange"`
}

// DefaultTargets returns the standard day/night target structure: a day
// window 07:00-20:00 with bounds 55/70/180 and a night window 20:00-07:00
// with bounds 55/80/200.
func DefaultTargets() StatisticsTargets {
	return StatisticsTargets{
		TargetRanges: []TargetRange{
			{
				Name:      "day",
				StartTime: "07:00",
				EndTime:   "20:00",
				EGVRanges: []EGVRange{
					{Name: "urgentLow", Bound: 55},
					{Name: "low", Bound: 70},
					{Name: "high", Bound: 180},
				},
			},
			{
				Name:      "night",
				StartTime: "20:00",
				EndTime:   "07:00",
				EGVRanges: []EGVRange{
					{Name: "urgentLow", Bound: 55},
					{Name: "low", Bound: 80},
					{Name: "high", Bound: 200},
				},
			},
		},
	}
}

// StatisticsResult is the outcome of a statistics fetch. The provider's
// statistics document is large and loosely specified, so the payload is
// kept raw with gjson accessors rather than forced into a struct.
type StatisticsResult struct {
	Statistics json.RawMessage `json:"statistics"`
	Token      *TokenEnvelope  `json:"oauthTokens,omitempty"`
}

// Float returns the numeric value at the given gjson path, or 0 when the
// path is absent.
func (r *StatisticsResult) Float(path string) float64 {
	return gjson.GetBytes(r.Statistics, path).Float()
}

// String returns the string value at the given gjson path, or "".
func (r *StatisticsResult) String(path string) string {
	return gjson.GetBytes(r.Statistics, path).Str
}

// Statistics fetches summary statistics for the window, computed against
// the given target ranges. A zero-value targets argument falls back to
// DefaultTargets.
func (c *Client) Statistics(ctx context.Context, env TokenEnvelope, w Window, targets StatisticsTargets) (*StatisticsResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	if len(targets.TargetRanges) == 0 {
		targets = DefaultTargets()
	}

	var raw json.RawMessage
	if err := c.postJSON(ctx, statisticsPath, dateQuery(w), fresh, targets, &raw); err != nil {
		return nil, err
	}

	res := &StatisticsResult{Statistics: raw}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}
