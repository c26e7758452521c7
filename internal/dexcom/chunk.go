package dexcom

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxWindowDays is the longest span a single data request may cover. The
// provider's hard limit is 90 days; staying one day under it avoids
// boundary rounding disputes at the edge.
const maxWindowDays = 89

// SplitWindow partitions a window into consecutive sub-windows of at most
// maxWindowDays each. Adjacent sub-windows share their boundary instant;
// together they cover the input exactly.
func SplitWindow(w Window) []Window {
	span := int64(maxWindowDays) * 24 * int64(time.Hour/time.Millisecond)

	var out []Window

	start := w.Start
	for start < w.End {
		end := start + span
		if end > w.End {
			end = w.End
		}

		out = append(out, Window{Start: start, End: end})
		start = end
	}

	return out
}

// localMidnight returns the epoch-millisecond value of local midnight of
// the day containing ms.
func localMidnight(ms int64) int64 {
	t := time.UnixMilli(ms).Local()
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.Local).UnixMilli()
}

// LookbackWindow computes the fetch window for "the last n days of data":
// end is the given target instant, start is local midnight of the day
// lookBackDays days earlier, clamped forward to the earliest glucose
// record the provider holds. The second return value is false when the
// provider's known range cannot overlap the request, in which case the
// window is empty.
func LookbackWindow(dr DataRange, end int64, lookBackDays int) (Window, bool) {
	start := localMidnight(end)
	start = time.UnixMilli(start).Local().AddDate(0, 0, -lookBackDays).UnixMilli()

	earliest, err := parseProviderTime(dr.EGVs.Start.SystemTime)
	if err != nil {
		// No parseable data start means the provider reports no data.
		return Window{}, false
	}

	if earliest > start {
		start = earliest
	}

	if start >= end {
		return Window{}, false
	}

	return Window{Start: start, End: end}, true
}

// GroupByDay partitions glucose values, pre-sorted ascending by system
// time, into per-calendar-day groups. The group key is local midnight of
// the record's day in epoch milliseconds; input order is preserved within
// each group. A single pass, no shared iteration state.
func GroupByDay(egvs []EGV) []DayGroup {
	var groups []DayGroup

	for _, r := range egvs {
		day := localMidnight(r.SystemTimeMS)

		if len(groups) == 0 || groups[len(groups)-1].Day != day {
			groups = append(groups, DayGroup{Day: day})
		}

		g := &groups[len(groups)-1]
		g.EGVs = append(g.EGVs, r)
	}

	return groups
}

// EGVsRange fetches glucose values across an arbitrarily long window by
// splitting it into sub-windows and issuing the per-window requests
// concurrently. The token is resolved once up front and shared by every
// sub-request; results are concatenated in sub-window order regardless of
// completion order. Any sub-request failure aborts the whole operation.
//
// Unit metadata is taken from the first sub-window's response only; later
// sub-windows could in principle disagree, and this is not reconciled.
func (c *Client) EGVsRange(ctx context.Context, env TokenEnvelope, w Window) (*EGVsResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	subs := SplitWindow(w)
	payloads := make([]EGVPayload, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		g.Go(func() error {
			p, err := c.fetchEGVs(gctx, fresh, sub)
			if err != nil {
				return err
			}

			payloads[i] = p

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := EGVPayload{
		Unit:     payloads[0].Unit,
		RateUnit: payloads[0].RateUnit,
	}
	for _, p := range payloads {
		combined.EGVs = append(combined.EGVs, p.EGVs...)
	}

	res := &EGVsResult{EstimatedGlucoseValues: combined}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}
