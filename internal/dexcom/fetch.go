package dexcom

import "context"

// Category tags stamped onto normalized records.
const (
	recordTypeEGV         = "egv"
	recordTypeEvent       = "event"
	recordTypeCalibration = "calibration"
)

// EGVs fetches estimated glucose values for the window. The caller's
// envelope is never mutated; if the lifecycle manager refreshed it, the
// result's Token field carries the new envelope.
func (c *Client) EGVs(ctx context.Context, env TokenEnvelope, w Window) (*EGVsResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	payload, err := c.fetchEGVs(ctx, fresh, w)
	if err != nil {
		return nil, err
	}

	res := &EGVsResult{EstimatedGlucoseValues: payload}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}

// fetchEGVs issues one glucose-values request with an already-resolved
// envelope and normalizes the payload. Shared by EGVs and the
// multi-window fan-out.
func (c *Client) fetchEGVs(ctx context.Context, env TokenEnvelope, w Window) (EGVPayload, error) {
	var payload EGVPayload
	if err := c.getJSON(ctx, egvsPath, dateQuery(w), env, &payload); err != nil {
		return EGVPayload{}, err
	}

	normalizeEGVs(&payload)

	return payload, nil
}

// Events fetches user-logged events for the window.
func (c *Client) Events(ctx context.Context, env TokenEnvelope, w Window) (*EventsResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	var payload EventsPayload
	if err := c.getJSON(ctx, eventsPath, dateQuery(w), fresh, &payload); err != nil {
		return nil, err
	}

	for i := range payload.Events {
		r := &payload.Events[i]
		r.SystemTimeMS = epochOrZero(r.SystemTime)
		r.DisplayTimeMS = epochOrZero(r.DisplayTime)
		r.RecordType = recordTypeEvent
	}

	res := &EventsResult{Events: payload}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}

// Calibrations fetches meter calibrations for the window.
func (c *Client) Calibrations(ctx context.Context, env TokenEnvelope, w Window) (*CalibrationsResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	var payload CalibrationsPayload
	if err := c.getJSON(ctx, calibrationsPath, dateQuery(w), fresh, &payload); err != nil {
		return nil, err
	}

	for i := range payload.Calibrations {
		r := &payload.Calibrations[i]
		r.SystemTimeMS = epochOrZero(r.SystemTime)
		r.DisplayTimeMS = epochOrZero(r.DisplayTime)
		r.RecordType = recordTypeCalibration
	}

	res := &CalibrationsResult{Calibrations: payload}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}

// Range fetches the bounds of the data the provider actually holds for
// this user. It takes no time window.
func (c *Client) Range(ctx context.Context, env TokenEnvelope) (*RangeResult, error) {
	fresh, refreshed, err := c.EnsureFresh(ctx, env, false)
	if err != nil {
		return nil, err
	}

	var dr DataRange
	if err := c.getJSON(ctx, dataRangePath, nil, fresh, &dr); err != nil {
		return nil, err
	}

	res := &RangeResult{DataRange: dr}
	if refreshed {
		res.Token = &fresh
	}

	return res, nil
}

// normalizeEGVs stamps derived fields onto every record and backfills
// per-record units from the response-level defaults.
func normalizeEGVs(p *EGVPayload) {
	for i := range p.EGVs {
		r := &p.EGVs[i]
		r.SystemTimeMS = epochOrZero(r.SystemTime)
		r.DisplayTimeMS = epochOrZero(r.DisplayTime)
		r.RecordType = recordTypeEGV

		if r.Unit == "" {
			r.Unit = p.Unit
		}

		if r.RateUnit == "" {
			r.RateUnit = p.RateUnit
		}
	}
}
