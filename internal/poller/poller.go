// Package poller runs the periodic glucose fetch loop: it keeps the
// token envelope fresh, pulls new estimated glucose values since the
// last run, and advances a persistent cursor so restarts never re-fetch
// or skip data.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexjbarnes/dexcom-sync/internal/dexcom"
)

// Client is the subset of the API client the poller uses.
type Client interface {
	EnsureFresh(ctx context.Context, env dexcom.TokenEnvelope, force bool) (dexcom.TokenEnvelope, bool, error)
	Range(ctx context.Context, env dexcom.TokenEnvelope) (*dexcom.RangeResult, error)
	EGVsRange(ctx context.Context, env dexcom.TokenEnvelope, w dexcom.Window) (*dexcom.EGVsResult, error)
}

// Store is the persistence the poller depends on.
type Store interface {
	TokenEnvelope() (*dexcom.TokenEnvelope, error)
	SetTokenEnvelope(env dexcom.TokenEnvelope) error
	PollCursor() (int64, error)
	SetPollCursor(ms int64) error
}

// Poller periodically fetches new glucose values.
type Poller struct {
	client       Client
	store        Store
	logger       *slog.Logger
	interval     time.Duration
	lookbackDays int
	now          func() time.Time
}

// New creates a poller. lookbackDays bounds the backfill window used on
// the very first run, before any cursor exists.
func New(client Client, store Store, logger *slog.Logger, interval time.Duration, lookbackDays int) *Poller {
	return &Poller{
		client:       client,
		store:        store,
		logger:       logger,
		interval:     interval,
		lookbackDays: lookbackDays,
		now:          time.Now,
	}
}

// Run executes the poll loop until the context is cancelled. The first
// tick fires immediately. Credential failures abort the loop; transient
// fetch failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs a single poll cycle. A non-nil return aborts the loop.
func (p *Poller) tick(ctx context.Context) error {
	stored, err := p.store.TokenEnvelope()
	if err != nil {
		return fmt.Errorf("loading token envelope: %w", err)
	}

	if stored == nil {
		return fmt.Errorf("no token envelope stored: run the login subcommand first")
	}

	// Refresh up front and persist before fetching anything. The
	// provider invalidates the old refresh token on use, so a crash
	// between refresh and persist would otherwise lose the credential.
	env, refreshed, err := p.client.EnsureFresh(ctx, *stored, false)
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	if refreshed {
		if err := p.store.SetTokenEnvelope(env); err != nil {
			return fmt.Errorf("persisting refreshed token: %w", err)
		}

		p.logger.Info("token envelope refreshed",
			slog.Int64("expires_at", env.ExpiresAt()),
		)
	}

	w, ok, err := p.fetchWindow(ctx, env)
	if err != nil {
		// Transient: retry next tick.
		p.logger.Warn("resolving fetch window failed", slog.String("error", err.Error()))
		return nil
	}

	if !ok {
		p.logger.Debug("no new data window to fetch")
		return nil
	}

	res, err := p.client.EGVsRange(ctx, env, w)
	if err != nil {
		// Transient: the cursor stays put, so the next tick re-fetches
		// the same window.
		p.logger.Warn("fetching glucose values failed", slog.String("error", err.Error()))
		return nil
	}

	if res.Token != nil {
		if err := p.store.SetTokenEnvelope(*res.Token); err != nil {
			return fmt.Errorf("persisting refreshed token: %w", err)
		}
	}

	egvs := res.EstimatedGlucoseValues.EGVs
	if len(egvs) > 0 {
		latest := egvs[len(egvs)-1]
		p.logger.Info("fetched glucose values",
			slog.Int("count", len(egvs)),
			slog.Float64("latest_value", latest.Value),
			slog.String("latest_trend", latest.Trend),
			slog.String("unit", res.EstimatedGlucoseValues.Unit),
		)
	} else {
		p.logger.Debug("no new glucose values in window",
			slog.Int64("start", w.Start),
			slog.Int64("end", w.End),
		)
	}

	if err := p.store.SetPollCursor(w.End); err != nil {
		return fmt.Errorf("persisting poll cursor: %w", err)
	}

	return nil
}

// fetchWindow resolves the window for this cycle: from the stored cursor
// to now, or a lookback-bounded backfill window on the first run. The
// second return value is false when there is nothing to fetch.
func (p *Poller) fetchWindow(ctx context.Context, env dexcom.TokenEnvelope) (dexcom.Window, bool, error) {
	end := p.now().UnixMilli()

	cursor, err := p.store.PollCursor()
	if err != nil {
		return dexcom.Window{}, false, fmt.Errorf("loading poll cursor: %w", err)
	}

	if cursor > 0 {
		if cursor >= end {
			return dexcom.Window{}, false, nil
		}

		return dexcom.Window{Start: cursor, End: end}, true, nil
	}

	// First run: bound the backfill by the provider's known data range.
	res, err := p.client.Range(ctx, env)
	if err != nil {
		return dexcom.Window{}, false, fmt.Errorf("fetching data range: %w", err)
	}

	w, ok := dexcom.LookbackWindow(res.DataRange, end, p.lookbackDays)
	if !ok {
		return dexcom.Window{}, false, nil
	}

	return w, true, nil
}
