package dexcom

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayMS = int64(24 * time.Hour / time.Millisecond)

// --- SplitWindow ---

func TestSplitWindow_ShortWindowUnchanged(t *testing.T) {
	w := Window{Start: 1447858800000, End: 1447862400000}

	subs := SplitWindow(w)
	require.Len(t, subs, 1)
	assert.Equal(t, w, subs[0])
}

func TestSplitWindow_200DaysYieldsThree(t *testing.T) {
	start := int64(1_500_000_000_000)
	w := Window{Start: start, End: start + 200*dayMS}

	subs := SplitWindow(w)
	require.Len(t, subs, 3)

	// Full coverage with shared boundary instants.
	assert.Equal(t, w.Start, subs[0].Start)
	assert.Equal(t, w.End, subs[len(subs)-1].End)
	for i := 1; i < len(subs); i++ {
		assert.Equal(t, subs[i-1].End, subs[i].Start)
	}

	assert.Equal(t, 89*24*time.Hour, subs[0].Span())
	assert.Equal(t, 89*24*time.Hour, subs[1].Span())
	assert.Equal(t, 22*24*time.Hour, subs[2].Span())
}

func TestSplitWindow_ExactMultiple(t *testing.T) {
	start := int64(1_500_000_000_000)
	w := Window{Start: start, End: start + 89*dayMS}

	subs := SplitWindow(w)
	require.Len(t, subs, 1)
	assert.Equal(t, w, subs[0])
}

// --- LookbackWindow ---

func rangeStartingAt(ms int64) DataRange {
	return DataRange{
		EGVs: CategoryRange{
			Start: RangeStamp{SystemTime: FormatTime(ms)},
			End:   RangeStamp{SystemTime: FormatTime(ms + 300*dayMS)},
		},
	}
}

func TestLookbackWindow_StartsAtLocalMidnight(t *testing.T) {
	end := int64(1_600_000_000_000)

	w, ok := LookbackWindow(rangeStartingAt(0), end, 7)
	require.True(t, ok)
	assert.Equal(t, end, w.End)

	wantStart := time.UnixMilli(localMidnight(end)).Local().AddDate(0, 0, -7).UnixMilli()
	assert.Equal(t, wantStart, w.Start)
}

func TestLookbackWindow_ClampsToProviderStart(t *testing.T) {
	end := int64(1_600_000_000_000)
	earliest := end - 2*dayMS

	w, ok := LookbackWindow(rangeStartingAt(earliest), end, 30)
	require.True(t, ok)
	// Second precision: the provider stamp loses the millisecond part.
	assert.Equal(t, earliest-earliest%1000, w.Start)
	assert.Equal(t, end, w.End)
}

func TestLookbackWindow_NoOverlap(t *testing.T) {
	end := int64(1_600_000_000_000)

	_, ok := LookbackWindow(rangeStartingAt(end+dayMS), end, 7)
	assert.False(t, ok)
}

func TestLookbackWindow_UnparseableRange(t *testing.T) {
	dr := DataRange{EGVs: CategoryRange{Start: RangeStamp{SystemTime: ""}}}

	_, ok := LookbackWindow(dr, 1_600_000_000_000, 7)
	assert.False(t, ok)
}

// --- GroupByDay ---

func TestGroupByDay(t *testing.T) {
	base := localMidnight(1_600_000_000_000)

	var egvs []EGV
	for day := 0; day < 8; day++ {
		for _, offset := range []int64{6 * 3600_000, 12 * 3600_000, 18 * 3600_000} {
			egvs = append(egvs, EGV{
				SystemTimeMS: base + int64(day)*dayMS + offset,
				Value:        float64(100 + day),
			})
		}
	}

	groups := GroupByDay(egvs)
	require.Len(t, groups, 8)

	for i, g := range groups {
		assert.Equal(t, localMidnight(base+int64(i)*dayMS), g.Day)
		require.Len(t, g.EGVs, 3)
		assert.Equal(t, float64(100+i), g.EGVs[0].Value)
	}
}

func TestGroupByDay_Empty(t *testing.T) {
	assert.Empty(t, GroupByDay(nil))
}

func TestGroupByDay_DoesNotMutateInput(t *testing.T) {
	egvs := []EGV{{SystemTimeMS: 1_600_000_000_000, Value: 100}}
	before := egvs[0]

	GroupByDay(egvs)
	assert.Equal(t, before, egvs[0])
}

// --- EGVsRange ---

func TestEGVsRange_ConcatenatesInWindowOrder(t *testing.T) {
	now := time.UnixMilli(1_600_000_000_000)

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/users/self/egvs", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		// Echo the sub-window's start back as the single record so the
		// caller-side ordering is observable.
		start := r.URL.Query().Get("startDate")
		fmt.Fprintf(w, `{"unit": "mg/dL", "rateUnit": "mg/dL/min", "egvs": [
			{"systemTime": %q, "displayTime": %q, "value": 100}
		]}`, start, start)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, now)

	env := validEnvelope()
	env.Timestamp = now.UnixMilli()

	start := int64(1_500_000_000_000)
	w := Window{Start: start, End: start + 200*dayMS}

	res, err := c.EGVsRange(context.Background(), env, w)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "mg/dL", res.EstimatedGlucoseValues.Unit)
	assert.Nil(t, res.Token)

	subs := SplitWindow(w)
	require.Len(t, res.EstimatedGlucoseValues.EGVs, len(subs))
	for i, sub := range subs {
		// Second precision again: sub-window starts truncate to the second.
		assert.Equal(t, sub.Start-sub.Start%1000, res.EstimatedGlucoseValues.EGVs[i].SystemTimeMS)
	}
}

func TestEGVsRange_RefreshesOnceUpFront(t *testing.T) {
	now := time.UnixMilli(1_600_000_000_000)

	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		tokenHandler(t, nil)(w, r)
	})
	mux.HandleFunc("/v2/users/self/egvs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
		w.Write([]byte(`{"unit": "mg/dL", "rateUnit": "mg/dL/min", "egvs": []}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, now)

	env := validEnvelope()
	env.Timestamp = 0 // long expired

	start := int64(1_500_000_000_000)
	res, err := c.EGVsRange(context.Background(), env, Window{Start: start, End: start + 200*dayMS})
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())
	require.NotNil(t, res.Token)
	assert.Equal(t, "new-access", res.Token.AccessToken)
}

func TestEGVsRange_SubRequestFailureAborts(t *testing.T) {
	now := time.UnixMilli(1_600_000_000_000)

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/users/self/egvs", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.Write([]byte(`{"unit": "mg/dL", "rateUnit": "mg/dL/min", "egvs": []}`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv, now)

	env := validEnvelope()
	env.Timestamp = now.UnixMilli()

	start := int64(1_500_000_000_000)
	_, err := c.EGVsRange(context.Background(), env, Window{Start: start, End: start + 200*dayMS})
	require.Error(t, err)
	assert.True(t, IsProvider(err))
}

func TestEGVsRange_InvalidWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid window must not reach the network")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, time.Now())

	_, err := c.EGVsRange(context.Background(), validEnvelope(), Window{Start: 5, End: 5})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}
