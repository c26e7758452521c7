// Package dexcom is a client for the Dexcom continuous-glucose-monitoring
// REST API. It covers the OAuth 2.0 authorization-code and refresh-token
// flows and the v2 data endpoints (glucose values, events, calibrations,
// data range, statistics).
//
// The client is stateless per call: the caller supplies its current token
// envelope with every data request and owns persistence of any refreshed
// envelope handed back in the result.
package dexcom

import (
	"encoding/json"
	"time"
)

// Config identifies the registered application and the API host. It is
// passed to NewClient once; there is no process-wide configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
}

// TokenEnvelope bundles an access/refresh token pair with the wall-clock
// time (epoch milliseconds) at which it was acquired. Envelopes are
// immutable: a refresh produces a new envelope, never a mutated one.
type TokenEnvelope struct {
	Timestamp    int64
	AccessToken  string
	TokenType    string
	ExpiresIn    int
	RefreshToken string
}

// ExpiresAt returns the absolute expiry instant in epoch milliseconds.
func (t TokenEnvelope) ExpiresAt() int64 {
	return t.Timestamp + int64(t.ExpiresIn)*1000
}

// wireToken is the token object as the provider returns it.
type wireToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// wireEnvelope is the envelope shape exchanged with callers and persisted
// to disk: the provider token nested under "dexcomOAuthToken" next to the
// acquisition timestamp.
type wireEnvelope struct {
	Timestamp int64     `json:"timestamp"`
	Token     wireToken `json:"dexcomOAuthToken"`
}

// MarshalJSON serializes the envelope in the nested wire shape.
func (t TokenEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Timestamp: t.Timestamp,
		Token: wireToken{
			AccessToken:  t.AccessToken,
			ExpiresIn:    t.ExpiresIn,
			TokenType:    t.TokenType,
			RefreshToken: t.RefreshToken,
		},
	})
}

// UnmarshalJSON parses the nested wire shape.
func (t *TokenEnvelope) UnmarshalJSON(data []byte) error {
	var we wireEnvelope
	if err := json.Unmarshal(data, &we); err != nil {
		return err
	}

	t.Timestamp = we.Timestamp
	t.AccessToken = we.Token.AccessToken
	t.ExpiresIn = we.Token.ExpiresIn
	t.TokenType = we.Token.TokenType
	t.RefreshToken = we.Token.RefreshToken

	return nil
}

// Window is a half-open time window in epoch milliseconds. Construct via
// NewWindow to get validation; a zero Window is invalid.
type Window struct {
	Start int64
	End   int64
}

// Span returns the window length.
func (w Window) Span() time.Duration {
	return time.Duration(w.End-w.Start) * time.Millisecond
}

// EGV is a single estimated glucose value. SystemTime and DisplayTime come
// from the provider; SystemTimeMS, DisplayTimeMS and RecordType are derived
// during normalization. Unit and RateUnit are backfilled from the
// response-level defaults when the record omits them.
type EGV struct {
	SystemTime    string   `json:"systemTime"`
	DisplayTime   string   `json:"displayTime"`
	Value         float64  `json:"value"`
	RealtimeValue float64  `json:"realtimeValue"`
	SmoothedValue *float64 `json:"smoothedValue"`
	Status        string   `json:"status,omitempty"`
	Trend         string   `json:"trend,omitempty"`
	TrendRate     float64  `json:"trendRate"`
	Unit          string   `json:"unit,omitempty"`
	RateUnit      string   `json:"rateUnit,omitempty"`

	SystemTimeMS  int64  `json:"systemTimeMs"`
	DisplayTimeMS int64  `json:"displayTimeMs"`
	RecordType    string `json:"recordType"`
}

// Event is a user-logged event (carbs, insulin, exercise, health).
type Event struct {
	SystemTime  string  `json:"systemTime"`
	DisplayTime string  `json:"displayTime"`
	EventType   string  `json:"eventType"`
	SubType     string  `json:"eventSubType,omitempty"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`

	SystemTimeMS  int64  `json:"systemTimeMs"`
	DisplayTimeMS int64  `json:"displayTimeMs"`
	RecordType    string `json:"recordType"`
}

// Calibration is a meter calibration entry.
type Calibration struct {
	SystemTime  string  `json:"systemTime"`
	DisplayTime string  `json:"displayTime"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`

	SystemTimeMS  int64  `json:"systemTimeMs"`
	DisplayTimeMS int64  `json:"displayTimeMs"`
	RecordType    string `json:"recordType"`
}

// EGVPayload is the provider response for the glucose-values endpoint.
type EGVPayload struct {
	Unit     string `json:"unit"`
	RateUnit string `json:"rateUnit"`
	EGVs     []EGV  `json:"egvs"`
}

// EventsPayload is the provider response for the events endpoint.
type EventsPayload struct {
	Events []Event `json:"events"`
}

// CalibrationsPayload is the provider response for the calibrations endpoint.
type CalibrationsPayload struct {
	Calibrations []Calibration `json:"calibrations"`
}

// RangeStamp is one bound of a category's known data range.
type RangeStamp struct {
	SystemTime  string `json:"systemTime"`
	DisplayTime string `json:"displayTime"`
}

// CategoryRange holds the earliest and latest record times for one
// data category.
type CategoryRange struct {
	Start RangeStamp `json:"start"`
	End   RangeStamp `json:"end"`
}

// DataRange is the provider response for the dataRange endpoint.
type DataRange struct {
	Calibrations CategoryRange `json:"calibrations"`
	EGVs         CategoryRange `json:"egvs"`
	Events       CategoryRange `json:"events"`
}

// Results. The Token field is non-nil if and only if the token lifecycle
// manager refreshed the envelope while serving the request; callers must
// persist it. JSON field names match the caller-facing names the provider
// wrapper has always used, so results serialize cleanly for tooling.

// EGVsResult is the outcome of a glucose-values fetch.
type EGVsResult struct {
	EstimatedGlucoseValues EGVPayload     `json:"estimatedGlucoseValues"`
	Token                  *TokenEnvelope `json:"oauthTokens,omitempty"`
}

// EventsResult is the outcome of an events fetch.
type EventsResult struct {
	Events EventsPayload  `json:"events"`
	Token  *TokenEnvelope `json:"oauthTokens,omitempty"`
}

// CalibrationsResult is the outcome of a calibrations fetch.
type CalibrationsResult struct {
	Calibrations CalibrationsPayload `json:"calibrations"`
	Token        *TokenEnvelope      `json:"oauthTokens,omitempty"`
}

// RangeResult is the outcome of a data-range fetch.
type RangeResult struct {
	DataRange DataRange      `json:"dataRange"`
	Token     *TokenEnvelope `json:"oauthTokens,omitempty"`
}

// DayGroup is one calendar day's worth of glucose values, keyed by the
// epoch-millisecond value of local midnight.
type DayGroup struct {
	Day  int64 `json:"day"`
	EGVs []EGV `json:"egvs"`
}
