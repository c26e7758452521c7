package dexcom

import "time"

// providerTimeLayout is the exact 19-character date-time format the
// provider requires in query parameters and uses in record timestamps:
// second precision, no fractional seconds, no UTC-offset suffix.
const providerTimeLayout = "2006-01-02T15:04:05"

// FormatTime renders an epoch-millisecond timestamp in the provider's
// date format. Sub-second precision is discarded; the round trip is
// lossy by design.
func FormatTime(epochMs int64) string {
	return time.UnixMilli(epochMs).UTC().Format(providerTimeLayout)
}

// parseProviderTime converts one of the provider's timestamp strings to
// epoch milliseconds. Record timestamps normally carry no offset and are
// interpreted as UTC; an RFC 3339 offset is honored when present.
func parseProviderTime(s string) (int64, error) {
	if t, err := time.Parse(providerTimeLayout, s); err == nil {
		return t.UnixMilli(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}

	return t.UnixMilli(), nil
}

// epochOrZero is parseProviderTime for normalization paths, where an
// unparseable provider timestamp degrades to a zero mirror rather than
// failing the whole fetch.
func epochOrZero(s string) int64 {
	ms, err := parseProviderTime(s)
	if err != nil {
		return 0
	}

	return ms
}
