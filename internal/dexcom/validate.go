package dexcom

import (
	"fmt"
	"net/url"
)

const (
	maxClientIDLen     = 32
	maxClientSecretLen = 16
	maxTokenLen        = 1024
	maxTokenTypeLen    = 6
	maxExpiresIn       = 7200
)

// sandboxAuthCodes are the authorization codes accepted by the provider's
// sandbox environment, one per sandbox test user. Production flows never
// see these; they authorize real users through the hosted consent page.
var sandboxAuthCodes = []string{
	"authcode1", "authcode2", "authcode3",
	"authcode4", "authcode5", "authcode6",
}

// Validate checks the application identity against the provider's
// registration constraints. All four fields must be set before any
// network operation is attempted.
func (c Config) Validate() error {
	if c.ClientID == "" || len(c.ClientID) > maxClientIDLen {
		return &ValidationError{Field: "clientId", Reason: fmt.Sprintf("must be 1-%d characters", maxClientIDLen)}
	}

	if c.ClientSecret == "" || len(c.ClientSecret) > maxClientSecretLen {
		return &ValidationError{Field: "clientSecret", Reason: fmt.Sprintf("must be 1-%d characters", maxClientSecretLen)}
	}

	if err := validateURL("redirectUri", c.RedirectURI); err != nil {
		return err
	}

	return validateURL("apiUri", c.APIURL)
}

// validateURL requires an absolute http(s) URL with a host.
func validateURL(field, raw string) error {
	if raw == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("not a valid URL: %v", err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	if u.Host == "" {
		return &ValidationError{Field: field, Reason: "missing host"}
	}

	return nil
}

// Validate checks the envelope against the provider's token constraints.
func (t TokenEnvelope) Validate() error {
	if t.Timestamp < 0 {
		return &ValidationError{Field: "timestamp", Reason: "must not be negative"}
	}

	if t.AccessToken == "" || len(t.AccessToken) > maxTokenLen {
		return &ValidationError{Field: "accessToken", Reason: fmt.Sprintf("must be 1-%d characters", maxTokenLen)}
	}

	if t.TokenType == "" || len(t.TokenType) > maxTokenTypeLen {
		return &ValidationError{Field: "tokenType", Reason: fmt.Sprintf("must be 1-%d characters", maxTokenTypeLen)}
	}

	if t.ExpiresIn < 0 || t.ExpiresIn > maxExpiresIn {
		return &ValidationError{Field: "expiresIn", Reason: fmt.Sprintf("must be 0-%d seconds", maxExpiresIn)}
	}

	if t.RefreshToken == "" || len(t.RefreshToken) > maxTokenLen {
		return &ValidationError{Field: "refreshToken", Reason: fmt.Sprintf("must be 1-%d characters", maxTokenLen)}
	}

	return nil
}

// NewWindow builds a validated time window. Both bounds are epoch
// milliseconds; start must be strictly before end.
func NewWindow(start, end int64) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}

	return w, nil
}

// Validate checks the window bounds.
func (w Window) Validate() error {
	if w.Start < 0 || w.End < 0 {
		return &ValidationError{Field: "window", Reason: "bounds must not be negative"}
	}

	if w.Start >= w.End {
		return &ValidationError{Field: "window", Reason: "start must be before end"}
	}

	return nil
}

// ValidateAuthCode checks a sandbox authorization code against the six
// sandbox sentinel values.
func ValidateAuthCode(code string) error {
	for _, c := range sandboxAuthCodes {
		if code == c {
			return nil
		}
	}

	return &ValidationError{Field: "code", Reason: "not a sandbox authorization code"}
}
