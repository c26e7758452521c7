package dexcom

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// RefreshThreshold is the minimum remaining validity below which a token
// envelope is treated as expiring and refreshed before use.
const RefreshThreshold = 60 * time.Second

// AuthorizeURL returns the browser URL that starts the authorization-code
// flow. The user signs in there and is redirected back with a code to
// pass to ExchangeAuthCode.
func (c *Client) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "offline_access")

	return c.cfg.APIURL + loginPath + "?" + q.Encode()
}

// ExchangeAuthCode performs the authorization-code grant and returns a
// brand-new token envelope stamped with the acquisition time. Against the
// sandbox environment the code must be one of the sandbox sentinel values;
// production codes are opaque and only checked for presence.
func (c *Client) ExchangeAuthCode(ctx context.Context, code string) (TokenEnvelope, error) {
	if c.sandbox() {
		if err := ValidateAuthCode(code); err != nil {
			return TokenEnvelope{}, err
		}
	} else if code == "" {
		return TokenEnvelope{}, &ValidationError{Field: "code", Reason: "must not be empty"}
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.cfg.RedirectURI)

	env, err := c.tokenExchange(ctx, form)
	if err != nil {
		return TokenEnvelope{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return env, nil
}

// EnsureFresh decides whether the supplied envelope is still usable or
// must be exchanged for a new one, and performs the refresh exchange when
// it is not. The envelope is usable only when force is false and strictly
// more than RefreshThreshold of validity remains; exactly the threshold
// counts as expiring.
//
// The returned bool reports whether a refresh happened. When it is false
// the input envelope is returned unchanged; when it is true the returned
// envelope is new and the caller must persist it. Refresh failures
// propagate as-is: a stale token is never handed back.
func (c *Client) EnsureFresh(ctx context.Context, env TokenEnvelope, force bool) (TokenEnvelope, bool, error) {
	if err := env.Validate(); err != nil {
		return TokenEnvelope{}, false, err
	}

	now := c.now().UnixMilli()
	if !force && now+RefreshThreshold.Milliseconds() < env.ExpiresAt() {
		return env, false, nil
	}

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", env.RefreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("redirect_uri", c.cfg.RedirectURI)

	fresh, err := c.tokenExchange(ctx, form)
	if err != nil {
		return TokenEnvelope{}, false, fmt.Errorf("refreshing token: %w", err)
	}

	return fresh, true, nil
}

// tokenExchange POSTs a grant to the token endpoint and wraps the
// provider's token in an envelope stamped with the current wall-clock
// time. A structurally invalid provider token is rejected here rather
// than surfacing later as an unusable envelope.
func (c *Client) tokenExchange(ctx context.Context, form url.Values) (TokenEnvelope, error) {
	var wt wireToken
	if err := c.postForm(ctx, tokenPath, form, &wt); err != nil {
		return TokenEnvelope{}, err
	}

	env := TokenEnvelope{
		Timestamp:    c.now().UnixMilli(),
		AccessToken:  wt.AccessToken,
		TokenType:    wt.TokenType,
		ExpiresIn:    wt.ExpiresIn,
		RefreshToken: wt.RefreshToken,
	}

	if err := env.Validate(); err != nil {
		return TokenEnvelope{}, fmt.Errorf("provider returned malformed token: %w", err)
	}

	return env, nil
}
