package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 4 * 1024 * 1024

	// sandboxHostPrefix marks the provider's sandbox environment, where
	// authorization codes are fixed sentinel values.
	sandboxHostPrefix = "sandbox-"
)

// Endpoint paths under the configured API base URL.
const (
	loginPath        = "/v2/oauth2/login"
	tokenPath        = "/v2/oauth2/token"
	egvsPath         = "/v2/users/self/egvs"
	eventsPath       = "/v2/users/self/events"
	calibrationsPath = "/v2/users/self/calibrations"
	dataRangePath    = "/v2/users/self/dataRange"
	statisticsPath   = "/v2/users/self/statistics"
)

// Client talks to the Dexcom REST API.
type Client struct {
	httpClient *http.Client
	cfg        Config
	now        func() time.Time
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This prevents bearer credentials
// from leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an API client for the given application identity.
// The configuration is validated here, so a constructed Client always
// carries well-formed credentials. If httpClient is nil, a client with
// a 30-second timeout and same-host redirect policy is created.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       httpClientTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Config returns the client's application identity.
func (c *Client) Config() Config { return c.cfg }

// sandbox reports whether the client points at the provider's sandbox
// environment.
func (c *Client) sandbox() bool {
	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return false
	}

	return strings.HasPrefix(u.Host, sandboxHostPrefix)
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// do executes the request and returns the response body. Network failures
// come back as TransportError, non-2xx statuses as ProviderError; neither
// is retried here.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("sending request to %s: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response from %s: %w", endpoint, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       sanitizeResponseBody(body),
		}
	}

	return body, nil
}

// getJSON sends an authenticated GET and decodes the response into result.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, env TokenEnvelope, result any) error {
	u := c.cfg.APIURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", env.TokenType+" "+env.AccessToken)

	body, err := c.do(req, endpoint)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return nil
}

// postJSON sends an authenticated JSON POST and decodes the response.
func (c *Client) postJSON(ctx context.Context, endpoint string, query url.Values, env TokenEnvelope, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling request body: %w", err)
	}

	u := c.cfg.APIURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", env.TokenType+" "+env.AccessToken)

	body, err := c.do(req, endpoint)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return nil
}

// postForm sends an unauthenticated form-encoded POST (the token
// endpoint) and decodes the response into result.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req, endpoint)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return nil
}

// dateQuery renders a window as the startDate/endDate query parameters
// every windowed endpoint takes.
func dateQuery(w Window) url.Values {
	q := url.Values{}
	q.Set("startDate", FormatTime(w.Start))
	q.Set("endDate", FormatTime(w.End))

	return q
}
