// Package idme is the ID.me OAuth client used for service verification.
package idme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lifenavigator/internal/verification/models"
	"lifenavigator/pkg/platform/circuit"
)

const (
	authorizePath  = "/oauth/authorize"
	tokenPath      = "/oauth/token"
	attributesPath = "/api/public/v3/attributes.json"
	maxBodyBytes   = 1 << 20
)

// Scopes requested for service verification.
var Scopes = []string{"military", "teacher", "responder"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string
	APIBaseURL   string
	Timeout      time.Duration
}

// Client talks to ID.me behind a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = cfg.BaseURL
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New("idme"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorizeURL is where the browser is sent to start verification.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(Scopes, " ")},
		"state":         {state},
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + authorizePath + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURL},
	}
	var out tokenResponse
	err := c.call(ctx, "token_exchange", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(c.cfg.BaseURL, "/")+tokenPath, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", newProviderError(ErrorBadData, "token_exchange", "token response had no access_token", nil)
	}
	return out.AccessToken, nil
}

type attributesResponse struct {
	Status []struct {
		Group     string   `json:"group"`
		Subgroups []string `json:"subgroups"`
		Verified  bool     `json:"verified"`
	} `json:"status"`
}

// Groups fetches the verified group statuses for the token's user.
func (c *Client) Groups(ctx context.Context, accessToken string) ([]models.GroupStatus, error) {
	var out attributesResponse
	err := c.call(ctx, "attributes", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			strings.TrimRight(c.cfg.APIBaseURL, "/")+attributesPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	groups := make([]models.GroupStatus, 0, len(out.Status))
	for _, s := range out.Status {
		groups = append(groups, models.GroupStatus{Group: s.Group, Subgroups: s.Subgroups, Verified: s.Verified})
	}
	return groups, nil
}

func (c *Client) call(ctx context.Context, op string, build func() (*http.Request, error), out any) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}
	err := c.do(build, op, out)
	c.record(ctx, err)
	return err
}

func (c *Client) do(build func() (*http.Request, error), op string, out any) error {
	req, err := build()
	if err != nil {
		return newProviderError(ErrorInternal, op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return newProviderError(ErrorProviderOutage, op, "read response", err)
	}
	if err := classifyStatus(op, resp.StatusCode); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newProviderError(ErrorBadData, op, "decode response", err)
	}
	return nil
}

// record feeds the breaker. Client-side failures (bad code, revoked token)
// say nothing about provider health and count as successes.
func (c *Client) record(ctx context.Context, err error) {
	if err == nil || !IsRetryable(err) {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "idme circuit closed")
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "idme circuit opened", "error", err)
	}
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newProviderError(ErrorTimeout, op, "request timed out", err)
	}
	return newProviderError(ErrorProviderOutage, op, "request failed", err)
}

func classifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newProviderError(ErrorAuthentication, op, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusBadRequest:
		// invalid_grant: the code was already used or expired.
		return newProviderError(ErrorAuthentication, op, "authorization code rejected", nil)
	case status == http.StatusTooManyRequests:
		return newProviderError(ErrorRateLimited, op, "rate limited", nil)
	case status >= 500:
		return newProviderError(ErrorProviderOutage, op, fmt.Sprintf("status %d", status), nil)
	default:
		return newProviderError(ErrorBadData, op, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
