package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lifenavigator/pkg/platform/circuit"
)

const DefaultResendBaseURL = "https://api.resend.com"

// ResendSender posts to the Resend HTTP API behind a circuit breaker.
type ResendSender struct {
	apiKey  string
	baseURL string
	from    string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type ResendOption func(*ResendSender)

func WithResendHTTPClient(c *http.Client) ResendOption {
	return func(s *ResendSender) { s.http = c }
}

func WithResendBreaker(b *circuit.Breaker) ResendOption {
	return func(s *ResendSender) { s.breaker = b }
}

func WithResendLogger(logger *slog.Logger) ResendOption {
	return func(s *ResendSender) { s.logger = logger }
}

func NewResendSender(apiKey, baseURL, from string, opts ...ResendOption) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	s := &ResendSender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New("resend"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		return ErrCircuitOpen
	}
	retryable, err := s.send(ctx, msg)
	switch {
	case err == nil || !retryable:
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "resend circuit closed")
		}
	default:
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "resend circuit opened", "error", err)
		}
	}
	return err
}

// send reports whether a failure reflects provider health.
func (s *ResendSender) send(ctx context.Context, msg Message) (bool, error) {
	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return false, fmt.Errorf("encode email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("email provider returned %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("email rejected with status %d", resp.StatusCode)
	}
}
