package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Password is used for every registrant the scenarios create.
const Password = "e2e-correct-horse"

// TestContext carries HTTP state through one scenario. Aliases used in feature
// files ("alice") map to run-unique emails so scenarios can repeat against a
// long-lived server.
type TestContext struct {
	baseURL string
	client  *http.Client
	runID   string

	clientIP   string
	lastStatus int
	lastBody   []byte
	lastHeader http.Header

	tokens map[string]string
	codes  map[string]string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		runID:   randomHex(4),
	}
}

// Reset clears per-scenario state and picks a fresh client IP so rate limits
// from earlier scenarios do not leak in.
func (tc *TestContext) Reset() {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	tc.clientIP = fmt.Sprintf("10.%d.%d.%d", b[0], b[1], b[2])
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeader = nil
	tc.tokens = make(map[string]string)
	tc.codes = make(map[string]string)
}

func (tc *TestContext) Email(alias string) string {
	return fmt.Sprintf("%s+%s@e2e.lifenavigator.test", alias, tc.runID)
}

func (tc *TestContext) ClientIP() string {
	return tc.clientIP
}

func (tc *TestContext) Token(alias string) string {
	return tc.tokens[alias]
}

func (tc *TestContext) SetToken(alias, token string) {
	tc.tokens[alias] = token
}

func (tc *TestContext) Code(alias string) string {
	return tc.codes[alias]
}

func (tc *TestContext) SetCode(alias, code string) {
	tc.codes[alias] = code
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) LastHeader(key string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(key)
}

// ResponseField reads a top-level field from the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w (body: %s)", err, tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
