package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/pkg/platform/circuit"
)

func TestResendSender_PostsEmail(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	sender := NewResendSender("re_test", srv.URL+"/", "LifeNavigator <hello@lifenavigator.example>")
	err := sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "Hi", HTML: "<p>Hi</p>"})

	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, got.To)
	assert.Equal(t, "LifeNavigator <hello@lifenavigator.example>", got.From)
	assert.Equal(t, "<p>Hi</p>", got.HTML)
}

func TestResendSender_OutageOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuit.New("resend", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	sender := NewResendSender("re_test", srv.URL, "from@example.com",
		WithResendBreaker(breaker),
		WithResendLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	msg := Message{To: "ada@example.com", Subject: "Hi", HTML: "x"}

	assert.Error(t, sender.Send(context.Background(), msg))
	assert.Error(t, sender.Send(context.Background(), msg))
	assert.ErrorIs(t, sender.Send(context.Background(), msg), ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResendSender_RejectionDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	breaker := circuit.New("resend", circuit.WithFailureThreshold(1))
	sender := NewResendSender("re_test", srv.URL, "from@example.com", WithResendBreaker(breaker))

	assert.Error(t, sender.Send(context.Background(), Message{To: "bad"}))
	assert.False(t, breaker.IsOpen())
}
