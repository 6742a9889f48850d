// Package handler receives payment provider webhooks and records conversions.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/billing/metrics"
	"lifenavigator/internal/billing/models"
	refmodels "lifenavigator/internal/referral/models"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
)

const (
	SignatureHeader = "X-Signature"
	maxPayloadBytes = 64 << 10
)

// Converter records a paid subscription.
type Converter interface {
	MarkConverted(ctx context.Context, conv refmodels.Conversion) (*refmodels.ConversionResult, error)
}

type Handler struct {
	converter Converter
	secret    []byte
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(converter Converter, secret []byte, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{converter: converter, secret: secret, logger: logger, metrics: m}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/payments", h.HandlePayment)
}

type PaymentResponse struct {
	Received      bool `json:"received"`
	Duplicate     bool `json:"duplicate"`
	Converted     bool `json:"converted"`
	CreditsMinted int  `json:"credits_minted"`
}

func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.count("invalid")
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payload too large or unreadable"))
		return
	}
	if err := models.VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)); err != nil {
		h.count("bad_signature")
		h.logger.WarnContext(ctx, "payment webhook rejected", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	var event models.PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.count("invalid")
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON payload"))
		return
	}
	event.Normalize()
	conv, err := event.Conversion()
	if err != nil {
		h.count("invalid")
		httputil.WriteError(w, err)
		return
	}

	res, err := h.converter.MarkConverted(ctx, conv)
	if err != nil {
		h.count("error")
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "payment webhook failed",
			"request_id", requestID,
			"event_id", conv.EventID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if res.Duplicate {
		h.count("duplicate")
	} else {
		h.count("processed")
	}
	httputil.WriteJSON(w, http.StatusOK, &PaymentResponse{
		Received:      true,
		Duplicate:     res.Duplicate,
		Converted:     res.Converted,
		CreditsMinted: len(res.Credits),
	})
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.IncrementWebhook(outcome)
	}
}
