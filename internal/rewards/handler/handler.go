package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/rewards"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/requestcontext"
)

type Service interface {
	Best(ctx context.Context, registrantID id.RegistrantID) (*rewards.Benefit, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/me/benefit", h.HandleBenefit)
}

// HandleBenefit handles GET /me/benefit.
func (h *Handler) HandleBenefit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID := requestcontext.RegistrantID(ctx)
	if registrantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	b, err := h.service.Best(ctx, registrantID)
	if err != nil {
		h.logger.WarnContext(ctx, "benefit evaluation failed",
			"request_id", request.GetRequestID(ctx),
			"registrant_id", registrantID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BenefitResponse{
		Kind:            string(b.Kind),
		Amount:          b.Amount.StringFixed(2),
		Reason:          string(b.Reason),
		Tier:            b.Tier.String(),
		TierPrice:       b.TierPrice.StringFixed(2),
		ServiceDiscount: b.ServiceDiscount.StringFixed(2),
		CreditAvailable: b.CreditAvailable.StringFixed(2),
	})
}

// BenefitResponse renders money as fixed two-decimal strings.
type BenefitResponse struct {
	Kind            string `json:"kind"`
	Amount          string `json:"amount"`
	Reason          string `json:"reason"`
	Tier            string `json:"tier"`
	TierPrice       string `json:"tier_price"`
	ServiceDiscount string `json:"service_discount"`
	CreditAvailable string `json:"referral_credit_available"`
}
