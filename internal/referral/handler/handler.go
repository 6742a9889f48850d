package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/requestcontext"
)

// Service is the referral surface the handler depends on.
type Service interface {
	Stats(ctx context.Context, referrerID id.RegistrantID) (*models.Stats, error)
	ReferralLink(ctx context.Context, referrerID id.RegistrantID) (string, error)
	RedeemCredit(ctx context.Context, referrerID id.RegistrantID, creditID id.CreditID) (*models.Credit, error)
	Accrue(ctx context.Context, referrerID id.RegistrantID) ([]*models.Credit, error)
	ReconcileAll(ctx context.Context) (models.ReconcileResult, error)
	ExpireCredits(ctx context.Context) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAuthenticated mounts the registrant's own referral views.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/me/referrals", h.HandleStats)
	r.Get("/me/referral-link", h.HandleLink)
	r.Post("/me/credits/{id}/redeem", h.HandleRedeem)
}

// RegisterAdmin mounts operator actions.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/referrals/reconcile", h.HandleReconcile)
	r.Post("/admin/referrals/{id}/accrue", h.HandleAccrue)
	r.Post("/admin/credits/expire", h.HandleExpire)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, ok := h.requireRegistrant(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(ctx, registrantID)
	if err != nil {
		h.logFailure(ctx, "referral stats failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, ok := h.requireRegistrant(w, r)
	if !ok {
		return
	}
	link, err := h.service.ReferralLink(ctx, registrantID)
	if err != nil {
		h.logFailure(ctx, "referral link failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LinkResponse{Link: link})
}

func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, ok := h.requireRegistrant(w, r)
	if !ok {
		return
	}
	creditID, err := id.ParseCreditID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credit, err := h.service.RedeemCredit(ctx, registrantID, creditID)
	if err != nil {
		h.logFailure(ctx, "credit redemption failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCreditResponse(credit))
}

func (h *Handler) HandleAccrue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	referrerID, err := id.ParseRegistrantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credits, err := h.service.Accrue(ctx, referrerID)
	if err != nil {
		h.logFailure(ctx, "manual accrual failed", err)
		httputil.WriteError(w, err)
		return
	}
	resp := &AccrueResponse{Credits: make([]CreditResponse, 0, len(credits))}
	for _, c := range credits {
		resp.Credits = append(resp.Credits, *toCreditResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.ReconcileAll(ctx)
	if err != nil {
		// Partial failures still report what was minted.
		h.logFailure(ctx, "reconcile finished with failures", err)
	}
	httputil.WriteJSON(w, http.StatusOK, &ReconcileResponse{
		Referrers: res.Referrers,
		Credits:   res.Credits,
		Failures:  res.Failures,
	})
}

func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.ExpireCredits(ctx)
	if err != nil {
		h.logFailure(ctx, "credit expiry failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ExpireResponse{Expired: n})
}

func (h *Handler) requireRegistrant(w http.ResponseWriter, r *http.Request) (id.RegistrantID, bool) {
	registrantID := requestcontext.RegistrantID(r.Context())
	if registrantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return registrantID, false
	}
	return registrantID, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	requestID := request.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
