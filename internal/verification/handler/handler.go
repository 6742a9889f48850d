package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/requestcontext"
)

type Service interface {
	Start(ctx context.Context, registrantID id.RegistrantID) (string, error)
	Complete(ctx context.Context, registrantID id.RegistrantID, state, code string) (*models.ServiceVerification, error)
	Get(ctx context.Context, registrantID id.RegistrantID) (*models.ServiceVerification, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/me/verification/idme/start", h.HandleStart)
	r.Post("/me/verification/idme/callback", h.HandleCallback)
	r.Get("/me/verification", h.HandleGet)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, ok := requireRegistrant(w, r)
	if !ok {
		return
	}
	authorizeURL, err := h.service.Start(ctx, registrantID)
	if err != nil {
		h.logFailure(ctx, "verification start failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &StartResponse{AuthorizeURL: authorizeURL})
}

func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	registrantID, ok := requireRegistrant(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CallbackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	v, err := h.service.Complete(ctx, registrantID, req.State, req.Code)
	if err != nil {
		h.logFailure(ctx, "verification callback failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(v))
}

// HandleGet reports verified=false rather than 404 for unverified registrants.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, ok := requireRegistrant(w, r)
	if !ok {
		return
	}
	v, err := h.service.Get(ctx, registrantID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(nil))
			return
		}
		h.logFailure(ctx, "verification lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(v))
}

func requireRegistrant(w http.ResponseWriter, r *http.Request) (id.RegistrantID, bool) {
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
