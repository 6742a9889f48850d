package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/requestcontext"
)

// Service is the waitlist surface the handler depends on.
type Service interface {
	Join(ctx context.Context, req *models.JoinRequest) (*models.JoinResult, error)
	ResolveCode(ctx context.Context, raw string) (*models.Registrant, error)
	Status(ctx context.Context, registrantID id.RegistrantID) (*models.Status, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Registrant, int, error)
	Delete(ctx context.Context, registrantID id.RegistrantID) error
	EffectivePosition(r *models.Registrant) int
}

// Handler serves signup, the public code check, /me and the admin registrant views.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/waitlist/join", h.HandleJoin)
	r.Get("/waitlist/referrals/{code}", h.HandleCheckCode)
}

// RegisterAuthenticated mounts routes that need a registrant in context.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/me", h.HandleMe)
}

// RegisterAdmin mounts routes behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/registrants", h.HandleList)
	r.Delete("/admin/registrants/{id}", h.HandleDelete)
}

func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.JoinRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Join(ctx, req)
	if err != nil {
		h.logFailure(ctx, "join failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyRegistered {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, &JoinResponse{
		ID:                res.Registrant.ID.String(),
		Email:             res.Registrant.Email,
		Position:          res.Registrant.Position,
		EffectivePosition: res.EffectivePosition,
		ReferralCode:      res.Registrant.ReferralCode.String(),
		AlreadyRegistered: res.AlreadyRegistered,
		Referred:          res.Referred,
	})
}

func (h *Handler) HandleCheckCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	referrer, err := h.service.ResolveCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, &CodeCheckResponse{Valid: false})
			return
		}
		h.logFailure(ctx, "referral code check failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &CodeCheckResponse{Valid: true, ReferrerFirstName: referrer.FirstName()})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID := requestcontext.RegistrantID(ctx)
	if registrantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	status, err := h.service.Status(ctx, registrantID)
	if err != nil {
		h.logFailure(ctx, "status lookup failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{Query: q.Get("q")}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	list, total, err := h.service.List(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "list registrants failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}

	resp := &ListResponse{Registrants: make([]RegistrantResponse, 0, len(list)), Total: total}
	for _, reg := range list {
		resp.Registrants = append(resp.Registrants, toRegistrantResponse(reg, h.service.EffectivePosition(reg)))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registrantID, err := id.ParseRegistrantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, registrantID); err != nil {
		h.logFailure(ctx, "delete registrant failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
