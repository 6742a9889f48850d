package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/auth/service"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
)

type Service interface {
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Logout(ctx context.Context, token string) error
	VerifyEmail(ctx context.Context, token string) (id.RegistrantID, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public auth routes. Login rate limiting is applied by the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/verify-email", h.HandleVerifyEmail)
	r.Post("/auth/logout", h.HandleLogout)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		AccessToken:  session.Token,
		TokenType:    "Bearer",
		ExpiresAt:    session.ExpiresAt,
		RegistrantID: session.RegistrantID.String(),
	})
}

func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[VerifyEmailRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	registrantID, err := h.service.VerifyEmail(ctx, req.Token)
	if err != nil {
		h.logger.WarnContext(ctx, "email verification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &VerifyEmailResponse{
		RegistrantID:  registrantID.String(),
		EmailVerified: true,
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.service.Logout(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "logout failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
