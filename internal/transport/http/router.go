// Package httptransport assembles the module handlers into one chi router.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "lifenavigator/internal/admin/handler"
	analyticshandler "lifenavigator/internal/analytics/handler"
	authhandler "lifenavigator/internal/auth/handler"
	billinghandler "lifenavigator/internal/billing/handler"
	"lifenavigator/internal/platform/metrics"
	rlmiddleware "lifenavigator/internal/ratelimit/middleware"
	rlmodels "lifenavigator/internal/ratelimit/models"
	referralhandler "lifenavigator/internal/referral/handler"
	rewardshandler "lifenavigator/internal/rewards/handler"
	verificationhandler "lifenavigator/internal/verification/handler"
	waitlisthandler "lifenavigator/internal/waitlist/handler"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/admin"
	"lifenavigator/pkg/platform/middleware/auth"
	"lifenavigator/pkg/platform/middleware/metadata"
	request "lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/platform/middleware/requesttime"
)

// Handlers are the module HTTP surfaces.
type Handlers struct {
	Waitlist     *waitlisthandler.Handler
	Referral     *referralhandler.Handler
	Auth         *authhandler.Handler
	Verification *verificationhandler.Handler
	Rewards      *rewardshandler.Handler
	Billing      *billinghandler.Handler
	Analytics    *analyticshandler.Handler
	Admin        *adminhandler.Handler
}

// Deps is what the router needs besides the handlers.
type Deps struct {
	Logger     *slog.Logger
	Sessions   auth.TokenValidator
	RateLimit  *rlmiddleware.Middleware
	AdminToken string
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Health     func(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewRouter mounts public, registrant and admin routes. Signup and the auth
// endpoints are rate limited per client IP.
func NewRouter(h Handlers, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.Health))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.RateLimit(rlmodels.ClassJoin))
		h.Waitlist.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.RateLimit(rlmodels.ClassLogin))
		h.Auth.Register(r)
	})
	h.Billing.Register(r)
	h.Analytics.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Sessions, deps.Logger))
		h.Waitlist.RegisterAuthenticated(r)
		h.Referral.RegisterAuthenticated(r)
		h.Verification.RegisterAuthenticated(r)
		h.Rewards.RegisterAuthenticated(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
		h.Waitlist.RegisterAdmin(r)
		h.Referral.RegisterAdmin(r)
		h.Analytics.RegisterAdmin(r)
		h.Admin.RegisterAdmin(r)
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
