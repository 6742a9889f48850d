package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/analytics/models"
	"lifenavigator/internal/analytics/service"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
	"lifenavigator/pkg/requestcontext"
)

const defaultSummaryDays = 30

type Service interface {
	Track(ctx context.Context, in service.TrackInput) (*models.Event, error)
	Summary(ctx context.Context, from, to time.Time) (*models.Summary, error)
	SummaryForDays(ctx context.Context, days int) (*models.Summary, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/analytics/events", h.HandleTrack)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/analytics/summary", h.HandleSummary)
}

// HandleTrack always answers 202 so tracking never breaks the page.
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := decodeTrack(r)
	if ok {
		in := service.TrackInput{
			SessionID:  req.SessionID,
			Type:       models.EventType(req.Type),
			Path:       req.Path,
			Properties: req.Properties,
		}
		if registrantID := requestcontext.RegistrantID(ctx); !registrantID.IsNil() {
			in.RegistrantID = &registrantID
		}
		if _, err := h.service.Track(ctx, in); err != nil {
			h.logger.WarnContext(ctx, "analytics event dropped",
				"request_id", requestID,
				"error", err,
			)
		}
	} else {
		h.logger.WarnContext(ctx, "analytics event dropped: malformed body", "request_id", requestID)
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleSummary accepts either ?days=N or ?from=&to= in RFC3339.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		summary *models.Summary
		err     error
	)
	if q.Get("from") != "" || q.Get("to") != "" {
		from, ferr := time.Parse(time.RFC3339, q.Get("from"))
		to, terr := time.Parse(time.RFC3339, q.Get("to"))
		if ferr != nil || terr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "from and to must be RFC3339 timestamps"))
			return
		}
		summary, err = h.service.Summary(ctx, from, to)
	} else {
		days := defaultSummaryDays
		if raw := q.Get("days"); raw != "" {
			if days, err = strconv.Atoi(raw); err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "days must be an integer"))
				return
			}
		}
		summary, err = h.service.SummaryForDays(ctx, days)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "analytics summary failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummaryResponse(summary))
}
