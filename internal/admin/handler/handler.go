package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifenavigator/internal/admin/models"
	"lifenavigator/pkg/platform/httputil"
	"lifenavigator/pkg/platform/middleware/request"
)

type Service interface {
	Overview(ctx context.Context) (*models.Overview, error)
	Preview(ctx context.Context, filters []models.Filter) (*models.Preview, error)
	Save(ctx context.Context, name string, filters []models.Filter) (*models.Segment, error)
	List(ctx context.Context) ([]*models.Segment, error)
	Count(ctx context.Context, segmentSlug string) (int, error)
	SendCampaign(ctx context.Context, segmentSlug, subject, body string) (*models.CampaignResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the dashboard routes. The caller guards them with the
// admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/overview", h.HandleOverview)
	r.Post("/admin/segments/preview", h.HandlePreview)
	r.Post("/admin/segments", h.HandleSaveSegment)
	r.Get("/admin/segments", h.HandleListSegments)
	r.Get("/admin/segments/{slug}/count", h.HandleCountSegment)
	r.Post("/admin/campaigns", h.HandleSendCampaign)
}

func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.service.Overview(ctx)
	if err != nil {
		h.fail(ctx, w, "overview failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, (*OverviewResponse)(o))
}

func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PreviewRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Preview(ctx, req.Filters)
	if err != nil {
		h.fail(ctx, w, "segment preview failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &PreviewResponse{Count: p.Count, Emails: p.Emails})
}

func (h *Handler) HandleSaveSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SaveSegmentRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	seg, err := h.service.Save(ctx, req.Name, req.Filters)
	if err != nil {
		h.fail(ctx, w, "segment save failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSegmentResponse(seg))
}

func (h *Handler) HandleListSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	segs, err := h.service.List(ctx)
	if err != nil {
		h.fail(ctx, w, "segment list failed", err)
		return
	}
	resp := &SegmentListResponse{Segments: make([]*SegmentResponse, 0, len(segs))}
	for _, seg := range segs {
		resp.Segments = append(resp.Segments, toSegmentResponse(seg))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleCountSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	n, err := h.service.Count(ctx, slug)
	if err != nil {
		h.fail(ctx, w, "segment count failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &CountResponse{Segment: slug, Count: n})
}

func (h *Handler) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CampaignRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	res, err := h.service.SendCampaign(ctx, req.Segment, req.Subject, req.Body)
	if err != nil {
		h.fail(ctx, w, "campaign send failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &CampaignResponse{
		Segment:    res.Segment,
		Recipients: res.Recipients,
		Sent:       res.Sent,
		Failed:     res.Failed,
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
