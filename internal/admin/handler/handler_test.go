package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifenavigator/internal/admin/handler/mocks"
	"lifenavigator/internal/admin/models"
	dErrors "lifenavigator/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/admin-mocks.go -package=mocks Service
type AdminHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAdmin(s.router)
}

func (s *AdminHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func (s *AdminHandlerSuite) TestOverview() {
	s.service.EXPECT().Overview(gomock.Any()).Return(&models.Overview{
		Registrants: 120, VerifiedEmails: 80, Paying: 12, Referrals: 60,
		Conversions: 20, ActiveCredits: 3, ServiceVerified: 9, Sessions30d: 400,
	}, nil)

	rec := s.do(http.MethodGet, "/admin/overview", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"registrants":120,"verified_emails":80,"paying":12,"referrals":60,
		"conversions":20,"active_credits":3,"service_verified":9,"sessions_30d":400}`, rec.Body.String())
}

func (s *AdminHandlerSuite) TestPreview() {
	filters := []models.Filter{{Field: "is_paying", Operator: "equals", Value: "true"}}
	s.service.EXPECT().Preview(gomock.Any(), filters).
		Return(&models.Preview{Count: 1, Emails: []string{"a@example.com"}}, nil)

	rec := s.do(http.MethodPost, "/admin/segments/preview",
		`{"filters":[{"field":"is_paying","operator":"equals","value":"true"}]}`)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"count":1,"emails":["a@example.com"]}`, rec.Body.String())
}

func (s *AdminHandlerSuite) TestPreviewInvalidFilter() {
	s.service.EXPECT().Preview(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeValidation, "filter 0: unknown field"))

	rec := s.do(http.MethodPost, "/admin/segments/preview",
		`{"filters":[{"field":"password_hash","operator":"equals","value":"x"}]}`)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AdminHandlerSuite) TestSaveSegment() {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.service.EXPECT().Save(gomock.Any(), "Power Referrers", gomock.Len(1)).Return(&models.Segment{
		Slug:      "power-referrers",
		Name:      "Power Referrers",
		Filters:   []models.Filter{{Field: "referral_count", Operator: "greater_than", Value: "5"}},
		CreatedAt: created,
	}, nil)

	rec := s.do(http.MethodPost, "/admin/segments",
		`{"name":" Power Referrers ","filters":[{"field":"referral_count","operator":"greater_than","value":"5"}]}`)

	s.Equal(http.StatusCreated, rec.Code)
	s.JSONEq(`{"slug":"power-referrers","name":"Power Referrers",
		"filters":[{"field":"referral_count","operator":"greater_than","value":"5"}],
		"created_at":"2026-03-01T09:00:00Z"}`, rec.Body.String())
}

func (s *AdminHandlerSuite) TestSaveSegmentRequiresName() {
	rec := s.do(http.MethodPost, "/admin/segments", `{"name":"  ","filters":[]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AdminHandlerSuite) TestListSegments() {
	s.service.EXPECT().List(gomock.Any()).Return([]*models.Segment{{Slug: "all", Name: "All"}}, nil)

	rec := s.do(http.MethodGet, "/admin/segments", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"segments":[{"slug":"all","name":"All","filters":[],"created_at":"0001-01-01T00:00:00Z"}]}`, rec.Body.String())
}

func (s *AdminHandlerSuite) TestCountSegment() {
	s.service.EXPECT().Count(gomock.Any(), "payers").Return(12, nil)
	rec := s.do(http.MethodGet, "/admin/segments/payers/count", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"segment":"payers","count":12}`, rec.Body.String())

	s.service.EXPECT().Count(gomock.Any(), "ghost").Return(0, dErrors.New(dErrors.CodeNotFound, "segment not found"))
	rec = s.do(http.MethodGet, "/admin/segments/ghost/count", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *AdminHandlerSuite) TestSendCampaign() {
	s.service.EXPECT().SendCampaign(gomock.Any(), "payers", "Hello", "Body text").
		Return(&models.CampaignResult{Segment: "payers", Recipients: 3, Sent: 2, Failed: 1}, nil)

	rec := s.do(http.MethodPost, "/admin/campaigns", `{"segment":"payers","subject":" Hello ","body":"Body text"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"segment":"payers","recipients":3,"sent":2,"failed":1}`, rec.Body.String())
}

func (s *AdminHandlerSuite) TestSendCampaignRequiresSegment() {
	rec := s.do(http.MethodPost, "/admin/campaigns", `{"subject":"Hello","body":"x"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}
