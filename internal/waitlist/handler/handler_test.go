package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifenavigator/internal/waitlist/handler/mocks"
	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/waitlist-mocks.go -package=mocks Service
type WaitlistHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestWaitlistHandlerSuite(t *testing.T) {
	suite.Run(t, new(WaitlistHandlerSuite))
}

func (s *WaitlistHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAuthenticated(s.router)
	h.RegisterAdmin(s.router)
}

func (s *WaitlistHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func testRegistrant(position int) *models.Registrant {
	return &models.Registrant{
		ID:             id.NewRegistrantID(),
		Email:          "ada@example.com",
		Name:           "Ada Lovelace",
		Position:       position,
		ReferralCode:   "AB3XK9QZ",
		Interests:      []string{},
		TierPreference: id.TierFree,
		JoinedAt:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *WaitlistHandlerSuite) TestJoinCreated() {
	reg := testRegistrant(100)
	s.service.EXPECT().Join(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *models.JoinRequest) (*models.JoinResult, error) {
			s.Equal("ada@example.com", req.Email)
			s.Equal("AB3XK9QZ", req.ReferralCode)
			return &models.JoinResult{Registrant: reg, EffectivePosition: 100}, nil
		})

	body := `{"email":" Ada@Example.com ","referral_code":"ab3xk9qz"}`
	rec := s.do(httptest.NewRequest(http.MethodPost, "/waitlist/join", bytes.NewBufferString(body)))

	s.Equal(http.StatusCreated, rec.Code)
	var resp JoinResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(100, resp.Position)
	s.Equal("AB3XK9QZ", resp.ReferralCode)
	s.False(resp.AlreadyRegistered)
}

func (s *WaitlistHandlerSuite) TestJoinExistingReturns200() {
	s.service.EXPECT().Join(gomock.Any(), gomock.Any()).
		Return(&models.JoinResult{Registrant: testRegistrant(120), EffectivePosition: 20, AlreadyRegistered: true}, nil)

	rec := s.do(httptest.NewRequest(http.MethodPost, "/waitlist/join", bytes.NewBufferString(`{"email":"ada@example.com"}`)))

	s.Equal(http.StatusOK, rec.Code)
	var resp JoinResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.AlreadyRegistered)
	s.Equal(20, resp.EffectivePosition)
}

func (s *WaitlistHandlerSuite) TestJoinValidationFailsBeforeService() {
	rec := s.do(httptest.NewRequest(http.MethodPost, "/waitlist/join", bytes.NewBufferString(`{"email":"not-an-email"}`)))
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/waitlist/join", bytes.NewBufferString(`{`)))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *WaitlistHandlerSuite) TestJoinInternalErrorHidesDetail() {
	s.service.EXPECT().Join(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to save registrant"))

	rec := s.do(httptest.NewRequest(http.MethodPost, "/waitlist/join", bytes.NewBufferString(`{"email":"ada@example.com"}`)))

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "failed to save registrant")
}

func (s *WaitlistHandlerSuite) TestCheckCode() {
	s.service.EXPECT().ResolveCode(gomock.Any(), "AB3XK9QZ").Return(testRegistrant(100), nil)
	s.service.EXPECT().ResolveCode(gomock.Any(), "ZZZZZZZZ").Return(nil, dErrors.New(dErrors.CodeNotFound, "referral code not found"))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/waitlist/referrals/AB3XK9QZ", nil))
	s.Equal(http.StatusOK, rec.Code)
	var ok CodeCheckResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &ok))
	s.True(ok.Valid)
	s.Equal("Ada", ok.ReferrerFirstName)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/waitlist/referrals/ZZZZZZZZ", nil))
	s.Equal(http.StatusOK, rec.Code)
	var missing CodeCheckResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &missing))
	s.False(missing.Valid)
}

func (s *WaitlistHandlerSuite) TestMeRequiresRegistrant() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *WaitlistHandlerSuite) TestMeReturnsStatus() {
	rid := id.NewRegistrantID()
	s.service.EXPECT().Status(gomock.Any(), rid).Return(&models.Status{
		RegistrantID:      rid,
		StoredPosition:    350,
		EffectivePosition: 150,
		PeopleAhead:       149,
		ReferralCount:     2,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(requestcontext.WithRegistrantID(req.Context(), rid))
	rec := s.do(req)

	s.Equal(http.StatusOK, rec.Code)
	var resp StatusResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(350, resp.Position)
	s.Equal(150, resp.EffectivePosition)
	s.Equal(149, resp.PeopleAhead)
}

func (s *WaitlistHandlerSuite) TestAdminList() {
	reg := testRegistrant(100)
	s.service.EXPECT().List(gomock.Any(), models.ListFilter{Query: "ada", Limit: 10}).
		Return([]*models.Registrant{reg}, 1, nil)
	s.service.EXPECT().EffectivePosition(reg).Return(100)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/admin/registrants?q=ada&limit=10", nil))

	s.Equal(http.StatusOK, rec.Code)
	var resp ListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Total)
	s.Require().Len(resp.Registrants, 1)
	s.Equal(reg.ID.String(), resp.Registrants[0].ID)
}

func (s *WaitlistHandlerSuite) TestAdminDelete() {
	rid := id.NewRegistrantID()
	s.service.EXPECT().Delete(gomock.Any(), rid).Return(nil)

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/admin/registrants/"+rid.String(), nil))
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/admin/registrants/not-a-uuid", nil))
	s.Equal(http.StatusBadRequest, rec.Code)
}
