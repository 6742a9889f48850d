package handler

import (
	"encoding/json"
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

	"lifenavigator/internal/verification/handler/mocks"
	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type VerificationHandlerSuite struct {
	suite.Suite
	service      *mocks.MockService
	router       chi.Router
	registrantID id.RegistrantID
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func (s *VerificationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.registrantID = id.NewRegistrantID()
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterAuthenticated(s.router)
}

func (s *VerificationHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req = req.WithContext(requestcontext.WithRegistrantID(req.Context(), s.registrantID))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *VerificationHandlerSuite) TestStart() {
	s.service.EXPECT().Start(gomock.Any(), s.registrantID).Return("https://api.id.me/oauth/authorize?state=x", nil)

	rec := s.do(http.MethodPost, "/me/verification/idme/start", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"authorize_url":"https://api.id.me/oauth/authorize?state=x"}`, rec.Body.String())
}

func (s *VerificationHandlerSuite) TestStartAlreadyVerified() {
	s.service.EXPECT().Start(gomock.Any(), s.registrantID).Return("", models.ErrAlreadyVerified)

	rec := s.do(http.MethodPost, "/me/verification/idme/start", "")

	s.Equal(http.StatusConflict, rec.Code)
}

func (s *VerificationHandlerSuite) TestCallback() {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service.EXPECT().Complete(gomock.Any(), s.registrantID, "st", "cd").Return(&models.ServiceVerification{
		RegistrantID: s.registrantID,
		ServiceType:  models.ServiceTeacher,
		Provider:     models.ProviderIDMe,
		VerifiedAt:   at,
	}, nil)

	rec := s.do(http.MethodPost, "/me/verification/idme/callback", `{"state":" st ","code":"cd"}`)

	s.Equal(http.StatusOK, rec.Code)
	var resp VerificationResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Verified)
	s.Equal("teacher", resp.ServiceType)
}

func (s *VerificationHandlerSuite) TestCallbackValidation() {
	rec := s.do(http.MethodPost, "/me/verification/idme/callback", `{"state":"st"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *VerificationHandlerSuite) TestCallbackProviderOutage() {
	s.service.EXPECT().Complete(gomock.Any(), s.registrantID, "st", "cd").
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "verification provider unavailable"))

	rec := s.do(http.MethodPost, "/me/verification/idme/callback", `{"state":"st","code":"cd"}`)

	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *VerificationHandlerSuite) TestGetUnverified() {
	s.service.EXPECT().Get(gomock.Any(), s.registrantID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no service verification"))

	rec := s.do(http.MethodGet, "/me/verification", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"verified":false}`, rec.Body.String())
}

func (s *VerificationHandlerSuite) TestRequiresAuthentication() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me/verification", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)
}
